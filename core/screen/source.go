package screen

import (
	"context"

	"github.com/trezcool/shule/core/academy"
	"github.com/trezcool/shule/core/approval"
	"github.com/trezcool/shule/core/form"
	"github.com/trezcool/shule/core/grid"
	"github.com/trezcool/shule/core/hierarchy"
	"github.com/trezcool/shule/core/user"
)

// Scope is the hierarchy selection the rows of a screen live under.
// Chainless screens have an empty scope.
type Scope struct {
	Selection hierarchy.Selection
	Leaf      hierarchy.Kind
	LeafID    string
}

// Source reads and writes the rows of one entity.
type Source interface {
	Rows(ctx context.Context, usr user.User, scope Scope) ([]grid.Row, error)
	Row(ctx context.Context, usr user.User, id string) (grid.Row, error)
	Create(ctx context.Context, usr user.User, scope Scope, vals form.Values) error
	Update(ctx context.Context, usr user.User, scope Scope, id string, vals form.Values) error
	Delete(ctx context.Context, usr user.User, id string) error
}

// StatusSource is a Source whose rows go through an approval workflow.
type StatusSource interface {
	Source
	SetStatus(ctx context.Context, usr user.User, id, status string) error
	Hold(ctx context.Context, usr user.User, id string) error
	// Editable returns a rule error when usr may not edit row id.
	Editable(ctx context.Context, usr user.User, id string) error
}

func newSource(def Definition, deps Deps) Source {
	switch def.Entity {
	case EntityNode:
		return &nodeSource{svc: deps.Academy, kind: hierarchy.Kind(def.Kind)}
	case EntityMark:
		return &markSource{svc: deps.Academy}
	case EntityAttendance:
		return &attendanceSource{svc: deps.Academy}
	case EntityMaterial:
		return &materialSource{svc: deps.Academy}
	case EntityRequest:
		return &requestSource{svc: deps.Approval, kind: approval.Kind(def.Kind)}
	}
	return nil
}

// withScope adds the scope selection to row, so hierarchy filters can count it.
func withScope(row grid.Row, scope Scope) grid.Row {
	for k, v := range scope.Selection {
		if _, ok := row[string(k)]; !ok {
			row[string(k)] = v
		}
	}
	return row
}

// Nodes

type nodeSource struct {
	svc  *academy.Service
	kind hierarchy.Kind
}

func nodeRow(n academy.Node) grid.Row {
	return grid.Row{
		"id":         n.ID,
		"name":       n.Name,
		"code":       n.Code,
		"image":      n.Image,
		"parent_id":  n.ParentID,
		"created_at": n.CreatedAt,
		"updated_at": n.UpdatedAt,
	}
}

func (src *nodeSource) Rows(ctx context.Context, _ user.User, scope Scope) ([]grid.Row, error) {
	nodes, err := src.svc.QueryNodes(ctx, academy.NodeFilter{Kind: src.kind, ParentID: scope.LeafID})
	if err != nil {
		return nil, err
	}
	rows := make([]grid.Row, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, withScope(nodeRow(n), scope))
	}
	return rows, nil
}

func (src *nodeSource) Row(ctx context.Context, _ user.User, id string) (grid.Row, error) {
	n, err := src.svc.GetNodeOf(ctx, src.kind, id)
	if err != nil {
		return nil, err
	}
	return nodeRow(n), nil
}

func (src *nodeSource) Create(ctx context.Context, usr user.User, scope Scope, vals form.Values) error {
	_, err := src.svc.CreateNode(ctx, usr, academy.NewNode{
		Kind:     src.kind,
		ParentID: scope.LeafID,
		Name:     vals.String("name"),
		Code:     vals.String("code"),
		Image:    vals.String("image"),
	})
	return err
}

func (src *nodeSource) Update(ctx context.Context, usr user.User, _ Scope, id string, vals form.Values) error {
	if _, err := src.svc.GetNodeOf(ctx, src.kind, id); err != nil {
		return err
	}
	_, err := src.svc.UpdateNode(ctx, usr, id, academy.UpdateNode{
		Name:  vals.String("name"),
		Code:  vals.String("code"),
		Image: vals.String("image"),
	})
	return err
}

func (src *nodeSource) Delete(ctx context.Context, usr user.User, id string) error {
	if _, err := src.svc.GetNodeOf(ctx, src.kind, id); err != nil {
		return err
	}
	return src.svc.DeleteNode(ctx, usr, id)
}

// Marks

type markSource struct {
	svc *academy.Service
}

func markRow(m academy.Mark, subject string) grid.Row {
	return grid.Row{
		"id":         m.ID,
		"student":    m.Student,
		"subject_id": m.SubjectID,
		"subject":    subject,
		"score":      m.Score,
		"max_score":  m.MaxScore,
		"percentage": m.Percentage(),
		"grade":      m.Grade(),
		"created_at": m.CreatedAt,
	}
}

// subjectNames maps the subjects of the selected level to their names.
func (src *markSource) subjectNames(ctx context.Context, scope Scope) (map[string]string, error) {
	names := make(map[string]string)
	level := scope.Selection[hierarchy.Level]
	if level == "" {
		return names, nil
	}
	opts, err := src.svc.Options(ctx, hierarchy.Subject, level)
	if err != nil {
		return nil, err
	}
	for _, o := range opts {
		names[o.ID] = o.Name
	}
	return names, nil
}

func (src *markSource) Rows(ctx context.Context, _ user.User, scope Scope) ([]grid.Row, error) {
	marks, err := src.svc.QueryMarks(ctx, academy.MarkFilter{ClassID: scope.LeafID})
	if err != nil {
		return nil, err
	}
	names, err := src.subjectNames(ctx, scope)
	if err != nil {
		return nil, err
	}
	rows := make([]grid.Row, 0, len(marks))
	for _, m := range marks {
		rows = append(rows, withScope(markRow(m, names[m.SubjectID]), scope))
	}
	return rows, nil
}

func (src *markSource) Row(ctx context.Context, _ user.User, id string) (grid.Row, error) {
	m, err := src.svc.GetMark(ctx, id)
	if err != nil {
		return nil, err
	}
	var subject string
	if n, err := src.svc.GetNode(ctx, m.SubjectID); err == nil {
		subject = n.Name
	}
	return markRow(m, subject), nil
}

func newMark(scope Scope, vals form.Values) academy.NewMark {
	score, _ := vals.Float("score")
	max, _ := vals.Float("max_score")
	return academy.NewMark{
		ClassID:   scope.LeafID,
		SubjectID: vals.String("subject_id"),
		Student:   vals.String("student"),
		Score:     score,
		MaxScore:  max,
	}
}

func (src *markSource) Create(ctx context.Context, usr user.User, scope Scope, vals form.Values) error {
	_, err := src.svc.CreateMark(ctx, usr, newMark(scope, vals))
	return err
}

func (src *markSource) Update(ctx context.Context, usr user.User, scope Scope, id string, vals form.Values) error {
	_, err := src.svc.UpdateMark(ctx, usr, id, newMark(scope, vals))
	return err
}

func (src *markSource) Delete(ctx context.Context, usr user.User, id string) error {
	return src.svc.DeleteMark(ctx, usr, id)
}

// Attendance

const (
	present = "Present"
	absent  = "Absent"
)

type attendanceSource struct {
	svc *academy.Service
}

func attendanceRow(a academy.Attendance) grid.Row {
	status := absent
	if a.Present {
		status = present
	}
	return grid.Row{
		"id":      a.ID,
		"student": a.Student,
		"day":     a.Day,
		"present": a.Present,
		"status":  status,
	}
}

func (src *attendanceSource) Rows(ctx context.Context, _ user.User, scope Scope) ([]grid.Row, error) {
	atts, err := src.svc.QueryAttendance(ctx, academy.AttendanceFilter{ClassID: scope.LeafID})
	if err != nil {
		return nil, err
	}
	rows := make([]grid.Row, 0, len(atts))
	for _, a := range atts {
		rows = append(rows, withScope(attendanceRow(a), scope))
	}
	return rows, nil
}

func (src *attendanceSource) Row(ctx context.Context, _ user.User, id string) (grid.Row, error) {
	a, err := src.svc.GetAttendance(ctx, id)
	if err != nil {
		return nil, err
	}
	return attendanceRow(a), nil
}

func newAttendance(scope Scope, vals form.Values) academy.NewAttendance {
	day, _ := vals.Time("day")
	return academy.NewAttendance{
		ClassID: scope.LeafID,
		Student: vals.String("student"),
		Day:     day,
		Present: vals.String("status") != absent,
	}
}

func (src *attendanceSource) Create(ctx context.Context, usr user.User, scope Scope, vals form.Values) error {
	_, err := src.svc.CreateAttendance(ctx, usr, newAttendance(scope, vals))
	return err
}

func (src *attendanceSource) Update(ctx context.Context, usr user.User, scope Scope, id string, vals form.Values) error {
	_, err := src.svc.UpdateAttendance(ctx, usr, id, newAttendance(scope, vals))
	return err
}

func (src *attendanceSource) Delete(ctx context.Context, usr user.User, id string) error {
	return src.svc.DeleteAttendance(ctx, usr, id)
}

// Materials

type materialSource struct {
	svc *academy.Service
}

func materialRow(m academy.Material) grid.Row {
	return grid.Row{
		"id":         m.ID,
		"title":      m.Title,
		"kind":       m.Kind,
		"url":        m.URL,
		"created_at": m.CreatedAt,
	}
}

func (src *materialSource) Rows(ctx context.Context, _ user.User, scope Scope) ([]grid.Row, error) {
	mats, err := src.svc.QueryMaterials(ctx, academy.MaterialFilter{ChapterID: scope.LeafID})
	if err != nil {
		return nil, err
	}
	rows := make([]grid.Row, 0, len(mats))
	for _, m := range mats {
		rows = append(rows, withScope(materialRow(m), scope))
	}
	return rows, nil
}

func (src *materialSource) Row(ctx context.Context, _ user.User, id string) (grid.Row, error) {
	m, err := src.svc.GetMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	return materialRow(m), nil
}

func newMaterial(scope Scope, vals form.Values) academy.NewMaterial {
	return academy.NewMaterial{
		ChapterID: scope.LeafID,
		Title:     vals.String("title"),
		Kind:      vals.String("kind"),
		URL:       vals.String("url"),
	}
}

func (src *materialSource) Create(ctx context.Context, usr user.User, scope Scope, vals form.Values) error {
	_, err := src.svc.CreateMaterial(ctx, usr, newMaterial(scope, vals))
	return err
}

func (src *materialSource) Update(ctx context.Context, usr user.User, scope Scope, id string, vals form.Values) error {
	_, err := src.svc.UpdateMaterial(ctx, usr, id, newMaterial(scope, vals))
	return err
}

func (src *materialSource) Delete(ctx context.Context, usr user.User, id string) error {
	return src.svc.DeleteMaterial(ctx, usr, id)
}

// Requests

type requestSource struct {
	svc  *approval.Service
	kind approval.Kind
}

var _ StatusSource = (*requestSource)(nil)

func requestRow(r approval.Request) grid.Row {
	return grid.Row{
		"id":                r.ID,
		"title":             r.Title,
		"amount":            r.Amount,
		"requested_by":      r.RequestedBy,
		"requested_by_name": r.RequestedByName,
		"status":            string(r.Status),
		"remark":            r.Remark,
		"created_at":        r.CreatedAt,
	}
}

func (src *requestSource) Rows(ctx context.Context, usr user.User, scope Scope) ([]grid.Row, error) {
	reqs, err := src.svc.Query(ctx, usr, approval.QueryFilter{Kind: src.kind, ScopeIDs: []string{scope.LeafID}})
	if err != nil {
		return nil, err
	}
	rows := make([]grid.Row, 0, len(reqs))
	for _, r := range reqs {
		rows = append(rows, withScope(requestRow(r), scope))
	}
	return rows, nil
}

// get returns request id, hiding requests of another kind or, for non-admins, of another requester.
func (src *requestSource) get(ctx context.Context, usr user.User, id string) (approval.Request, error) {
	req, err := src.svc.Get(ctx, id)
	if err != nil {
		return approval.Request{}, err
	}
	if req.Kind != src.kind || (!usr.IsAdmin() && req.RequestedBy != usr.ID) {
		return approval.Request{}, approval.ErrNotFound
	}
	return req, nil
}

func (src *requestSource) Row(ctx context.Context, usr user.User, id string) (grid.Row, error) {
	req, err := src.get(ctx, usr, id)
	if err != nil {
		return nil, err
	}
	return requestRow(req), nil
}

func (src *requestSource) Create(ctx context.Context, usr user.User, scope Scope, vals form.Values) error {
	amount, _ := vals.Float("amount")
	_, err := src.svc.Create(ctx, usr, approval.NewRequest{
		Kind:    src.kind,
		ScopeID: scope.LeafID,
		Title:   vals.String("title"),
		Amount:  amount,
		Remark:  vals.String("remark"),
	})
	return err
}

func (src *requestSource) Update(ctx context.Context, usr user.User, _ Scope, id string, vals form.Values) error {
	req, err := src.get(ctx, usr, id)
	if err != nil {
		return err
	}
	amount, _ := vals.Float("amount")
	_, err = src.svc.Update(ctx, usr, id, approval.UpdateRequest{
		ScopeID: req.ScopeID,
		Title:   vals.String("title"),
		Amount:  amount,
		Remark:  vals.String("remark"),
	})
	return err
}

func (src *requestSource) Delete(ctx context.Context, usr user.User, id string) error {
	if _, err := src.get(ctx, usr, id); err != nil {
		return err
	}
	return src.svc.Delete(ctx, usr, id)
}

func (src *requestSource) SetStatus(ctx context.Context, usr user.User, id, status string) error {
	_, err := src.svc.SetStatus(ctx, usr, id, approval.Status(status))
	return err
}

func (src *requestSource) Hold(ctx context.Context, usr user.User, id string) error {
	_, err := src.svc.Hold(ctx, usr, id)
	return err
}

func (src *requestSource) Editable(ctx context.Context, usr user.User, id string) error {
	req, err := src.get(ctx, usr, id)
	if err != nil {
		return err
	}
	return approval.CheckEditable(usr, req, "edited")
}
