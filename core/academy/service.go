// Package academy manages the academic hierarchy and the records kept under it:
// marks, attendance and study materials.
package academy

import (
	"context"
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/hierarchy"
	"github.com/trezcool/shule/core/user"
)

var (
	ErrNodeNotFound       = core.NewNotFoundError("node")
	ErrMarkNotFound       = core.NewNotFoundError("mark")
	ErrAttendanceNotFound = core.NewNotFoundError("attendance")
	ErrMaterialNotFound   = core.NewNotFoundError("material")
	ErrAttendanceExists   = errors.New("attendance already recorded for this student on this day")

	invalidDataMsg = "invalid data"
)

type Repository interface {
	CreateNode(ctx context.Context, node Node, exec ...core.DBExecutor) (Node, error)
	GetNode(ctx context.Context, id string, exec ...core.DBExecutor) (Node, error)
	QueryNodes(ctx context.Context, filter NodeFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Node, error)
	CountNodes(ctx context.Context, filter NodeFilter, exec ...core.DBExecutor) (int, error)
	UpdateNode(ctx context.Context, node Node, exec ...core.DBExecutor) (Node, error)
	DeleteNodesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

	CreateMark(ctx context.Context, mark Mark, exec ...core.DBExecutor) (Mark, error)
	GetMark(ctx context.Context, id string, exec ...core.DBExecutor) (Mark, error)
	QueryMarks(ctx context.Context, filter MarkFilter, exec ...core.DBExecutor) ([]Mark, error)
	UpdateMark(ctx context.Context, mark Mark, exec ...core.DBExecutor) (Mark, error)
	DeleteMarksByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

	CreateAttendance(ctx context.Context, att Attendance, exec ...core.DBExecutor) (Attendance, error)
	GetAttendance(ctx context.Context, id string, exec ...core.DBExecutor) (Attendance, error)
	QueryAttendance(ctx context.Context, filter AttendanceFilter, exec ...core.DBExecutor) ([]Attendance, error)
	UpdateAttendance(ctx context.Context, att Attendance, exec ...core.DBExecutor) (Attendance, error)
	DeleteAttendanceByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

	CreateMaterial(ctx context.Context, mat Material, exec ...core.DBExecutor) (Material, error)
	GetMaterial(ctx context.Context, id string, exec ...core.DBExecutor) (Material, error)
	QueryMaterials(ctx context.Context, filter MaterialFilter, exec ...core.DBExecutor) ([]Material, error)
	UpdateMaterial(ctx context.Context, mat Material, exec ...core.DBExecutor) (Material, error)
	DeleteMaterialsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
}

type Service struct {
	repo       Repository
	validate   *validator.Validate
	translator ut.Translator
}

var _ hierarchy.Fetcher = (*Service)(nil)

func NewService(repo Repository, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{repo: repo, validate: validate, translator: translator}
}

func (svc *Service) validateStruct(s interface{}) error {
	if err := svc.validate.Struct(s); err != nil {
		return core.TranslateValidationErrors(err, svc.translator, invalidDataMsg)
	}
	return nil
}

// canManage reports whether usr may write nodes of kind. Teachers manage the curriculum.
func canManage(usr user.User, kind hierarchy.Kind) bool {
	if usr.IsAdmin() {
		return true
	}
	return usr.IsTeacher() && (kind == hierarchy.Subject || kind == hierarchy.Chapter)
}

func canRecord(usr user.User) bool {
	return usr.HasAnyRole(user.RoleAdmin, user.RoleTeacher)
}

// Nodes

func (svc *Service) CreateNode(ctx context.Context, usr user.User, nn NewNode) (Node, error) {
	nn.Name = core.CleanString(nn.Name)
	nn.Code = core.CleanString(nn.Code)
	if err := svc.validateStruct(nn); err != nil {
		return Node{}, err
	}
	if !nn.Kind.Valid() {
		return Node{}, core.NewValidationError(errors.New(invalidDataMsg), core.FieldError{Field: "kind", Error: "invalid kind"})
	}
	if !canManage(usr, nn.Kind) {
		return Node{}, core.ErrPermissionDenied
	}
	if err := svc.checkParent(ctx, nn.Kind, nn.ParentID); err != nil {
		return Node{}, err
	}

	now := time.Now().UTC()
	return svc.repo.CreateNode(ctx, Node{
		Kind:      nn.Kind,
		ParentID:  nn.ParentID,
		Name:      nn.Name,
		Code:      nn.Code,
		Image:     nn.Image,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// checkParent makes sure a node of kind hangs under a node of its parent kind.
func (svc *Service) checkParent(ctx context.Context, kind hierarchy.Kind, parentID string) error {
	parentKind, hasParent := kind.Parent()
	if !hasParent {
		if parentID != "" {
			return core.NewValidationError(errors.New(invalidDataMsg),
				core.FieldError{Field: "parent_id", Error: fmt.Sprintf("a %s has no parent", kind)})
		}
		return nil
	}
	if parentID == "" {
		return core.NewValidationError(errors.New(invalidDataMsg), core.FieldError{Field: "parent_id", Error: "this field is required"})
	}

	parent, err := svc.repo.GetNode(ctx, parentID)
	if err != nil {
		if errors.Cause(err) == ErrNodeNotFound {
			return core.NewValidationError(errors.New(invalidDataMsg), core.FieldError{Field: "parent_id", Error: "parent not found"})
		}
		return err
	}
	if parent.Kind != parentKind {
		return core.NewValidationError(errors.New(invalidDataMsg),
			core.FieldError{Field: "parent_id", Error: fmt.Sprintf("a %s belongs to a %s, not a %s", kind, parentKind, parent.Kind)})
	}
	return nil
}

func (svc *Service) GetNode(ctx context.Context, id string) (Node, error) {
	return svc.repo.GetNode(ctx, id)
}

// GetNodeOf returns node id, making sure it is of kind.
func (svc *Service) GetNodeOf(ctx context.Context, kind hierarchy.Kind, id string) (Node, error) {
	node, err := svc.repo.GetNode(ctx, id)
	if err != nil {
		return Node{}, err
	}
	if node.Kind != kind {
		return Node{}, ErrNodeNotFound
	}
	return node, nil
}

func (svc *Service) QueryNodes(ctx context.Context, filter NodeFilter, ordering ...core.DBOrdering) ([]Node, error) {
	if ordering == nil {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	return svc.repo.QueryNodes(ctx, filter, ordering)
}

// Options lists the nodes of kind under parent, as hierarchy options.
func (svc *Service) Options(ctx context.Context, kind hierarchy.Kind, parent string) ([]hierarchy.Option, error) {
	filter := NodeFilter{Kind: kind}
	if _, ok := kind.Parent(); ok {
		if parent == "" {
			return nil, nil
		}
		filter.ParentID = parent
	}
	nodes, err := svc.QueryNodes(ctx, filter)
	if err != nil {
		return nil, err
	}
	opts := make([]hierarchy.Option, 0, len(nodes))
	for _, n := range nodes {
		opts = append(opts, n.Option())
	}
	return opts, nil
}

func (svc *Service) UpdateNode(ctx context.Context, usr user.User, id string, un UpdateNode) (Node, error) {
	un.Name = core.CleanString(un.Name)
	un.Code = core.CleanString(un.Code)
	if err := svc.validateStruct(un); err != nil {
		return Node{}, err
	}
	node, err := svc.repo.GetNode(ctx, id)
	if err != nil {
		return Node{}, err
	}
	if !canManage(usr, node.Kind) {
		return Node{}, core.ErrPermissionDenied
	}

	node.Name = un.Name
	node.Code = un.Code
	node.Image = un.Image
	node.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateNode(ctx, node)
}

// DeleteNode refuses to delete nodes that still have children.
func (svc *Service) DeleteNode(ctx context.Context, usr user.User, id string) error {
	node, err := svc.repo.GetNode(ctx, id)
	if err != nil {
		return err
	}
	if !canManage(usr, node.Kind) {
		return core.ErrPermissionDenied
	}

	children, err := svc.repo.CountNodes(ctx, NodeFilter{ParentID: id})
	if err != nil {
		return err
	}
	if children > 0 {
		return core.NewRuleError(fmt.Sprintf("%q still has %d item(s) under it; delete them first", node.Name, children))
	}
	_, err = svc.repo.DeleteNodesByID(ctx, []string{id})
	return err
}

// Marks

func (svc *Service) checkMark(ctx context.Context, nm NewMark) error {
	if err := svc.validateStruct(nm); err != nil {
		return err
	}
	if nm.Score > nm.MaxScore {
		return core.NewValidationError(errors.New(invalidDataMsg), core.FieldError{Field: "score", Error: "score cannot exceed the max score"})
	}
	if _, err := svc.GetNodeOf(ctx, hierarchy.Class, nm.ClassID); err != nil {
		return trapNodeNotFound(err, "class_id")
	}
	if _, err := svc.GetNodeOf(ctx, hierarchy.Subject, nm.SubjectID); err != nil {
		return trapNodeNotFound(err, "subject_id")
	}
	return nil
}

func (svc *Service) CreateMark(ctx context.Context, usr user.User, nm NewMark) (Mark, error) {
	if !canRecord(usr) {
		return Mark{}, core.ErrPermissionDenied
	}
	nm.Student = core.CleanString(nm.Student)
	if err := svc.checkMark(ctx, nm); err != nil {
		return Mark{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateMark(ctx, Mark{
		ClassID:   nm.ClassID,
		SubjectID: nm.SubjectID,
		Student:   nm.Student,
		Score:     nm.Score,
		MaxScore:  nm.MaxScore,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) GetMark(ctx context.Context, id string) (Mark, error) {
	return svc.repo.GetMark(ctx, id)
}

func (svc *Service) QueryMarks(ctx context.Context, filter MarkFilter) ([]Mark, error) {
	return svc.repo.QueryMarks(ctx, filter)
}

func (svc *Service) UpdateMark(ctx context.Context, usr user.User, id string, nm NewMark) (Mark, error) {
	if !canRecord(usr) {
		return Mark{}, core.ErrPermissionDenied
	}
	mark, err := svc.repo.GetMark(ctx, id)
	if err != nil {
		return Mark{}, err
	}
	nm.Student = core.CleanString(nm.Student)
	if err := svc.checkMark(ctx, nm); err != nil {
		return Mark{}, err
	}
	mark.ClassID = nm.ClassID
	mark.SubjectID = nm.SubjectID
	mark.Student = nm.Student
	mark.Score = nm.Score
	mark.MaxScore = nm.MaxScore
	mark.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateMark(ctx, mark)
}

func (svc *Service) DeleteMark(ctx context.Context, usr user.User, id string) error {
	if !canRecord(usr) {
		return core.ErrPermissionDenied
	}
	if _, err := svc.repo.GetMark(ctx, id); err != nil {
		return err
	}
	_, err := svc.repo.DeleteMarksByID(ctx, []string{id})
	return err
}

// Attendance

func (svc *Service) checkAttendance(ctx context.Context, na NewAttendance, excludeID string) error {
	if err := svc.validateStruct(na); err != nil {
		return err
	}
	if _, err := svc.GetNodeOf(ctx, hierarchy.Class, na.ClassID); err != nil {
		return trapNodeNotFound(err, "class_id")
	}

	day := truncateDay(na.Day)
	existing, err := svc.repo.QueryAttendance(ctx, AttendanceFilter{ClassID: na.ClassID, Student: na.Student, From: day, To: day})
	if err != nil {
		return err
	}
	for _, att := range existing {
		if att.ID != excludeID {
			return core.NewRuleError(ErrAttendanceExists.Error())
		}
	}
	return nil
}

func (svc *Service) CreateAttendance(ctx context.Context, usr user.User, na NewAttendance) (Attendance, error) {
	if !canRecord(usr) {
		return Attendance{}, core.ErrPermissionDenied
	}
	na.Student = core.CleanString(na.Student)
	if err := svc.checkAttendance(ctx, na, ""); err != nil {
		return Attendance{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateAttendance(ctx, Attendance{
		ClassID:   na.ClassID,
		Student:   na.Student,
		Day:       truncateDay(na.Day),
		Present:   na.Present,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) GetAttendance(ctx context.Context, id string) (Attendance, error) {
	return svc.repo.GetAttendance(ctx, id)
}

func (svc *Service) QueryAttendance(ctx context.Context, filter AttendanceFilter) ([]Attendance, error) {
	return svc.repo.QueryAttendance(ctx, filter)
}

func (svc *Service) UpdateAttendance(ctx context.Context, usr user.User, id string, na NewAttendance) (Attendance, error) {
	if !canRecord(usr) {
		return Attendance{}, core.ErrPermissionDenied
	}
	att, err := svc.repo.GetAttendance(ctx, id)
	if err != nil {
		return Attendance{}, err
	}
	na.Student = core.CleanString(na.Student)
	if err := svc.checkAttendance(ctx, na, id); err != nil {
		return Attendance{}, err
	}
	att.ClassID = na.ClassID
	att.Student = na.Student
	att.Day = truncateDay(na.Day)
	att.Present = na.Present
	att.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAttendance(ctx, att)
}

func (svc *Service) DeleteAttendance(ctx context.Context, usr user.User, id string) error {
	if !canRecord(usr) {
		return core.ErrPermissionDenied
	}
	if _, err := svc.repo.GetAttendance(ctx, id); err != nil {
		return err
	}
	_, err := svc.repo.DeleteAttendanceByID(ctx, []string{id})
	return err
}

// Materials

func (svc *Service) checkMaterial(ctx context.Context, nm NewMaterial) error {
	if err := svc.validateStruct(nm); err != nil {
		return err
	}
	if _, err := svc.GetNodeOf(ctx, hierarchy.Chapter, nm.ChapterID); err != nil {
		return trapNodeNotFound(err, "chapter_id")
	}
	return nil
}

func (svc *Service) CreateMaterial(ctx context.Context, usr user.User, nm NewMaterial) (Material, error) {
	if !canRecord(usr) {
		return Material{}, core.ErrPermissionDenied
	}
	nm.Title = core.CleanString(nm.Title)
	nm.URL = core.CleanString(nm.URL)
	if err := svc.checkMaterial(ctx, nm); err != nil {
		return Material{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateMaterial(ctx, Material{
		ChapterID: nm.ChapterID,
		Title:     nm.Title,
		Kind:      nm.Kind,
		URL:       nm.URL,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) GetMaterial(ctx context.Context, id string) (Material, error) {
	return svc.repo.GetMaterial(ctx, id)
}

func (svc *Service) QueryMaterials(ctx context.Context, filter MaterialFilter) ([]Material, error) {
	return svc.repo.QueryMaterials(ctx, filter)
}

func (svc *Service) UpdateMaterial(ctx context.Context, usr user.User, id string, nm NewMaterial) (Material, error) {
	if !canRecord(usr) {
		return Material{}, core.ErrPermissionDenied
	}
	mat, err := svc.repo.GetMaterial(ctx, id)
	if err != nil {
		return Material{}, err
	}
	nm.Title = core.CleanString(nm.Title)
	nm.URL = core.CleanString(nm.URL)
	if err := svc.checkMaterial(ctx, nm); err != nil {
		return Material{}, err
	}
	mat.ChapterID = nm.ChapterID
	mat.Title = nm.Title
	mat.Kind = nm.Kind
	mat.URL = nm.URL
	mat.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateMaterial(ctx, mat)
}

func (svc *Service) DeleteMaterial(ctx context.Context, usr user.User, id string) error {
	if !canRecord(usr) {
		return core.ErrPermissionDenied
	}
	if _, err := svc.repo.GetMaterial(ctx, id); err != nil {
		return err
	}
	_, err := svc.repo.DeleteMaterialsByID(ctx, []string{id})
	return err
}

func trapNodeNotFound(err error, field string) error {
	if errors.Cause(err) == ErrNodeNotFound {
		return core.NewValidationError(errors.New(invalidDataMsg), core.FieldError{Field: field, Error: "not found"})
	}
	return err
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
