package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academy"
	"github.com/trezcool/shule/core/hierarchy"
)

const (
	nodeTable       = "nodes"
	markTable       = "marks"
	attendanceTable = "attendance"
	materialTable   = "materials"
)

var (
	nodeColumns       = []string{"id", "kind", "parent_id", "name", "code", "image", "created_at", "updated_at"}
	markColumns       = []string{"id", "class_id", "subject_id", "student", "score", "max_score", "created_at", "updated_at"}
	attendanceColumns = []string{"id", "class_id", "student", "day", "present", "created_at", "updated_at"}
	materialColumns   = []string{"id", "chapter_id", "title", "kind", "url", "created_at", "updated_at"}
)

type (
	nodeRow struct {
		ID        string      `boil:"id"`
		Kind      string      `boil:"kind"`
		ParentID  null.String `boil:"parent_id"`
		Name      string      `boil:"name"`
		Code      null.String `boil:"code"`
		Image     null.String `boil:"image"`
		CreatedAt time.Time   `boil:"created_at"`
		UpdatedAt time.Time   `boil:"updated_at"`
	}

	markRow struct {
		ID        string    `boil:"id"`
		ClassID   string    `boil:"class_id"`
		SubjectID string    `boil:"subject_id"`
		Student   string    `boil:"student"`
		Score     float64   `boil:"score"`
		MaxScore  float64   `boil:"max_score"`
		CreatedAt time.Time `boil:"created_at"`
		UpdatedAt time.Time `boil:"updated_at"`
	}

	attendanceRow struct {
		ID        string    `boil:"id"`
		ClassID   string    `boil:"class_id"`
		Student   string    `boil:"student"`
		Day       time.Time `boil:"day"`
		Present   bool      `boil:"present"`
		CreatedAt time.Time `boil:"created_at"`
		UpdatedAt time.Time `boil:"updated_at"`
	}

	materialRow struct {
		ID        string    `boil:"id"`
		ChapterID string    `boil:"chapter_id"`
		Title     string    `boil:"title"`
		Kind      string    `boil:"kind"`
		URL       string    `boil:"url"`
		CreatedAt time.Time `boil:"created_at"`
		UpdatedAt time.Time `boil:"updated_at"`
	}
)

func (r nodeRow) unboil() academy.Node {
	return academy.Node{
		ID:        r.ID,
		Kind:      hierarchy.Kind(r.Kind),
		ParentID:  r.ParentID.String,
		Name:      r.Name,
		Code:      r.Code.String,
		Image:     r.Image.String,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r markRow) unboil() academy.Mark {
	return academy.Mark{
		ID:        r.ID,
		ClassID:   r.ClassID,
		SubjectID: r.SubjectID,
		Student:   r.Student,
		Score:     r.Score,
		MaxScore:  r.MaxScore,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r attendanceRow) unboil() academy.Attendance {
	return academy.Attendance{
		ID:        r.ID,
		ClassID:   r.ClassID,
		Student:   r.Student,
		Day:       r.Day.UTC(),
		Present:   r.Present,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r materialRow) unboil() academy.Material {
	return academy.Material{
		ID:        r.ID,
		ChapterID: r.ChapterID,
		Title:     r.Title,
		Kind:      r.Kind,
		URL:       r.URL,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type academyRepository struct {
	exec core.DBExecutor
}

var _ academy.Repository = (*academyRepository)(nil) // interface compliance check

func NewAcademyRepository(exec core.DBExecutor) academy.Repository {
	return &academyRepository{exec: exec}
}

// Nodes

func nodeValues(n academy.Node) []interface{} {
	return []interface{}{
		n.ID,
		string(n.Kind),
		null.NewString(n.ParentID, n.ParentID != ""),
		n.Name,
		null.NewString(n.Code, n.Code != ""),
		null.NewString(n.Image, n.Image != ""),
		n.CreatedAt.UTC(),
		n.UpdatedAt.UTC(),
	}
}

func nodeMods(filter academy.NodeFilter) []qm.QueryMod {
	var mods []qm.QueryMod
	if filter.Kind != "" {
		mods = append(mods, qm.Where(quote("kind")+" = ?", string(filter.Kind)))
	}
	if filter.ParentID != "" {
		mods = append(mods, qm.Where(quote("parent_id")+" = ?", filter.ParentID))
	}
	if len(filter.IDs) > 0 {
		mods = append(mods, whereIn("id", filter.IDs))
	}
	if filter.Search != "" {
		mods = append(mods, ilike(filter.Search, "name", "code"))
	}
	return mods
}

func (repo *academyRepository) CreateNode(ctx context.Context, node academy.Node, exec ...core.DBExecutor) (academy.Node, error) {
	node.ID = uuid.New().String()
	if err := insert(ctx, getExec(repo.exec, exec), nodeTable, nodeColumns, nodeValues(node)...); err != nil {
		return academy.Node{}, err
	}
	return node, nil
}

func (repo *academyRepository) GetNode(ctx context.Context, id string, exec ...core.DBExecutor) (academy.Node, error) {
	if _, err := uuid.Parse(id); err != nil {
		return academy.Node{}, academy.ErrNodeNotFound
	}
	var row nodeRow
	if err := getOne(ctx, getExec(repo.exec, exec), nodeTable, id, academy.ErrNodeNotFound, &row); err != nil {
		return academy.Node{}, err
	}
	return row.unboil(), nil
}

func (repo *academyRepository) QueryNodes(ctx context.Context, filter academy.NodeFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]academy.Node, error) {
	mods := append([]qm.QueryMod{qm.From(quote(nodeTable))}, nodeMods(filter)...)
	mods = append(mods, orderBy(ordering, "name", "code", "created_at"))

	var rows []*nodeRow
	if err := newQuery(mods...).Bind(ctx, getExec(repo.exec, exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying nodes")
	}
	nodes := make([]academy.Node, 0, len(rows))
	for _, r := range rows {
		nodes = append(nodes, r.unboil())
	}
	return nodes, nil
}

func (repo *academyRepository) CountNodes(ctx context.Context, filter academy.NodeFilter, exec ...core.DBExecutor) (int, error) {
	return count(ctx, getExec(repo.exec, exec), nodeTable, nodeMods(filter)...)
}

func (repo *academyRepository) UpdateNode(ctx context.Context, node academy.Node, exec ...core.DBExecutor) (academy.Node, error) {
	vals := nodeValues(node)
	if err := update(ctx, getExec(repo.exec, exec), nodeTable, node.ID, academy.ErrNodeNotFound, nodeColumns[1:], vals[1:]...); err != nil {
		return academy.Node{}, err
	}
	return node, nil
}

func (repo *academyRepository) DeleteNodesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	return deleteByID(ctx, getExec(repo.exec, exec), nodeTable, ids)
}

// Marks

func markValues(m academy.Mark) []interface{} {
	return []interface{}{m.ID, m.ClassID, m.SubjectID, m.Student, m.Score, m.MaxScore, m.CreatedAt.UTC(), m.UpdatedAt.UTC()}
}

func (repo *academyRepository) CreateMark(ctx context.Context, mark academy.Mark, exec ...core.DBExecutor) (academy.Mark, error) {
	mark.ID = uuid.New().String()
	if err := insert(ctx, getExec(repo.exec, exec), markTable, markColumns, markValues(mark)...); err != nil {
		return academy.Mark{}, err
	}
	return mark, nil
}

func (repo *academyRepository) GetMark(ctx context.Context, id string, exec ...core.DBExecutor) (academy.Mark, error) {
	if _, err := uuid.Parse(id); err != nil {
		return academy.Mark{}, academy.ErrMarkNotFound
	}
	var row markRow
	if err := getOne(ctx, getExec(repo.exec, exec), markTable, id, academy.ErrMarkNotFound, &row); err != nil {
		return academy.Mark{}, err
	}
	return row.unboil(), nil
}

func (repo *academyRepository) QueryMarks(ctx context.Context, filter academy.MarkFilter, exec ...core.DBExecutor) ([]academy.Mark, error) {
	mods := []qm.QueryMod{qm.From(quote(markTable))}
	if filter.ClassID != "" {
		mods = append(mods, qm.Where(quote("class_id")+" = ?", filter.ClassID))
	}
	if filter.SubjectID != "" {
		mods = append(mods, qm.Where(quote("subject_id")+" = ?", filter.SubjectID))
	}
	if filter.Search != "" {
		mods = append(mods, ilike(filter.Search, "student"))
	}
	mods = append(mods, orderBy([]core.DBOrdering{{Field: "student", Ascending: true}}, "student"))

	var rows []*markRow
	if err := newQuery(mods...).Bind(ctx, getExec(repo.exec, exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying marks")
	}
	marks := make([]academy.Mark, 0, len(rows))
	for _, r := range rows {
		marks = append(marks, r.unboil())
	}
	return marks, nil
}

func (repo *academyRepository) UpdateMark(ctx context.Context, mark academy.Mark, exec ...core.DBExecutor) (academy.Mark, error) {
	vals := markValues(mark)
	if err := update(ctx, getExec(repo.exec, exec), markTable, mark.ID, academy.ErrMarkNotFound, markColumns[1:], vals[1:]...); err != nil {
		return academy.Mark{}, err
	}
	return mark, nil
}

func (repo *academyRepository) DeleteMarksByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	return deleteByID(ctx, getExec(repo.exec, exec), markTable, ids)
}

// Attendance

func attendanceValues(a academy.Attendance) []interface{} {
	return []interface{}{a.ID, a.ClassID, a.Student, a.Day.UTC(), a.Present, a.CreatedAt.UTC(), a.UpdatedAt.UTC()}
}

func (repo *academyRepository) CreateAttendance(ctx context.Context, att academy.Attendance, exec ...core.DBExecutor) (academy.Attendance, error) {
	att.ID = uuid.New().String()
	if err := insert(ctx, getExec(repo.exec, exec), attendanceTable, attendanceColumns, attendanceValues(att)...); err != nil {
		return academy.Attendance{}, err
	}
	return att, nil
}

func (repo *academyRepository) GetAttendance(ctx context.Context, id string, exec ...core.DBExecutor) (academy.Attendance, error) {
	if _, err := uuid.Parse(id); err != nil {
		return academy.Attendance{}, academy.ErrAttendanceNotFound
	}
	var row attendanceRow
	if err := getOne(ctx, getExec(repo.exec, exec), attendanceTable, id, academy.ErrAttendanceNotFound, &row); err != nil {
		return academy.Attendance{}, err
	}
	return row.unboil(), nil
}

func (repo *academyRepository) QueryAttendance(ctx context.Context, filter academy.AttendanceFilter, exec ...core.DBExecutor) ([]academy.Attendance, error) {
	mods := []qm.QueryMod{qm.From(quote(attendanceTable))}
	if filter.ClassID != "" {
		mods = append(mods, qm.Where(quote("class_id")+" = ?", filter.ClassID))
	}
	if filter.Student != "" {
		mods = append(mods, qm.Where("lower("+quote("student")+") = lower(?)", filter.Student))
	}
	if !filter.From.IsZero() {
		mods = append(mods, qm.Where(quote("day")+" >= ?", filter.From.UTC()))
	}
	if !filter.To.IsZero() {
		mods = append(mods, qm.Where(quote("day")+" <= ?", filter.To.UTC()))
	}
	if filter.Search != "" {
		mods = append(mods, ilike(filter.Search, "student"))
	}
	mods = append(mods, orderBy([]core.DBOrdering{{Field: "day"}, {Field: "student", Ascending: true}}, "day", "student"))

	var rows []*attendanceRow
	if err := newQuery(mods...).Bind(ctx, getExec(repo.exec, exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	atts := make([]academy.Attendance, 0, len(rows))
	for _, r := range rows {
		atts = append(atts, r.unboil())
	}
	return atts, nil
}

func (repo *academyRepository) UpdateAttendance(ctx context.Context, att academy.Attendance, exec ...core.DBExecutor) (academy.Attendance, error) {
	vals := attendanceValues(att)
	if err := update(ctx, getExec(repo.exec, exec), attendanceTable, att.ID, academy.ErrAttendanceNotFound, attendanceColumns[1:], vals[1:]...); err != nil {
		return academy.Attendance{}, err
	}
	return att, nil
}

func (repo *academyRepository) DeleteAttendanceByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	return deleteByID(ctx, getExec(repo.exec, exec), attendanceTable, ids)
}

// Materials

func materialValues(m academy.Material) []interface{} {
	return []interface{}{m.ID, m.ChapterID, m.Title, m.Kind, m.URL, m.CreatedAt.UTC(), m.UpdatedAt.UTC()}
}

func (repo *academyRepository) CreateMaterial(ctx context.Context, mat academy.Material, exec ...core.DBExecutor) (academy.Material, error) {
	mat.ID = uuid.New().String()
	if err := insert(ctx, getExec(repo.exec, exec), materialTable, materialColumns, materialValues(mat)...); err != nil {
		return academy.Material{}, err
	}
	return mat, nil
}

func (repo *academyRepository) GetMaterial(ctx context.Context, id string, exec ...core.DBExecutor) (academy.Material, error) {
	if _, err := uuid.Parse(id); err != nil {
		return academy.Material{}, academy.ErrMaterialNotFound
	}
	var row materialRow
	if err := getOne(ctx, getExec(repo.exec, exec), materialTable, id, academy.ErrMaterialNotFound, &row); err != nil {
		return academy.Material{}, err
	}
	return row.unboil(), nil
}

func (repo *academyRepository) QueryMaterials(ctx context.Context, filter academy.MaterialFilter, exec ...core.DBExecutor) ([]academy.Material, error) {
	mods := []qm.QueryMod{qm.From(quote(materialTable))}
	if filter.ChapterID != "" {
		mods = append(mods, qm.Where(quote("chapter_id")+" = ?", filter.ChapterID))
	}
	if filter.Kind != "" {
		mods = append(mods, qm.Where(quote("kind")+" = ?", filter.Kind))
	}
	if filter.Search != "" {
		mods = append(mods, ilike(filter.Search, "title"))
	}
	mods = append(mods, orderBy([]core.DBOrdering{{Field: "title", Ascending: true}}, "title"))

	var rows []*materialRow
	if err := newQuery(mods...).Bind(ctx, getExec(repo.exec, exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying materials")
	}
	mats := make([]academy.Material, 0, len(rows))
	for _, r := range rows {
		mats = append(mats, r.unboil())
	}
	return mats, nil
}

func (repo *academyRepository) UpdateMaterial(ctx context.Context, mat academy.Material, exec ...core.DBExecutor) (academy.Material, error) {
	vals := materialValues(mat)
	if err := update(ctx, getExec(repo.exec, exec), materialTable, mat.ID, academy.ErrMaterialNotFound, materialColumns[1:], vals[1:]...); err != nil {
		return academy.Material{}, err
	}
	return mat, nil
}

func (repo *academyRepository) DeleteMaterialsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	return deleteByID(ctx, getExec(repo.exec, exec), materialTable, ids)
}
