package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academy"
)

type academyRepository struct {
	db *DB
}

var _ academy.Repository = (*academyRepository)(nil) // interface compliance check

func NewAcademyRepository(db *DB) academy.Repository {
	return &academyRepository{db: db}
}

// Nodes

func nodeMatches(n academy.Node, filter academy.NodeFilter) bool {
	if filter.Kind != "" && n.Kind != filter.Kind {
		return false
	}
	if filter.ParentID != "" && n.ParentID != filter.ParentID {
		return false
	}
	if len(filter.IDs) > 0 && !contains(filter.IDs, n.ID) {
		return false
	}
	if filter.Search != "" && !core.ContainsFold(n.Name, filter.Search) && !core.ContainsFold(n.Code, filter.Search) {
		return false
	}
	return true
}

func (repo *academyRepository) queryNodes(filter academy.NodeFilter) []academy.Node {
	nodes := make([]academy.Node, 0)
	for _, n := range repo.db.node.table {
		if nodeMatches(*n, filter) {
			nodes = append(nodes, *n)
		}
	}
	return nodes
}

func (repo *academyRepository) CreateNode(_ context.Context, node academy.Node, _ ...core.DBExecutor) (academy.Node, error) {
	repo.db.node.Lock()
	defer repo.db.node.Unlock()

	node.ID = uuid.New().String()
	repo.db.node.table[node.ID] = &node
	return node, nil
}

func (repo *academyRepository) GetNode(_ context.Context, id string, _ ...core.DBExecutor) (academy.Node, error) {
	repo.db.node.RLock()
	defer repo.db.node.RUnlock()

	if n, ok := repo.db.node.table[id]; ok {
		return *n, nil
	}
	return academy.Node{}, academy.ErrNodeNotFound
}

func (repo *academyRepository) QueryNodes(_ context.Context, filter academy.NodeFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]academy.Node, error) {
	repo.db.node.RLock()
	defer repo.db.node.RUnlock()

	nodes := repo.queryNodes(filter)
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		for _, ord := range ordering {
			var va, vb string
			switch ord.Field {
			case "name":
				va, vb = strings.ToLower(a.Name), strings.ToLower(b.Name)
			case "code":
				va, vb = a.Code, b.Code
			case "created_at":
				va, vb = a.CreatedAt.Format("20060102150405.000000000"), b.CreatedAt.Format("20060102150405.000000000")
			default:
				continue
			}
			if va != vb {
				return (va < vb) == ord.Ascending
			}
		}
		return a.ID < b.ID
	})
	return nodes, nil
}

func (repo *academyRepository) CountNodes(_ context.Context, filter academy.NodeFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.node.RLock()
	defer repo.db.node.RUnlock()
	return len(repo.queryNodes(filter)), nil
}

func (repo *academyRepository) UpdateNode(_ context.Context, node academy.Node, _ ...core.DBExecutor) (academy.Node, error) {
	repo.db.node.Lock()
	defer repo.db.node.Unlock()

	if _, ok := repo.db.node.table[node.ID]; !ok {
		return academy.Node{}, academy.ErrNodeNotFound
	}
	repo.db.node.table[node.ID] = &node
	return node, nil
}

func (repo *academyRepository) DeleteNodesByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.node.Lock()
	defer repo.db.node.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.node.table[id]; ok {
			delete(repo.db.node.table, id)
			cnt++
		}
	}
	return cnt, nil
}

// Marks

func (repo *academyRepository) CreateMark(_ context.Context, mark academy.Mark, _ ...core.DBExecutor) (academy.Mark, error) {
	repo.db.mark.Lock()
	defer repo.db.mark.Unlock()

	mark.ID = uuid.New().String()
	repo.db.mark.table[mark.ID] = &mark
	return mark, nil
}

func (repo *academyRepository) GetMark(_ context.Context, id string, _ ...core.DBExecutor) (academy.Mark, error) {
	repo.db.mark.RLock()
	defer repo.db.mark.RUnlock()

	if m, ok := repo.db.mark.table[id]; ok {
		return *m, nil
	}
	return academy.Mark{}, academy.ErrMarkNotFound
}

func (repo *academyRepository) QueryMarks(_ context.Context, filter academy.MarkFilter, _ ...core.DBExecutor) ([]academy.Mark, error) {
	repo.db.mark.RLock()
	defer repo.db.mark.RUnlock()

	marks := make([]academy.Mark, 0)
	for _, m := range repo.db.mark.table {
		if (filter.ClassID == "" || m.ClassID == filter.ClassID) &&
			(filter.SubjectID == "" || m.SubjectID == filter.SubjectID) &&
			(filter.Search == "" || core.ContainsFold(m.Student, filter.Search)) {
			marks = append(marks, *m)
		}
	}
	sort.Slice(marks, func(i, j int) bool {
		if marks[i].Student != marks[j].Student {
			return marks[i].Student < marks[j].Student
		}
		return marks[i].ID < marks[j].ID
	})
	return marks, nil
}

func (repo *academyRepository) UpdateMark(_ context.Context, mark academy.Mark, _ ...core.DBExecutor) (academy.Mark, error) {
	repo.db.mark.Lock()
	defer repo.db.mark.Unlock()

	if _, ok := repo.db.mark.table[mark.ID]; !ok {
		return academy.Mark{}, academy.ErrMarkNotFound
	}
	repo.db.mark.table[mark.ID] = &mark
	return mark, nil
}

func (repo *academyRepository) DeleteMarksByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mark.Lock()
	defer repo.db.mark.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.mark.table[id]; ok {
			delete(repo.db.mark.table, id)
			cnt++
		}
	}
	return cnt, nil
}

// Attendance

func (repo *academyRepository) CreateAttendance(_ context.Context, att academy.Attendance, _ ...core.DBExecutor) (academy.Attendance, error) {
	repo.db.attendance.Lock()
	defer repo.db.attendance.Unlock()

	att.ID = uuid.New().String()
	repo.db.attendance.table[att.ID] = &att
	return att, nil
}

func (repo *academyRepository) GetAttendance(_ context.Context, id string, _ ...core.DBExecutor) (academy.Attendance, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	if a, ok := repo.db.attendance.table[id]; ok {
		return *a, nil
	}
	return academy.Attendance{}, academy.ErrAttendanceNotFound
}

func (repo *academyRepository) QueryAttendance(_ context.Context, filter academy.AttendanceFilter, _ ...core.DBExecutor) ([]academy.Attendance, error) {
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	atts := make([]academy.Attendance, 0)
	for _, a := range repo.db.attendance.table {
		if (filter.ClassID == "" || a.ClassID == filter.ClassID) &&
			(filter.Student == "" || strings.EqualFold(a.Student, filter.Student)) &&
			(filter.From.IsZero() || !a.Day.Before(filter.From)) &&
			(filter.To.IsZero() || !a.Day.After(filter.To)) &&
			(filter.Search == "" || core.ContainsFold(a.Student, filter.Search)) {
			atts = append(atts, *a)
		}
	}
	sort.Slice(atts, func(i, j int) bool {
		if !atts[i].Day.Equal(atts[j].Day) {
			return atts[i].Day.After(atts[j].Day)
		}
		if atts[i].Student != atts[j].Student {
			return atts[i].Student < atts[j].Student
		}
		return atts[i].ID < atts[j].ID
	})
	return atts, nil
}

func (repo *academyRepository) UpdateAttendance(_ context.Context, att academy.Attendance, _ ...core.DBExecutor) (academy.Attendance, error) {
	repo.db.attendance.Lock()
	defer repo.db.attendance.Unlock()

	if _, ok := repo.db.attendance.table[att.ID]; !ok {
		return academy.Attendance{}, academy.ErrAttendanceNotFound
	}
	repo.db.attendance.table[att.ID] = &att
	return att, nil
}

func (repo *academyRepository) DeleteAttendanceByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.attendance.Lock()
	defer repo.db.attendance.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.attendance.table[id]; ok {
			delete(repo.db.attendance.table, id)
			cnt++
		}
	}
	return cnt, nil
}

// Materials

func (repo *academyRepository) CreateMaterial(_ context.Context, mat academy.Material, _ ...core.DBExecutor) (academy.Material, error) {
	repo.db.material.Lock()
	defer repo.db.material.Unlock()

	mat.ID = uuid.New().String()
	repo.db.material.table[mat.ID] = &mat
	return mat, nil
}

func (repo *academyRepository) GetMaterial(_ context.Context, id string, _ ...core.DBExecutor) (academy.Material, error) {
	repo.db.material.RLock()
	defer repo.db.material.RUnlock()

	if m, ok := repo.db.material.table[id]; ok {
		return *m, nil
	}
	return academy.Material{}, academy.ErrMaterialNotFound
}

func (repo *academyRepository) QueryMaterials(_ context.Context, filter academy.MaterialFilter, _ ...core.DBExecutor) ([]academy.Material, error) {
	repo.db.material.RLock()
	defer repo.db.material.RUnlock()

	mats := make([]academy.Material, 0)
	for _, m := range repo.db.material.table {
		if (filter.ChapterID == "" || m.ChapterID == filter.ChapterID) &&
			(filter.Kind == "" || m.Kind == filter.Kind) &&
			(filter.Search == "" || core.ContainsFold(m.Title, filter.Search)) {
			mats = append(mats, *m)
		}
	}
	sort.Slice(mats, func(i, j int) bool {
		if mats[i].Title != mats[j].Title {
			return mats[i].Title < mats[j].Title
		}
		return mats[i].ID < mats[j].ID
	})
	return mats, nil
}

func (repo *academyRepository) UpdateMaterial(_ context.Context, mat academy.Material, _ ...core.DBExecutor) (academy.Material, error) {
	repo.db.material.Lock()
	defer repo.db.material.Unlock()

	if _, ok := repo.db.material.table[mat.ID]; !ok {
		return academy.Material{}, academy.ErrMaterialNotFound
	}
	repo.db.material.table[mat.ID] = &mat
	return mat, nil
}

func (repo *academyRepository) DeleteMaterialsByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.material.Lock()
	defer repo.db.material.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.material.table[id]; ok {
			delete(repo.db.material.table, id)
			cnt++
		}
	}
	return cnt, nil
}

func contains(list []string, s string) bool {
	for _, it := range list {
		if it == s {
			return true
		}
	}
	return false
}
