package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/academy"
	"github.com/trezcool/shule/core/approval"
	"github.com/trezcool/shule/core/hierarchy"
)

// Fixture is a set of rows to load, parents before children.
type Fixture struct {
	Nodes    []academy.Node
	Marks    []academy.Mark
	Requests []approval.Request
}

// DemoFixture is a small school: one institution down to two classes, a subject with
// chapters, a few marks and two requests.
func DemoFixture(now time.Time) Fixture {
	now = now.UTC()
	var f Fixture
	node := func(kind hierarchy.Kind, parent *academy.Node, name, code string) academy.Node {
		n := academy.Node{ID: uuid.New().String(), Kind: kind, Name: name, Code: code, CreatedAt: now, UpdatedAt: now}
		if parent != nil {
			n.ParentID = parent.ID
		}
		f.Nodes = append(f.Nodes, n)
		return n
	}

	inst := node(hierarchy.Institution, nil, "Greenfield Academy", "GFA")
	course := node(hierarchy.Course, &inst, "Sciences", "SCI")
	level := node(hierarchy.Level, &course, "Year 1", "Y1")
	prog := node(hierarchy.Programme, &level, "General", "GEN")
	batch := node(hierarchy.Batch, &prog, fmt.Sprintf("Intake %d", now.Year()), "")
	classes := []academy.Node{
		node(hierarchy.Class, &batch, "Class A", "A"),
		node(hierarchy.Class, &batch, "Class B", "B"),
	}
	maths := node(hierarchy.Subject, &level, "Mathematics", "MATH")
	node(hierarchy.Chapter, &maths, "Algebra", "")
	node(hierarchy.Chapter, &maths, "Geometry", "")

	scores := []struct {
		student string
		score   float64
	}{{"Alice Mwamba", 86}, {"Bob Ilunga", 64}, {"Chloe Kasongo", 41}}
	for i, s := range scores {
		f.Marks = append(f.Marks, academy.Mark{
			ID:        uuid.New().String(),
			ClassID:   classes[i%len(classes)].ID,
			SubjectID: maths.ID,
			Student:   s.student,
			Score:     s.score,
			MaxScore:  100,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	f.Requests = []approval.Request{
		{
			ID: uuid.New().String(), Kind: approval.KindExpense, ScopeID: inst.ID, Title: "Lab equipment", Amount: 1250,
			RequestedBy: "demo-teacher", RequestedByName: "Demo Teacher", Status: approval.StatusPending,
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: uuid.New().String(), Kind: approval.KindCompletion, ScopeID: maths.ID, Title: "Algebra completed",
			RequestedBy: "demo-teacher", RequestedByName: "Demo Teacher", Status: approval.StatusApproved,
			CreatedAt: now, UpdatedAt: now,
		},
	}
	return f
}
