package screen_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academy"
	"github.com/trezcool/shule/core/approval"
	"github.com/trezcool/shule/core/export"
	"github.com/trezcool/shule/core/form"
	"github.com/trezcool/shule/core/grid"
	"github.com/trezcool/shule/core/hierarchy"
	"github.com/trezcool/shule/core/screen"
	testutil "github.com/trezcool/shule/tests"
)

func filterView(t *testing.T, view grid.View, key string) grid.FilterView {
	t.Helper()
	for _, fv := range view.Filters {
		if fv.Key == key {
			return fv
		}
	}
	t.Fatalf("no %q filter in view", key)
	return grid.FilterView{}
}

func optionCount(t *testing.T, fv grid.FilterView, value string) int {
	t.Helper()
	for _, ov := range fv.Options {
		if ov.Value == value {
			require.NotNil(t, ov.Count, "option %q has no count", value)
			return *ov.Count
		}
	}
	t.Fatalf("no %q option in filter %q", value, fv.Key)
	return 0
}

func hasToolbar(view grid.View, action grid.Action) bool {
	for _, c := range view.Toolbar {
		if c.Action == action {
			return true
		}
	}
	return false
}

func TestLoadDefinitions(t *testing.T) {
	env := testutil.NewEnv(t)

	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name: "valid",
			yaml: `
screens:
  - name: courses
    title: Courses
    entity: node
    kind: course
    chain: [institution]
    columns: [name]
`,
		},
		{
			name: "broken chain",
			yaml: `
screens:
  - name: levels
    title: Levels
    entity: node
    kind: level
    chain: [institution, level]
    columns: [name]
`,
			wantErr: hierarchy.ErrInvalidChain,
		},
		{
			name: "chain not leading to kind",
			yaml: `
screens:
  - name: levels
    title: Levels
    entity: node
    kind: level
    chain: [institution]
    columns: [name]
`,
			wantErr: screen.ErrInvalidDefinition,
		},
		{
			name: "unknown action",
			yaml: `
screens:
  - name: institutions
    title: Institutions
    entity: node
    kind: institution
    columns: [name]
    actions: [archive]
`,
			wantErr: screen.ErrInvalidDefinition,
		},
		{
			name: "unsafe field name",
			yaml: `
screens:
  - name: institutions
    title: Institutions
    entity: node
    kind: institution
    columns: [name]
    fields:
      - {name: first-name, kind: text}
`,
			wantErr: screen.ErrInvalidDefinition,
		},
		{
			name: "drill into unknown screen",
			yaml: `
screens:
  - name: institutions
    title: Institutions
    entity: node
    kind: institution
    columns: [name]
    drill: courses
`,
			wantErr: screen.ErrInvalidDefinition,
		},
		{
			name: "marks outside a class",
			yaml: `
screens:
  - name: marks
    title: Marks
    entity: mark
    chain: [institution, course]
    columns: [student]
`,
			wantErr: screen.ErrInvalidDefinition,
		},
		{
			name: "unknown top-level key",
			yaml: `
pages: []
screens:
  - name: institutions
    title: Institutions
    entity: node
    kind: institution
    columns: [name]
`,
			wantErr: screen.ErrInvalidDefinition,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs, err := screen.LoadDefinitions(strings.NewReader(tt.yaml), env.Validate, env.Translator)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Len(t, defs, 1)
				return
			}
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}
}

func TestLoadDefinitions_validation(t *testing.T) {
	env := testutil.NewEnv(t)
	_, err := screen.LoadDefinitions(strings.NewReader(`
screens:
  - name: institutions
    entity: school
    columns: [name]
`), env.Validate, env.Translator)
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "want *core.ValidationError, got %v", err)
	assert.NotEmpty(t, vErr.Fields)
}

func TestRegistry_List(t *testing.T) {
	env := testutil.NewEnv(t)

	names := func(list []screen.Summary) []string {
		out := make([]string, 0, len(list))
		for _, s := range list {
			out = append(out, s.Name)
		}
		return out
	}

	teacher := names(env.Registry.List(testutil.Teacher))
	assert.Contains(t, teacher, "marks")
	assert.Contains(t, teacher, "expenses")

	student := names(env.Registry.List(testutil.Student))
	assert.Contains(t, student, "institutions")
	assert.Contains(t, student, "materials")
	assert.NotContains(t, student, "marks")
	assert.NotContains(t, student, "expenses")

	_, err := env.Registry.Get("nope")
	assert.True(t, core.IsNotFound(err))
}

func TestScreen_cascade(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	scr := env.Screen(t, "levels")

	one := testutil.SeedChain(t, env.Academy, hierarchy.Chain{hierarchy.Institution, hierarchy.Course}, "One")
	two := testutil.SeedChain(t, env.Academy, hierarchy.Chain{hierarchy.Institution, hierarchy.Course}, "Two")
	testutil.CreateNode(t, env.Academy, hierarchy.Level, one[hierarchy.Course].ID, "Level One")

	st := screen.State{Filters: testutil.Selection(scr.Chain(), one), Selected: "x"}

	t.Run("complete chain lists rows", func(t *testing.T) {
		g, frame, err := scr.Grid(ctx, testutil.Admin, st)
		require.NoError(t, err)
		view := g.Render()
		require.Len(t, view.Rows, 1)
		assert.Equal(t, "Level One", view.Rows[0].Cells[0].Text)
		assert.True(t, hasToolbar(view, grid.ActionAddNew))
		assert.Equal(t, st.Filters, frame.Outcome().State.Filters)
	})

	t.Run("upper change resets lower levels", func(t *testing.T) {
		out, err := scr.Handle(ctx, testutil.Admin, st, grid.Event{
			Kind: grid.EventFilterChange, Key: string(hierarchy.Institution), Value: two[hierarchy.Institution].ID,
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"institution": two[hierarchy.Institution].ID}, out.State.Filters)
		assert.Empty(t, out.State.Selected)
	})

	t.Run("same value changes nothing", func(t *testing.T) {
		out, err := scr.Handle(ctx, testutil.Admin, st, grid.Event{
			Kind: grid.EventFilterChange, Key: string(hierarchy.Institution), Value: one[hierarchy.Institution].ID,
		})
		require.NoError(t, err)
		assert.Equal(t, st.Filters, out.State.Filters)
		assert.Equal(t, "x", out.State.Selected)
	})

	t.Run("unknown option", func(t *testing.T) {
		_, err := scr.Handle(ctx, testutil.Admin, st, grid.Event{
			Kind: grid.EventFilterChange, Key: string(hierarchy.Course), Value: two[hierarchy.Course].ID,
		})
		assert.Equal(t, grid.ErrInvalidOption, errors.Cause(err))
	})

	t.Run("incomplete chain has no rows", func(t *testing.T) {
		partial := screen.State{Filters: map[string]string{"institution": one[hierarchy.Institution].ID}}
		g, _, err := scr.Grid(ctx, testutil.Admin, partial)
		require.NoError(t, err)
		view := g.Render()
		assert.True(t, view.Empty)
		assert.Equal(t, "Select a course to see the levels", view.EmptyText)
		assert.False(t, hasToolbar(view, grid.ActionAddNew))
		assert.False(t, filterView(t, view, "course").Disabled)
	})

	t.Run("stale selection is dropped", func(t *testing.T) {
		mixed := screen.State{Filters: map[string]string{
			"institution": one[hierarchy.Institution].ID,
			"course":      two[hierarchy.Course].ID,
		}}
		_, frame, err := scr.Grid(ctx, testutil.Admin, mixed)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"institution": one[hierarchy.Institution].ID}, frame.Outcome().State.Filters)
	})
}

func TestScreen_drill(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	scr := env.Screen(t, "institutions")
	inst := testutil.CreateNode(t, env.Academy, hierarchy.Institution, "", "Greenfield")

	out, err := scr.Handle(ctx, testutil.Student, screen.State{}, grid.Event{Kind: grid.EventRowClick, RowID: inst.ID})
	require.NoError(t, err)
	require.NotNil(t, out.Navigate)
	assert.Equal(t, "courses", out.Navigate.Screen)
	assert.Equal(t, map[string]string{"institution": inst.ID}, out.Navigate.State.Filters)
	assert.Equal(t, inst.ID, out.State.Selected)

	_, err = scr.Handle(ctx, testutil.Student, screen.State{}, grid.Event{Kind: grid.EventRowClick, RowID: "nope"})
	assert.Equal(t, grid.ErrUnknownRow, errors.Cause(err))

	// students see the screen without its write actions
	_, err = scr.Handle(ctx, testutil.Student, screen.State{}, grid.Event{Kind: grid.EventDelete, RowID: inst.ID})
	assert.Equal(t, grid.ErrUnavailable, errors.Cause(err))
}

// marksFixture seeds a class with a subject and three marks.
func marksFixture(t *testing.T, env *testutil.Env) screen.State {
	t.Helper()
	ctx := context.Background()
	nodes := testutil.SeedChain(t, env.Academy, hierarchy.AcademicChain, "One")
	subject := testutil.CreateNode(t, env.Academy, hierarchy.Subject, nodes[hierarchy.Level].ID, "Physics")

	for _, m := range []struct {
		student string
		score   float64
	}{{"Alice", 90}, {"Bob", 45}, {"Carol", 85}} {
		_, err := env.Academy.CreateMark(ctx, testutil.Teacher, academy.NewMark{
			ClassID: nodes[hierarchy.Class].ID, SubjectID: subject.ID, Student: m.student, Score: m.score, MaxScore: 100,
		})
		require.NoError(t, err)
	}
	return screen.State{Filters: testutil.Selection(hierarchy.AcademicChain, nodes)}
}

func TestScreen_filtersSearchCounts(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	scr := env.Screen(t, "marks")
	st := marksFixture(t, env)

	tests := []struct {
		name         string
		grade        string
		search       string
		wantStudents []string
	}{
		{name: "all", wantStudents: []string{"Alice", "Bob", "Carol"}},
		{name: "grade A", grade: "A", wantStudents: []string{"Alice", "Carol"}},
		{name: "search", search: "car", wantStudents: []string{"Carol"}},
		{name: "grade and search", grade: "F", search: "ali"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := screen.State{Filters: make(map[string]string), Search: tt.search}
			for k, v := range st.Filters {
				cur.Filters[k] = v
			}
			if tt.grade != "" {
				cur.Filters["grade"] = tt.grade
			}
			g, _, err := scr.Grid(ctx, testutil.Teacher, cur)
			require.NoError(t, err)
			view := g.Render()

			var students []string
			for _, r := range view.Rows {
				students = append(students, r.Cells[0].Text)
			}
			assert.ElementsMatch(t, tt.wantStudents, students)

			// counts come from the unfiltered rows
			grades := filterView(t, view, "grade")
			assert.Equal(t, 2, optionCount(t, grades, "A"))
			assert.Equal(t, 1, optionCount(t, grades, "F"))
			assert.Equal(t, 3, optionCount(t, grades, ""))
		})
	}

	t.Run("filter change keeps hierarchy", func(t *testing.T) {
		out, err := scr.Handle(ctx, testutil.Teacher, st, grid.Event{Kind: grid.EventFilterChange, Key: "grade", Value: "B"})
		require.NoError(t, err)
		assert.Equal(t, "B", out.State.Filters["grade"])
		assert.Equal(t, st.Filters["class"], out.State.Filters["class"])

		out, err = scr.Handle(ctx, testutil.Teacher, out.State, grid.Event{Kind: grid.EventFilterChange, Key: "grade", Value: ""})
		require.NoError(t, err)
		assert.NotContains(t, out.State.Filters, "grade")
	})

	t.Run("search event", func(t *testing.T) {
		out, err := scr.Handle(ctx, testutil.Teacher, st, grid.Event{Kind: grid.EventSearch, Value: "bob"})
		require.NoError(t, err)
		assert.Equal(t, "bob", out.State.Search)
	})
}

func TestScreen_Submit(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	scr := env.Screen(t, "courses")
	inst := testutil.CreateNode(t, env.Academy, hierarchy.Institution, "", "Greenfield")
	st := screen.State{Filters: map[string]string{"institution": inst.ID}}

	t.Run("incomplete chain", func(t *testing.T) {
		out, err := scr.Submit(ctx, testutil.Admin, screen.State{}, form.ModeCreate, "", map[string]any{"name": "Science"})
		require.NoError(t, err)
		assert.Equal(t, "Select an institution first.", out.Alert)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := scr.Submit(ctx, testutil.Admin, st, form.ModeCreate, "", map[string]any{"code": "a-b"})
		vErr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "want *core.ValidationError, got %v", err)
		var fields []string
		for _, f := range vErr.Fields {
			fields = append(fields, f.Field)
		}
		assert.ElementsMatch(t, []string{"name", "code"}, fields)
	})

	t.Run("create then edit", func(t *testing.T) {
		out, err := scr.Submit(ctx, testutil.Admin, st, form.ModeCreate, "", map[string]any{"name": "Science", "code": "SCI"})
		require.NoError(t, err)
		assert.Equal(t, "Course created.", out.Notice)
		assert.True(t, out.Reload)

		courses, err := env.Academy.QueryNodes(ctx, academy.NodeFilter{Kind: hierarchy.Course, ParentID: inst.ID})
		require.NoError(t, err)
		require.Len(t, courses, 1)

		frm, err := scr.Form(ctx, testutil.Admin, st, form.ModeEdit, courses[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "Edit Course", frm.Title)
		assert.Equal(t, "Science", frm.Values["name"])

		out, err = scr.Submit(ctx, testutil.Admin, st, form.ModeEdit, courses[0].ID, map[string]any{"name": "Sciences", "code": "SCI"})
		require.NoError(t, err)
		assert.Equal(t, "Course updated.", out.Notice)

		n, err := env.Academy.GetNode(ctx, courses[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "Sciences", n.Name)
	})

	t.Run("permission denied", func(t *testing.T) {
		_, err := scr.Submit(ctx, testutil.Teacher, st, form.ModeCreate, "", map[string]any{"name": "Arts"})
		assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))
	})
}

func TestScreen_deleteWithChildren(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	scr := env.Screen(t, "institutions")
	nodes := testutil.SeedChain(t, env.Academy, hierarchy.Chain{hierarchy.Institution, hierarchy.Course}, "One")

	out, err := scr.Handle(ctx, testutil.Admin, screen.State{}, grid.Event{Kind: grid.EventDelete, RowID: nodes[hierarchy.Institution].ID})
	require.NoError(t, err)
	assert.Contains(t, out.Alert, "still has 1 item(s) under it")
	assert.Empty(t, out.Notice)
}

func TestScreen_requests(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	scr := env.Screen(t, "expenses")
	nodes := testutil.SeedChain(t, env.Academy, hierarchy.AcademicChain, "One")
	st := screen.State{Filters: testutil.Selection(hierarchy.AcademicChain, nodes)}

	req, err := env.Approval.Create(ctx, testutil.Teacher, approval.NewRequest{
		Kind: approval.KindExpense, ScopeID: nodes[hierarchy.Class].ID, Title: "Lab equipment", Amount: 250,
	})
	require.NoError(t, err)

	t.Run("teacher cannot approve", func(t *testing.T) {
		_, err := scr.Handle(ctx, testutil.Teacher, st, grid.Event{Kind: grid.EventStatusChange, RowID: req.ID, Value: "Approved"})
		assert.Equal(t, grid.ErrUnavailable, errors.Cause(err))
	})

	t.Run("admin holds then approves", func(t *testing.T) {
		out, err := scr.Handle(ctx, testutil.Admin, st, grid.Event{Kind: grid.EventHold, RowID: req.ID})
		require.NoError(t, err)
		assert.Equal(t, "Expense put on hold.", out.Notice)

		out, err = scr.Handle(ctx, testutil.Admin, st, grid.Event{Kind: grid.EventStatusChange, RowID: req.ID, Value: "Approved"})
		require.NoError(t, err)
		assert.Equal(t, "Expense marked Approved.", out.Notice)
		assert.Len(t, env.Mailer.SentMessages(), 2)
	})

	t.Run("edit of a decided request is refused", func(t *testing.T) {
		out, err := scr.Handle(ctx, testutil.Teacher, st, grid.Event{Kind: grid.EventEdit, RowID: req.ID})
		require.NoError(t, err)
		assert.Equal(t, "Only pending requests can be edited. This one is Approved.", out.Alert)
		assert.Nil(t, out.Form)
	})

	t.Run("approved cannot move again", func(t *testing.T) {
		out, err := scr.Handle(ctx, testutil.Admin, st, grid.Event{Kind: grid.EventStatusChange, RowID: req.ID, Value: "Rejected"})
		require.NoError(t, err)
		assert.NotEmpty(t, out.Alert)
		assert.Empty(t, out.Notice)
	})
}

func TestScreen_ExportImport(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	scr := env.Screen(t, "institutions")
	testutil.CreateNode(t, env.Academy, hierarchy.Institution, "", "Greenfield")

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, scr.Export(ctx, testutil.Admin, screen.State{}, export.FormatCSV, &buf))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "Name,Code,Created"))
		assert.True(t, strings.HasPrefix(lines[1], "Greenfield,"))
	})

	t.Run("unconfigured format", func(t *testing.T) {
		err := scr.Export(ctx, testutil.Admin, screen.State{}, "docx", &bytes.Buffer{})
		assert.Equal(t, grid.ErrInvalidOption, errors.Cause(err))
	})

	t.Run("import", func(t *testing.T) {
		csv := "Name,Code\nRiverside,RIV\n,BAD\n"
		out, err := scr.Import(ctx, testutil.Admin, screen.State{}, strings.NewReader(csv), "institutions.csv")
		require.NoError(t, err)
		assert.Equal(t, "Imported 1 of 2 rows.", out.Notice)
		assert.Contains(t, out.Alert, "row 3: name")

		nodes, err := env.Academy.QueryNodes(ctx, academy.NodeFilter{Kind: hierarchy.Institution})
		require.NoError(t, err)
		assert.Len(t, nodes, 2)
	})

	t.Run("import denied", func(t *testing.T) {
		csv := "Name\nNorthside\n"
		_, err := scr.Import(ctx, testutil.Teacher, screen.State{}, strings.NewReader(csv), "institutions.csv")
		assert.Equal(t, grid.ErrUnavailable, errors.Cause(err))
	})
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	scr := env.Screen(t, "courses")
	one := testutil.CreateNode(t, env.Academy, hierarchy.Institution, "", "One")
	two := testutil.CreateNode(t, env.Academy, hierarchy.Institution, "", "Two")
	testutil.CreateNode(t, env.Academy, hierarchy.Course, one.ID, "Science")
	testutil.CreateNode(t, env.Academy, hierarchy.Course, one.ID, "Arts")

	_, err := env.Screen(t, "marks").NewSession(testutil.Student)
	assert.Equal(t, core.ErrPermissionDenied, err)

	sess, err := scr.NewSession(testutil.Admin)
	require.NoError(t, err)
	require.NoError(t, sess.Init(ctx).Run())
	assert.Nil(t, sess.LoadRows(ctx), "no rows before the chain is complete")

	out, err := sess.Handle(ctx, grid.Event{Kind: grid.EventFilterChange, Key: "institution", Value: one.ID})
	require.NoError(t, err)
	assert.True(t, out.Reload)
	assert.Equal(t, one.ID, sess.State().Filters["institution"])

	// the latest load wins
	first, second := sess.LoadRows(ctx), sess.LoadRows(ctx)
	require.NoError(t, second.Run())
	assert.Equal(t, hierarchy.ErrStale, first.Run())
	assert.Len(t, sess.View(ctx).Rows, 2)

	// changing the scope drops the rows and supersedes loads in flight
	pending := sess.LoadRows(ctx)
	_, err = sess.Handle(ctx, grid.Event{Kind: grid.EventFilterChange, Key: "institution", Value: two.ID})
	require.NoError(t, err)
	assert.Equal(t, hierarchy.ErrStale, pending.Run())
	assert.True(t, sess.View(ctx).Empty)

	require.NoError(t, sess.LoadRows(ctx).Run())
	assert.True(t, sess.View(ctx).Empty)

	out, err = sess.Handle(ctx, grid.Event{Kind: grid.EventSearch, Value: "sci"})
	require.NoError(t, err)
	assert.Equal(t, "sci", sess.State().Search)
	assert.Equal(t, two.ID, out.State.Filters["institution"])

	// drilling into a row keeps the session's own selection
	insts, err := env.Screen(t, "institutions").NewSession(testutil.Admin)
	require.NoError(t, err)
	require.NoError(t, insts.LoadRows(ctx).Run())
	out, err = insts.Handle(ctx, grid.Event{Kind: grid.EventRowClick, RowID: one.ID})
	require.NoError(t, err)
	require.NotNil(t, out.Navigate)
	assert.Equal(t, "courses", out.Navigate.Screen)
	assert.Empty(t, insts.State().Selected)
}
