package hierarchy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticFetcher returns one option named after the parent, and counts calls.
type staticFetcher struct {
	mu    sync.Mutex
	calls []string
}

func (f *staticFetcher) Options(_ context.Context, kind Kind, parent string) ([]Option, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, string(kind)+":"+parent)
	return []Option{{ID: parent + "-" + string(kind), Name: parent + " " + kind.Label()}}, nil
}

// gatedFetcher blocks each load until its parent's gate is released.
type gatedFetcher struct {
	gates map[string]chan struct{}
}

func (f *gatedFetcher) Options(_ context.Context, _ Kind, parent string) ([]Option, error) {
	<-f.gates[parent]
	return []Option{{ID: parent + "-child", Name: parent}}, nil
}

func TestParseChain(t *testing.T) {
	tests := []struct {
		name    string
		kinds   []string
		want    Chain
		wantErr bool
	}{
		{name: "academic", kinds: []string{"institution", "course", "level", "programme", "batch", "class"}, want: AcademicChain},
		{name: "curriculum", kinds: []string{"Institution", " course ", "level", "subject", "chapter"}, want: CurriculumChain},
		{name: "partial", kinds: []string{"level", "subject"}, want: Chain{Level, Subject}},
		{name: "unknown level", kinds: []string{"institution", "school"}, wantErr: true},
		{name: "broken link", kinds: []string{"institution", "level"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseChain(tc.kinds)
			if tc.wantErr {
				assert.Equal(t, ErrInvalidChain, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestChain_Select(t *testing.T) {
	chain := AcademicChain
	full := Selection{Institution: "i1", Course: "c1", Level: "l1", Programme: "p1", Batch: "b1", Class: "k1"}

	tests := []struct {
		name        string
		sel         Selection
		kind        Kind
		value       string
		want        Selection
		wantChanged bool
	}{
		{
			name: "same value is a no-op", sel: full, kind: Institution, value: "i1",
			want: full, wantChanged: false,
		},
		{
			name: "upstream change clears downstream", sel: full, kind: Course, value: "c2",
			want: Selection{Institution: "i1", Course: "c2"}, wantChanged: true,
		},
		{
			name: "clearing a level clears downstream", sel: full, kind: Level, value: "",
			want: Selection{Institution: "i1", Course: "c1"}, wantChanged: true,
		},
		{
			name: "leaf change keeps upstream", sel: full, kind: Class, value: "k2",
			want: Selection{Institution: "i1", Course: "c1", Level: "l1", Programme: "p1", Batch: "b1", Class: "k2"}, wantChanged: true,
		},
		{
			name: "kind outside chain", sel: full, kind: Subject, value: "s1",
			want: full, wantChanged: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := tc.sel.Clone()
			got, changed := chain.Select(tc.sel, tc.kind, tc.value)
			assert.Equal(t, tc.wantChanged, changed)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, before, tc.sel, "input selection must not be modified")
		})
	}
}

func TestChain_Select_idempotent(t *testing.T) {
	sel := Selection{}
	sel, _ = CurriculumChain.Select(sel, Institution, "i1")
	sel, _ = CurriculumChain.Select(sel, Course, "c1")

	once, _ := CurriculumChain.Select(sel, Course, "c2")
	twice, changed := CurriculumChain.Select(once, Course, "c2")
	assert.False(t, changed)
	assert.Equal(t, once, twice)
}

func TestChain_ReadyLeafNormalize(t *testing.T) {
	chain := CurriculumChain
	sel := Selection{Institution: "i1", Course: "c1", Subject: "s1"}

	assert.True(t, chain.Ready(sel, Institution))
	assert.True(t, chain.Ready(sel, Level))
	assert.False(t, chain.Ready(sel, Subject))
	assert.False(t, chain.Ready(sel, Chapter))
	assert.False(t, chain.Ready(sel, Batch))

	assert.Equal(t, Selection{Institution: "i1", Course: "c1"}, chain.Normalize(sel))

	kind, value, ok := chain.Leaf(sel)
	assert.True(t, ok)
	assert.Equal(t, Course, kind)
	assert.Equal(t, "c1", value)

	_, _, ok = chain.Leaf(Selection{})
	assert.False(t, ok)

	assert.Equal(t, "c1", chain.ParentValue(sel, Level))
	assert.Equal(t, "", chain.ParentValue(sel, Institution))

	assert.False(t, chain.Complete(sel))
	assert.True(t, chain.Complete(Selection{Institution: "i", Course: "c", Level: "l", Subject: "s", Chapter: "ch"}))
}

func TestGuard(t *testing.T) {
	var g Guard
	first, firstCtx := g.Begin(context.Background())
	second, secondCtx := g.Begin(context.Background())

	assert.Equal(t, context.Canceled, firstCtx.Err(), "superseded request is cancelled")
	assert.NoError(t, secondCtx.Err())
	assert.False(t, g.Current(first))
	assert.True(t, g.Current(second))

	var committed []string
	assert.False(t, g.Commit(first, func() { committed = append(committed, "first") }))
	assert.True(t, g.Commit(second, func() { committed = append(committed, "second") }))
	assert.Equal(t, []string{"second"}, committed)

	third, _ := g.Begin(context.Background())
	g.Invalidate()
	assert.False(t, g.Commit(third, func() { committed = append(committed, "third") }))
	assert.Equal(t, []string{"second"}, committed)
}

func TestController_cascade(t *testing.T) {
	ctx := context.Background()
	f := new(staticFetcher)
	c := NewController(AcademicChain, f)

	require.NoError(t, c.Init(ctx).Run())
	assert.Len(t, c.Options(Institution), 1)
	assert.Nil(t, c.Options(Course), "course has no options before an institution is selected")

	require.NoError(t, c.Select(ctx, Institution, "X").Run())
	require.NoError(t, c.Select(ctx, Course, "Y").Run())
	require.NoError(t, c.Select(ctx, Level, "L").Run())
	assert.Equal(t, []Option{{ID: "L-programme", Name: "L Programme"}}, c.Options(Programme))

	// X -> Y -> Z: the course selection and everything under it goes
	req := c.Select(ctx, Institution, "Z")
	require.NotNil(t, req)
	assert.Equal(t, Selection{Institution: "Z"}, c.Selection())
	for _, k := range AcademicChain[1:] {
		assert.Nil(t, c.Options(k), "%s options must be cleared", k)
	}

	require.NoError(t, req.Run())
	assert.Equal(t, []Option{{ID: "Z-course", Name: "Z Course"}}, c.Options(Course))
	assert.Nil(t, c.Options(Level))
	assert.Equal(t, "course:Z", f.calls[len(f.calls)-1])
}

func TestController_Select_idempotent(t *testing.T) {
	ctx := context.Background()
	f := new(staticFetcher)
	c := NewController(CurriculumChain, f)

	require.NoError(t, c.Select(ctx, Institution, "X").Run())
	require.NoError(t, c.Select(ctx, Course, "Y").Run())
	calls := len(f.calls)
	before := c.Selection()

	assert.Nil(t, c.Select(ctx, Institution, "X"), "re-selecting issues no load")
	assert.Nil(t, c.Select(ctx, Course, "Y"))
	assert.Equal(t, before, c.Selection())
	assert.Len(t, f.calls, calls)
	assert.Len(t, c.Options(Level), 1, "downstream options survive an identical re-selection")
}

func TestController_Select_notReady(t *testing.T) {
	c := NewController(AcademicChain, new(staticFetcher))
	assert.Nil(t, c.Select(context.Background(), Level, "L"))
	assert.Empty(t, c.Selection())
}

func TestController_Select_latestWins(t *testing.T) {
	ctx := context.Background()
	f := &gatedFetcher{gates: map[string]chan struct{}{
		"A": make(chan struct{}),
		"B": make(chan struct{}),
	}}
	c := NewController(AcademicChain, f)

	reqA := c.Select(ctx, Institution, "A")
	reqB := c.Select(ctx, Institution, "B")
	require.NotNil(t, reqA)
	require.NotNil(t, reqB)
	assert.Equal(t, context.Canceled, reqA.Context().Err())

	errs := make(chan error, 2)
	doneB := make(chan struct{})
	go func() { errs <- reqA.Run() }()
	go func() { errs <- reqB.Run(); close(doneB) }()

	// B responds first, then A
	close(f.gates["B"])
	select {
	case <-doneB:
	case <-time.After(time.Second):
		t.Fatal("request B did not complete")
	}
	close(f.gates["A"])

	var got []error
	for i := 0; i < 2; i++ {
		got = append(got, <-errs)
	}
	assert.ElementsMatch(t, []error{nil, ErrStale}, got)
	assert.Equal(t, []Option{{ID: "B-child", Name: "B"}}, c.Options(Course))
	assert.Equal(t, Selection{Institution: "B"}, c.Selection())
}

func TestController_Select_staleAfterUpstreamChange(t *testing.T) {
	ctx := context.Background()
	f := new(staticFetcher)
	c := NewController(AcademicChain, f)

	require.NoError(t, c.Select(ctx, Institution, "X").Run())
	levelReq := c.Select(ctx, Course, "Y")
	require.NotNil(t, levelReq)

	// the course changes upstream before the level load commits
	require.NoError(t, c.Select(ctx, Institution, "Z").Run())
	assert.Equal(t, ErrStale, levelReq.Run())
	assert.Nil(t, c.Options(Level))
}

func TestController_fetchError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	c := NewController(AcademicChain, FetcherFunc(func(context.Context, Kind, string) ([]Option, error) {
		return nil, boom
	}))

	err := c.Select(ctx, Institution, "X").Run()
	assert.Equal(t, boom, errors.Cause(err))
	assert.Equal(t, boom, c.Err(Course))
	assert.Nil(t, c.Options(Course))
}
