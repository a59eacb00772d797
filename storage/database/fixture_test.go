package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/hierarchy"
)

func TestDemoFixture(t *testing.T) {
	f := DemoFixture(time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC))

	seen := make(map[string]hierarchy.Kind, len(f.Nodes))
	for _, n := range f.Nodes {
		require.True(t, n.Kind.Valid(), "kind %q", n.Kind)
		if parent, ok := n.Kind.Parent(); ok {
			assert.Equal(t, parent, seen[n.ParentID], "%s %q must follow its %s", n.Kind, n.Name, parent)
		} else {
			assert.Empty(t, n.ParentID)
		}
		_, dup := seen[n.ID]
		require.False(t, dup, "duplicate id %s", n.ID)
		seen[n.ID] = n.Kind
	}
	for _, k := range hierarchy.Kinds {
		assert.Contains(t, kindsOf(seen), k)
	}

	for _, m := range f.Marks {
		assert.Equal(t, hierarchy.Class, seen[m.ClassID])
		assert.Equal(t, hierarchy.Subject, seen[m.SubjectID])
	}
	for _, r := range f.Requests {
		assert.Contains(t, seen, r.ScopeID)
		assert.True(t, r.Status.Valid())
	}
}

func kindsOf(nodes map[string]hierarchy.Kind) []hierarchy.Kind {
	kinds := make([]hierarchy.Kind, 0, len(nodes))
	for _, k := range nodes {
		kinds = append(kinds, k)
	}
	return kinds
}
