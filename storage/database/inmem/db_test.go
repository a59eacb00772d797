package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academy"
	"github.com/trezcool/shule/core/approval"
	"github.com/trezcool/shule/core/hierarchy"
	"github.com/trezcool/shule/storage/database"
)

func TestDB_Load(t *testing.T) {
	ctx := context.Background()
	db := Open()
	db.Load(database.DemoFixture(time.Now()))
	acad := NewAcademyRepository(db)

	classes, err := acad.CountNodes(ctx, academy.NodeFilter{Kind: hierarchy.Class})
	require.NoError(t, err)
	assert.Equal(t, 2, classes)

	insts, err := acad.QueryNodes(ctx, academy.NodeFilter{Kind: hierarchy.Institution}, nil)
	require.NoError(t, err)
	require.Len(t, insts, 1)

	courses, err := acad.QueryNodes(ctx, academy.NodeFilter{ParentID: insts[0].ID}, nil)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, hierarchy.Course, courses[0].Kind)

	marks, err := acad.QueryMarks(ctx, academy.MarkFilter{Search: "ilunga"})
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, "Bob Ilunga", marks[0].Student)

	reqs, err := NewApprovalRepository(db).QueryRequests(ctx, approval.QueryFilter{Status: approval.StatusPending}, nil)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, approval.KindExpense, reqs[0].Kind)
}

func TestAcademyRepository_nodeOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewAcademyRepository(Open())
	for _, name := range []string{"beta", "Alpha", "gamma"} {
		_, err := repo.CreateNode(ctx, academy.Node{Kind: hierarchy.Institution, Name: name})
		require.NoError(t, err)
	}

	tests := []struct {
		ordering string
		want     []string
	}{
		{ordering: "name", want: []string{"Alpha", "beta", "gamma"}},
		{ordering: "-name", want: []string{"gamma", "beta", "Alpha"}},
	}
	for _, tt := range tests {
		t.Run(tt.ordering, func(t *testing.T) {
			nodes, err := repo.QueryNodes(ctx, academy.NodeFilter{}, core.ParseOrdering(tt.ordering))
			require.NoError(t, err)
			var names []string
			for _, n := range nodes {
				names = append(names, n.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	_, err := repo.GetNode(ctx, "nope")
	assert.Equal(t, academy.ErrNodeNotFound, err)
}
