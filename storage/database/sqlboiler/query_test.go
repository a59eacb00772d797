package boiledrepos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academy"
	"github.com/trezcool/shule/core/hierarchy"
)

func TestNodeQuery(t *testing.T) {
	mods := append([]qm.QueryMod{qm.From(quote(nodeTable))}, nodeMods(academy.NodeFilter{
		Kind:     hierarchy.Course,
		ParentID: "p1",
		Search:   "sci",
	})...)
	mods = append(mods, orderBy(core.ParseOrdering("-created_at,password,name"), "name", "created_at"))

	sql, args := queries.BuildQuery(newQuery(mods...))
	assert.Contains(t, sql, `FROM "nodes"`)
	assert.Contains(t, sql, `"kind" = $1`)
	assert.Contains(t, sql, `"parent_id" = $2`)
	assert.Contains(t, sql, `"name" ILIKE $3 ESCAPE '\' OR "code" ILIKE $4 ESCAPE '\'`)
	assert.Contains(t, sql, `ORDER BY "created_at" DESC, "name" ASC, "id"`)
	assert.NotContains(t, sql, "password")
	assert.Equal(t, []interface{}{"course", "p1", "%sci%", "%sci%"}, args)
}

func TestCountQuery(t *testing.T) {
	sql, _ := queries.BuildQuery(newQuery(qm.Select("COUNT(*)"), qm.From(quote(requestTable))))
	assert.Contains(t, sql, `SELECT COUNT(*) FROM "requests"`)
}

func TestIlike_escapesWildcards(t *testing.T) {
	tests := []struct {
		search string
		want   string
	}{
		{search: "sci", want: `%sci%`},
		{search: "100%", want: `%100\%%`},
		{search: "a_b", want: `%a\_b%`},
		{search: `c:\d`, want: `%c:\\d%`},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			_, args := queries.BuildQuery(newQuery(qm.From(quote(nodeTable)), ilike(tt.search, "name")))
			assert.Equal(t, []interface{}{tt.want}, args)
		})
	}
}
