package boiledrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/drivers"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/shule/core"
)

var dialect = drivers.Dialect{
	LQ:                   '"',
	RQ:                   '"',
	UseIndexPlaceholders: true,
	UseDefaultKeyword:    true,
}

// newQuery builds a postgres query out of query mods.
func newQuery(mods ...qm.QueryMod) *queries.Query {
	q := &queries.Query{}
	queries.SetDialect(q, &dialect)
	qm.Apply(q, mods...)
	return q
}

func quote(ident string) string {
	return strmangle.IdentQuote(dialect.LQ, dialect.RQ, ident)
}

func getExec(exec core.DBExecutor, svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return exec
}

// insert inserts one row made of cols and their values.
func insert(ctx context.Context, exec core.DBExecutor, table string, cols []string, vals ...interface{}) error {
	q := "INSERT INTO " + quote(table) +
		" (" + strings.Join(strmangle.IdentQuoteSlice(dialect.LQ, dialect.RQ, cols), ", ") + ")" +
		" VALUES (" + strmangle.Placeholders(dialect.UseIndexPlaceholders, len(cols), 1, 1) + ")"
	_, err := queries.Raw(q, vals...).ExecContext(ctx, exec)
	return errors.Wrapf(err, "inserting into %s", table)
}

// update sets cols of the row id. It returns notFound when no row has that id.
func update(ctx context.Context, exec core.DBExecutor, table, id string, notFound error, cols []string, vals ...interface{}) error {
	sets := make([]string, 0, len(cols))
	for i, c := range cols {
		sets = append(sets, quote(c)+" = $"+strconv.Itoa(i+1))
	}
	q := "UPDATE " + quote(table) + " SET " + strings.Join(sets, ", ") + " WHERE " + quote("id") + " = $" + strconv.Itoa(len(cols)+1)
	res, err := queries.Raw(q, append(vals, id)...).ExecContext(ctx, exec)
	if err != nil {
		return errors.Wrapf(err, "updating %s", table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "updating %s", table)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func deleteByID(ctx context.Context, exec core.DBExecutor, table string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := "DELETE FROM " + quote(table) + " WHERE " + quote("id") + " = ANY($1)"
	res, err := queries.Raw(q, pq.Array(ids)).ExecContext(ctx, exec)
	if err != nil {
		return 0, errors.Wrapf(err, "deleting from %s", table)
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrapf(err, "deleting from %s", table)
}

// getOne binds the row id of table into obj, mapping "no rows" to notFound.
func getOne(ctx context.Context, exec core.DBExecutor, table, id string, notFound error, obj interface{}) error {
	err := newQuery(qm.From(quote(table)), qm.Where(quote("id")+" = ?", id), qm.Limit(1)).Bind(ctx, exec, obj)
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrapf(err, "getting %s", table)
}

// orderBy turns orderings into an ORDER BY mod, keeping only the allowed columns.
// id always comes last so that results are stable.
func orderBy(ordering []core.DBOrdering, allowed ...string) qm.QueryMod {
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		for _, col := range allowed {
			if ord.Field == col {
				dir := "DESC"
				if ord.Ascending {
					dir = "ASC"
				}
				clauses = append(clauses, quote(col)+" "+dir)
			}
		}
	}
	clauses = append(clauses, quote("id"))
	return qm.OrderBy(strings.Join(clauses, ", "))
}

func whereIn(col string, ids []string) qm.QueryMod {
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return qm.WhereIn(quote(col)+" IN ?", args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ilike matches search literally inside any of cols, case insensitively.
func ilike(search string, cols ...string) qm.QueryMod {
	val := "%" + likeEscaper.Replace(search) + "%"
	conds := make([]string, 0, len(cols))
	args := make([]interface{}, 0, len(cols))
	for _, c := range cols {
		conds = append(conds, quote(c)+` ILIKE ? ESCAPE '\'`)
		args = append(args, val)
	}
	return qm.Where("("+strings.Join(conds, " OR ")+")", args...)
}

func count(ctx context.Context, exec core.DBExecutor, table string, mods ...qm.QueryMod) (int, error) {
	var n int
	mods = append([]qm.QueryMod{qm.Select("COUNT(*)"), qm.From(quote(table))}, mods...)
	if err := newQuery(mods...).QueryRowContext(ctx, exec).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "counting %s", table)
	}
	return n, nil
}
