package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/approval"
)

const requestTable = "requests"

var requestColumns = []string{
	"id", "kind", "scope_id", "title", "amount", "requested_by", "requested_by_name", "requested_by_email",
	"status", "remark", "created_at", "updated_at",
}

type requestRow struct {
	ID               string      `boil:"id"`
	Kind             string      `boil:"kind"`
	ScopeID          string      `boil:"scope_id"`
	Title            string      `boil:"title"`
	Amount           float64     `boil:"amount"`
	RequestedBy      string      `boil:"requested_by"`
	RequestedByName  null.String `boil:"requested_by_name"`
	RequestedByEmail null.String `boil:"requested_by_email"`
	Status           string      `boil:"status"`
	Remark           null.String `boil:"remark"`
	CreatedAt        time.Time   `boil:"created_at"`
	UpdatedAt        time.Time   `boil:"updated_at"`
}

func (r requestRow) unboil() approval.Request {
	return approval.Request{
		ID:               r.ID,
		Kind:             approval.Kind(r.Kind),
		ScopeID:          r.ScopeID,
		Title:            r.Title,
		Amount:           r.Amount,
		RequestedBy:      r.RequestedBy,
		RequestedByName:  r.RequestedByName.String,
		RequestedByEmail: r.RequestedByEmail.String,
		Status:           approval.Status(r.Status),
		Remark:           r.Remark.String,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func requestValues(r approval.Request) []interface{} {
	return []interface{}{
		r.ID,
		string(r.Kind),
		r.ScopeID,
		r.Title,
		r.Amount,
		r.RequestedBy,
		null.NewString(r.RequestedByName, r.RequestedByName != ""),
		null.NewString(r.RequestedByEmail, r.RequestedByEmail != ""),
		string(r.Status),
		null.NewString(r.Remark, r.Remark != ""),
		r.CreatedAt.UTC(),
		r.UpdatedAt.UTC(),
	}
}

type approvalRepository struct {
	exec core.DBExecutor
}

var _ approval.Repository = (*approvalRepository)(nil) // interface compliance check

func NewApprovalRepository(exec core.DBExecutor) approval.Repository {
	return &approvalRepository{exec: exec}
}

func (repo *approvalRepository) CreateRequest(ctx context.Context, req approval.Request, exec ...core.DBExecutor) (approval.Request, error) {
	req.ID = uuid.New().String()
	if err := insert(ctx, getExec(repo.exec, exec), requestTable, requestColumns, requestValues(req)...); err != nil {
		return approval.Request{}, err
	}
	return req, nil
}

func (repo *approvalRepository) GetRequest(ctx context.Context, id string, exec ...core.DBExecutor) (approval.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return approval.Request{}, approval.ErrNotFound
	}
	var row requestRow
	if err := getOne(ctx, getExec(repo.exec, exec), requestTable, id, approval.ErrNotFound, &row); err != nil {
		return approval.Request{}, err
	}
	return row.unboil(), nil
}

func (repo *approvalRepository) QueryRequests(ctx context.Context, filter approval.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]approval.Request, error) {
	mods := []qm.QueryMod{qm.From(quote(requestTable))}
	if filter.Kind != "" {
		mods = append(mods, qm.Where(quote("kind")+" = ?", string(filter.Kind)))
	}
	if len(filter.ScopeIDs) > 0 {
		mods = append(mods, whereIn("scope_id", filter.ScopeIDs))
	}
	if filter.Status != "" {
		mods = append(mods, qm.Where(quote("status")+" = ?", string(filter.Status)))
	}
	if filter.RequestedBy != "" {
		mods = append(mods, qm.Where(quote("requested_by")+" = ?", filter.RequestedBy))
	}
	if filter.Search != "" {
		mods = append(mods, ilike(filter.Search, "title", "requested_by_name"))
	}
	mods = append(mods, orderBy(ordering, "created_at", "title", "amount"))

	var rows []*requestRow
	if err := newQuery(mods...).Bind(ctx, getExec(repo.exec, exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying requests")
	}
	reqs := make([]approval.Request, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.unboil())
	}
	return reqs, nil
}

func (repo *approvalRepository) UpdateRequest(ctx context.Context, req approval.Request, exec ...core.DBExecutor) (approval.Request, error) {
	vals := requestValues(req)
	if err := update(ctx, getExec(repo.exec, exec), requestTable, req.ID, approval.ErrNotFound, requestColumns[1:], vals[1:]...); err != nil {
		return approval.Request{}, err
	}
	return req, nil
}

func (repo *approvalRepository) DeleteRequestsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	return deleteByID(ctx, getExec(repo.exec, exec), requestTable, ids)
}
