package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/approval"
)

type approvalRepository struct {
	db *requestTable
}

var _ approval.Repository = (*approvalRepository)(nil) // interface compliance check

func NewApprovalRepository(db *DB) approval.Repository {
	return &approvalRepository{db: db.request}
}

func (repo *approvalRepository) CreateRequest(_ context.Context, req approval.Request, _ ...core.DBExecutor) (approval.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	req.ID = uuid.New().String()
	repo.db.table[req.ID] = &req
	return req, nil
}

func (repo *approvalRepository) GetRequest(_ context.Context, id string, _ ...core.DBExecutor) (approval.Request, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, ok := repo.db.table[id]; ok {
		return *r, nil
	}
	return approval.Request{}, approval.ErrNotFound
}

func (repo *approvalRepository) QueryRequests(_ context.Context, filter approval.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]approval.Request, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reqs := make([]approval.Request, 0)
	for _, r := range repo.db.table {
		if (filter.Kind == "" || r.Kind == filter.Kind) &&
			(len(filter.ScopeIDs) == 0 || contains(filter.ScopeIDs, r.ScopeID)) &&
			(filter.Status == "" || r.Status == filter.Status) &&
			(filter.RequestedBy == "" || r.RequestedBy == filter.RequestedBy) &&
			(filter.Search == "" || core.ContainsFold(r.Title, filter.Search) || core.ContainsFold(r.RequestedByName, filter.Search)) {
			reqs = append(reqs, *r)
		}
	}

	sort.SliceStable(reqs, func(i, j int) bool {
		a, b := reqs[i], reqs[j]
		for _, ord := range ordering {
			switch ord.Field {
			case "created_at":
				if !a.CreatedAt.Equal(b.CreatedAt) {
					return a.CreatedAt.Before(b.CreatedAt) == ord.Ascending
				}
			case "title":
				if a.Title != b.Title {
					return (a.Title < b.Title) == ord.Ascending
				}
			case "amount":
				if a.Amount != b.Amount {
					return (a.Amount < b.Amount) == ord.Ascending
				}
			}
		}
		return a.ID < b.ID
	})
	return reqs, nil
}

func (repo *approvalRepository) UpdateRequest(_ context.Context, req approval.Request, _ ...core.DBExecutor) (approval.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[req.ID]; !ok {
		return approval.Request{}, approval.ErrNotFound
	}
	repo.db.table[req.ID] = &req
	return req, nil
}

func (repo *approvalRepository) DeleteRequestsByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			cnt++
		}
	}
	return cnt, nil
}
