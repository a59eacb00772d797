package approval

import (
	"time"
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
	StatusOnHold   Status = "OnHold"
)

var Statuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusOnHold}

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

type Kind string

const (
	KindExpense    Kind = "expense"
	KindCompletion Kind = "completion"
)

func (k Kind) Valid() bool {
	return k == KindExpense || k == KindCompletion
}

// Request is something a teacher asks the administration to sign off:
// an expense, or the completion of a chapter/syllabus.
type Request struct {
	ID               string    `json:"id"`
	Kind             Kind      `json:"kind"`
	ScopeID          string    `json:"scope_id"` // hierarchy node the request is about
	Title            string    `json:"title"`
	Amount           float64   `json:"amount"`
	RequestedBy      string    `json:"requested_by"`
	RequestedByName  string    `json:"requested_by_name"`
	RequestedByEmail string    `json:"requested_by_email"`
	Status           Status    `json:"status"`
	Remark           string    `json:"remark"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}

type NewRequest struct {
	Kind    Kind    `json:"kind" validate:"required,oneof=expense completion"`
	ScopeID string  `json:"scope_id" validate:"required"`
	Title   string  `json:"title" validate:"required,max=200"`
	Amount  float64 `json:"amount" validate:"gte=0"`
	Remark  string  `json:"remark" validate:"omitempty,max=1000"`
}

type UpdateRequest struct {
	ScopeID string  `json:"scope_id" validate:"required"`
	Title   string  `json:"title" validate:"required,max=200"`
	Amount  float64 `json:"amount" validate:"gte=0"`
	Remark  string  `json:"remark" validate:"omitempty,max=1000"`
}

// QueryFilter selects requests. ScopeIDs matches any of the listed scopes.
type QueryFilter struct {
	Kind        Kind
	ScopeIDs    []string
	Status      Status
	RequestedBy string
	Search      string
}
