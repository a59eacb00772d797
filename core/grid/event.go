package grid

import "github.com/pkg/errors"

var (
	ErrUnavailable   = errors.New("action not available")
	ErrUnknownRow    = errors.New("unknown row")
	ErrInvalidOption = errors.New("invalid option")
	ErrUnknownEvent  = errors.New("unknown event")
)

// Action names a user affordance the grid can render.
type Action string

const (
	ActionEdit         Action = "edit"
	ActionDelete       Action = "delete"
	ActionAddNew       Action = "add_new"
	ActionStatusChange Action = "status_change"
	ActionHold         Action = "hold"
	ActionExcelFormat  Action = "excel_format"
	ActionImport       Action = "import"
	ActionExport       Action = "export"
)

// Actions holds the caller's callbacks. A nil callback removes its control from the view.
type Actions struct {
	OnEdit         func(r Row)
	OnDelete       func(r Row)
	OnAddNew       func()
	OnStatusChange func(id, status string)
	OnHold         func(r Row)

	// pass-through hooks
	OnExcelFormat  func()
	OnDataImported func(rows []Row)
	OnCustomExport func(format string)
}

// EventKind identifies a user interaction.
type EventKind string

const (
	EventRowClick     EventKind = "row_click"
	EventFilterChange EventKind = "filter_change"
	EventSearch       EventKind = "search"
	EventEdit         EventKind = "edit"
	EventDelete       EventKind = "delete"
	EventAddNew       EventKind = "add_new"
	EventStatusChange EventKind = "status_change"
	EventHold         EventKind = "hold"
	EventExcelFormat  EventKind = "excel_format"
	EventImport       EventKind = "import"
	EventExport       EventKind = "export"
)

// Event is a user interaction. Value carries the filter value, search text, status or export format.
type Event struct {
	Kind  EventKind `json:"kind"`
	RowID string    `json:"row_id,omitempty"`
	Key   string    `json:"key,omitempty"`
	Value string    `json:"value,omitempty"`
	Rows  []Row     `json:"-"`
}
