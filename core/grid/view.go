package grid

// View is the rendered grid: everything a frontend needs to draw it, and nothing more.
type View struct {
	Headers   []Header     `json:"headers"`
	Rows      []RowView    `json:"rows"`
	Filters   []FilterView `json:"filters,omitempty"`
	Search    *SearchView  `json:"search,omitempty"`
	Toolbar   []Control    `json:"toolbar,omitempty"`
	Empty     bool         `json:"empty"`
	EmptyText string       `json:"empty_text,omitempty"`
	Warnings  []string     `json:"warnings,omitempty"`
}

type Header struct {
	Field string     `json:"field"`
	Label string     `json:"label"`
	Kind  ColumnKind `json:"kind"`
}

type RowView struct {
	ID        string    `json:"id"`
	Selected  bool      `json:"selected"`
	Clickable bool      `json:"clickable"`
	Cells     []Cell    `json:"cells"`
	Controls  []Control `json:"controls,omitempty"`
}

type Cell struct {
	Field    string     `json:"field"`
	Kind     ColumnKind `json:"kind"`
	Text     string     `json:"text"`
	Empty    bool       `json:"empty,omitempty"`
	Pill     PillStyle  `json:"pill,omitempty"`
	Controls []Control  `json:"controls,omitempty"`
}

// Control is a clickable affordance. Dispatching Event(Kind, RowID, Value) triggers it.
type Control struct {
	Action Action    `json:"action"`
	Event  EventKind `json:"event"`
	Label  string    `json:"label"`
	RowID  string    `json:"row_id,omitempty"`
	Value  string    `json:"value,omitempty"`
}

type FilterView struct {
	Key      string       `json:"key"`
	Label    string       `json:"label"`
	Options  []OptionView `json:"options"`
	Disabled bool         `json:"disabled"`
}

type OptionView struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Count    *int   `json:"count,omitempty"`
	Selected bool   `json:"selected"`
}

type SearchView struct {
	Text        string `json:"text"`
	Placeholder string `json:"placeholder"`
}

// DataHeaders returns the headers without the actions column.
func (v View) DataHeaders() []Header {
	headers := make([]Header, 0, len(v.Headers))
	for _, h := range v.Headers {
		if h.Kind != KindActions {
			headers = append(headers, h)
		}
	}
	return headers
}

// DataTexts returns the cell texts of a row without the actions column.
func (r RowView) DataTexts() []string {
	texts := make([]string, 0, len(r.Cells))
	for _, c := range r.Cells {
		if c.Kind != KindActions {
			texts = append(texts, c.Text)
		}
	}
	return texts
}
