// Package form describes the add/edit forms of the screens and binds submitted values to them.
package form

import (
	"time"

	"github.com/trezcool/shule/core/grid"
)

const DateLayout = "2006-01-02"

type Kind string

const (
	KindText        Kind = "text"
	KindNumber      Kind = "number"
	KindTextarea    Kind = "textarea"
	KindSelect      Kind = "select"
	KindMultiSelect Kind = "multiselect"
	KindDate        Kind = "date"
	KindFile        Kind = "file"
	KindGroup       Kind = "group"
)

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindNumber, KindTextarea, KindSelect, KindMultiSelect, KindDate, KindFile, KindGroup:
		return true
	}
	return false
}

type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// Field is one input. Rules holds validator tags ("required,max=100").
// A group repeats its sub-fields any number of times.
type Field struct {
	Name        string        `json:"name" yaml:"name"`
	Label       string        `json:"label" yaml:"label"`
	Kind        Kind          `json:"kind" yaml:"kind"`
	Rules       string        `json:"rules,omitempty" yaml:"rules"`
	Placeholder string        `json:"placeholder,omitempty" yaml:"placeholder"`
	Options     []grid.Option `json:"options,omitempty" yaml:"options"`
	Fields      []Field       `json:"fields,omitempty" yaml:"fields"`
	CreateOnly  bool          `json:"create_only,omitempty" yaml:"create_only"`
}

func (f Field) label() string {
	if f.Label != "" {
		return f.Label
	}
	return grid.Humanize(f.Name)
}

// Form is a form ready to render.
type Form struct {
	Title  string  `json:"title"`
	Mode   Mode    `json:"mode"`
	ID     string  `json:"id,omitempty"`
	Fields []Field `json:"fields"`
	Values Values  `json:"values"`
}

// New returns the form of fields in mode, dropping create-only fields when editing.
func New(title string, mode Mode, fields []Field) Form {
	frm := Form{Title: title, Mode: mode, Values: make(Values)}
	for _, f := range fields {
		if mode == ModeEdit && f.CreateOnly {
			continue
		}
		if f.Label == "" {
			f.Label = f.label()
		}
		frm.Fields = append(frm.Fields, f)
	}
	return frm
}

// Prefill fills the values of an edit form from a grid row.
func (f Form) Prefill(row grid.Row) Form {
	f.ID = row.ID(grid.DefaultIDField)
	f.Values = prefill(f.Fields, row)
	return f
}

func prefill(fields []Field, row map[string]any) Values {
	vals := make(Values, len(fields))
	for _, fld := range fields {
		v, ok := row[fld.Name]
		if !ok || v == nil {
			continue
		}
		switch fld.Kind {
		case KindDate:
			if t, ok := v.(time.Time); ok {
				v = t.Format(DateLayout)
			}
		case KindGroup:
			var groups []Values
			switch items := v.(type) {
			case []map[string]any:
				for _, it := range items {
					groups = append(groups, prefill(fld.Fields, it))
				}
			case []Values:
				for _, it := range items {
					groups = append(groups, prefill(fld.Fields, it))
				}
			}
			v = groups
		}
		vals[fld.Name] = v
	}
	return vals
}

// Values holds bound form values: strings, float64 numbers, time.Time dates,
// []string multi-selections and []Values groups. Empty optional inputs are absent.
type Values map[string]any

func (v Values) String(key string) string {
	s, _ := v[key].(string)
	return s
}

func (v Values) Float(key string) (float64, bool) {
	f, ok := v[key].(float64)
	return f, ok
}

func (v Values) Time(key string) (time.Time, bool) {
	t, ok := v[key].(time.Time)
	return t, ok
}

func (v Values) Strings(key string) []string {
	ss, _ := v[key].([]string)
	return ss
}

func (v Values) Groups(key string) []Values {
	gs, _ := v[key].([]Values)
	return gs
}
