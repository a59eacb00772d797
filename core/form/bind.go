package form

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

const (
	invalidDataMsg   = "invalid data"
	invalidNumberMsg = "must be a number"
	invalidDateMsg   = "must be a date (YYYY-MM-DD)"
	invalidOptionMsg = "invalid option"
	invalidGroupMsg  = "invalid group"
)

var groupKeyRegex = regexp.MustCompile(`^(\w+)\[(\d+)\]\[(\w+)\]$`)

// Binder coerces and validates submitted values against form fields.
type Binder struct {
	validate   *validator.Validate
	translator ut.Translator
}

func NewBinder(validate *validator.Validate, translator ut.Translator) *Binder {
	return &Binder{validate: validate, translator: translator}
}

// Bind returns the coerced values of fields found in input, or a *core.ValidationError
// listing every invalid field. Group sub-field errors are named "group[i].field".
func (b *Binder) Bind(fields []Field, input map[string]any) (Values, error) {
	vals, flds := b.bind(fields, input, "")
	if len(flds) > 0 {
		return nil, core.NewValidationError(errors.New(invalidDataMsg), flds...)
	}
	return vals, nil
}

func (b *Binder) bind(fields []Field, input map[string]any, prefix string) (Values, []core.FieldError) {
	vals := make(Values, len(fields))
	var flds []core.FieldError

	for _, fld := range fields {
		name := prefix + fld.Name
		val, msg := coerce(fld, input[fld.Name])
		if msg != "" {
			flds = append(flds, core.FieldError{Field: name, Error: msg})
			continue
		}

		if fld.Kind == KindGroup {
			var groups []Values
			for i, item := range val.([]map[string]any) {
				gv, gflds := b.bind(fld.Fields, item, fmt.Sprintf("%s[%d].", name, i))
				flds = append(flds, gflds...)
				groups = append(groups, gv)
			}
			if msg := b.check(fld, groups); msg != "" {
				flds = append(flds, core.FieldError{Field: name, Error: msg})
			}
			if len(groups) > 0 {
				vals[fld.Name] = groups
			}
			continue
		}

		if msg := b.check(fld, val); msg != "" {
			flds = append(flds, core.FieldError{Field: name, Error: msg})
			continue
		}
		switch v := val.(type) {
		case *float64:
			if v != nil {
				vals[fld.Name] = *v
			}
		case time.Time:
			if !v.IsZero() {
				vals[fld.Name] = v
			}
		case string:
			if v != "" {
				vals[fld.Name] = v
			}
		case []string:
			if len(v) > 0 {
				vals[fld.Name] = v
			}
		}
	}
	return vals, flds
}

// check runs the field's validation rules and returns the first translated message.
func (b *Binder) check(fld Field, val any) string {
	if fld.Rules == "" {
		return ""
	}
	err := b.validate.Var(val, fld.Rules)
	if err == nil {
		return ""
	}
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(vErrs) == 0 {
		return err.Error()
	}
	return strings.TrimSpace(vErrs[0].Translate(b.translator))
}

// coerce converts a raw input to the Go type of the field kind.
// Empty numbers are nil *float64 and empty dates are the zero time so "required" applies to them.
func coerce(fld Field, raw any) (any, string) {
	switch fld.Kind {
	case KindNumber:
		s := rawString(raw)
		if f, ok := raw.(float64); ok {
			return &f, ""
		}
		if s == "" {
			return (*float64)(nil), ""
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, invalidNumberMsg
		}
		return &f, ""

	case KindDate:
		if t, ok := raw.(time.Time); ok {
			return t, ""
		}
		s := rawString(raw)
		if s == "" {
			return time.Time{}, ""
		}
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return nil, invalidDateMsg
		}
		return t, ""

	case KindSelect:
		s := rawString(raw)
		if s != "" && !hasOption(fld, s) {
			return nil, invalidOptionMsg
		}
		return s, ""

	case KindMultiSelect:
		ss := rawStrings(raw)
		for _, s := range ss {
			if !hasOption(fld, s) {
				return nil, invalidOptionMsg
			}
		}
		return ss, ""

	case KindGroup:
		items, ok := rawGroups(raw)
		if !ok {
			return nil, invalidGroupMsg
		}
		return items, ""

	default:
		return rawString(raw), ""
	}
}

func hasOption(fld Field, value string) bool {
	for _, opt := range fld.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

func rawString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []string:
		if len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func rawStrings(raw any) []string {
	var items []string
	switch v := raw.(type) {
	case nil:
	case string:
		items = strings.Split(v, ",")
	case []string:
		items = v
	case []any:
		for _, it := range v {
			items = append(items, rawString(it))
		}
	default:
		items = []string{rawString(v)}
	}

	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

func rawGroups(raw any) ([]map[string]any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, true
	case []map[string]any:
		return v, true
	case []any:
		items := make([]map[string]any, 0, len(v))
		for _, it := range v {
			m, ok := it.(map[string]any)
			if !ok {
				return nil, false
			}
			items = append(items, m)
		}
		return items, true
	}
	return nil, false
}

// FromURLValues turns a submitted HTML form into Bind input.
// Repeated keys become lists and keys shaped "group[i][field]" become group items.
func FromURLValues(form url.Values) map[string]any {
	input := make(map[string]any, len(form))
	groups := make(map[string]map[int]map[string]any)

	for key, vals := range form {
		if m := groupKeyRegex.FindStringSubmatch(key); m != nil {
			idx, _ := strconv.Atoi(m[2])
			if groups[m[1]] == nil {
				groups[m[1]] = make(map[int]map[string]any)
			}
			if groups[m[1]][idx] == nil {
				groups[m[1]][idx] = make(map[string]any)
			}
			groups[m[1]][idx][m[3]] = flatten(vals)
			continue
		}
		input[key] = flatten(vals)
	}

	for name, byIdx := range groups {
		idxs := make([]int, 0, len(byIdx))
		for i := range byIdx {
			idxs = append(idxs, i)
		}
		sort.Ints(idxs)
		items := make([]map[string]any, 0, len(idxs))
		for _, i := range idxs {
			items = append(items, byIdx[i])
		}
		input[name] = items
	}
	return input
}

func flatten(vals []string) any {
	if len(vals) == 1 {
		return vals[0]
	}
	return vals
}
