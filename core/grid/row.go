package grid

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultIDField is the row field used as identifier when Config.IDField is empty.
const DefaultIDField = "id"

// Row is one record of the grid: field name to value.
// The grid never interprets values beyond turning them into text.
type Row map[string]any

// ID returns the row identifier read from field, as text.
func (r Row) ID(field string) string {
	return Format(r[field])
}

// Text returns the display text of field, and whether the field is present at all.
func (r Row) Text(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}
	return Format(v), true
}

// Format turns a cell value into display text. nil renders as "".
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		if x.IsZero() {
			return ""
		}
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04")
	case *time.Time:
		if x == nil {
			return ""
		}
		return Format(*x)
	case fmt.Stringer:
		return x.String()
	case bool:
		if x {
			return "Yes"
		}
		return "No"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case []string:
		return strings.Join(x, ", ")
	default:
		return fmt.Sprint(x)
	}
}
