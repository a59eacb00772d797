package grid

import "strings"

// PillStyle is the visual style of a status pill.
type PillStyle string

const (
	PillNeutral PillStyle = "neutral"
	PillSuccess PillStyle = "success"
	PillError   PillStyle = "error"
	PillWarning PillStyle = "warning"
)

var pillStyles = map[string]PillStyle{
	"approved": PillSuccess,
	"rejected": PillError,
	"pending":  PillNeutral,
	"onhold":   PillWarning,
}

// PillStyleFor maps a status value to its pill style.
// Matching ignores case, spaces, dashes and underscores. Unknown values get PillNeutral.
func PillStyleFor(status string) PillStyle {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(status))
	if style, ok := pillStyles[key]; ok {
		return style
	}
	return PillNeutral
}
