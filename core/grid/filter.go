package grid

// Option is one entry of a filter dropdown. The empty Value means "no filter".
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// FilterDefinition describes one filter dropdown. By convention Options[0] is the "no filter" entry.
type FilterDefinition struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Options []Option `json:"options"`
}

// ActiveFilters maps filter key to the selected value. It is owned by the caller;
// the grid only reads it and reports changes through OnFilterChange.
type ActiveFilters map[string]string

// CountSource selects which rows feed the per-option counts of filter dropdowns.
type CountSource int

const (
	// CountsNone shows no counts.
	CountsNone CountSource = iota
	// CountsFromData counts over the rows currently displayed.
	CountsFromData
	// CountsFromUnfiltered counts over Config.UnfilteredData, so options keep
	// their totals while other filters narrow the data.
	CountsFromUnfiltered
)

func (fd FilterDefinition) hasOption(value string) bool {
	for _, opt := range fd.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// selectable reports whether the dropdown offers anything besides "no filter".
func (fd FilterDefinition) selectable() bool {
	for _, opt := range fd.Options {
		if opt.Value != "" {
			return true
		}
	}
	return false
}

func countOptions(fd FilterDefinition, rows []Row) map[string]int {
	counts := make(map[string]int, len(fd.Options))
	for _, r := range rows {
		text, _ := r.Text(fd.Key)
		counts[text]++
	}
	counts[""] = len(rows)
	return counts
}
