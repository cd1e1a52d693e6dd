package bump

import (
	"fmt"
	"strings"
)

// Filter selects which records a list view shows.
type Filter string

// Filter values.
const (
	FilterAll      Filter = "all"
	FilterDamaged  Filter = "damaged"
	FilterCritical Filter = "critical"
)

// Filters lists the filters in tab order.
var Filters = []Filter{FilterAll, FilterDamaged, FilterCritical}

// ParseFilter parses a filter name. The empty string means FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterDamaged, FilterCritical:
		return f, nil
	default:
		return "", &ValidationError{Field: "filter", Reason: fmt.Sprintf("unknown filter %q (want all, damaged or critical)", s)}
	}
}

// Match reports whether a record in status s passes f. Damaged and critical
// are disjoint unless foldCritical is set, in which case damaged also admits
// critical records.
func (f Filter) Match(s Status, foldCritical bool) bool {
	switch f {
	case FilterAll, "":
		return true
	case FilterDamaged:
		return s == StatusDamaged || (foldCritical && s == StatusCritical)
	case FilterCritical:
		return s == StatusCritical
	default:
		return false
	}
}

// Select returns the records in recs that pass f, preserving order.
// Select(Select(x, f), f) == Select(x, f).
func Select(recs []Record, f Filter, foldCritical bool) []Record {
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if f.Match(r.Status(), foldCritical) {
			out = append(out, r)
		}
	}
	return out
}

// EmptyMessage is the text shown when a filtered list has no entries.
func (f Filter) EmptyMessage() string {
	switch f {
	case FilterDamaged:
		return "No damaged speed bumps found."
	case FilterCritical:
		return "No critical speed bumps found."
	default:
		return "No speed bumps found."
	}
}

// Label is the tab caption.
func (f Filter) Label() string {
	switch f {
	case FilterDamaged:
		return "Damaged"
	case FilterCritical:
		return "Critical"
	default:
		return "All"
	}
}

// String implements pflag.Value.
func (f *Filter) String() string {
	if *f == "" {
		return string(FilterAll)
	}
	return string(*f)
}

// Set implements pflag.Value.
func (f *Filter) Set(s string) error {
	v, err := ParseFilter(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Type implements pflag.Value.
func (f *Filter) Type() string { return "filter" }
