package bump

import "time"

// Record is one physical speed bump.
type Record struct {
	ID            string
	StreetName    string
	ExactLocation string
	Condition     Condition
	CarCount      int64
	LastUpdated   time.Time
}

// Status is shorthand for r.Condition.Status().
func (r Record) Status() Status { return r.Condition.Status() }

// Summary counts records per status.
type Summary struct {
	Total    int `json:"total"`
	Good     int `json:"good"`
	Damaged  int `json:"damaged"`
	Critical int `json:"critical"`
}

// Summarize counts recs by status.
func Summarize(recs []Record) Summary {
	s := Summary{Total: len(recs)}
	for _, r := range recs {
		switch r.Status() {
		case StatusGood:
			s.Good++
		case StatusDamaged:
			s.Damaged++
		case StatusCritical:
			s.Critical++
		}
	}
	return s
}

// Count returns the number of records in status st.
func (s Summary) Count(st Status) int {
	switch st {
	case StatusGood:
		return s.Good
	case StatusDamaged:
		return s.Damaged
	case StatusCritical:
		return s.Critical
	}
	return 0
}

// Source names what changed a record.
type Source string

// Change sources.
const (
	SourceOperator Source = "operator"
	SourceImpact   Source = "impact"
)

// Change describes one successful write.
type Change struct {
	Record Record
	Source Source
	At     time.Time
}
