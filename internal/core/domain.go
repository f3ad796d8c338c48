package core

import (
	"errors"
	"math"
	"sort"
	"time"
)

type (
	// GenerationRecord is one reporting-period row of energy output for a site.
	GenerationRecord struct {
		SiteID      string
		Country     string
		DevName     string // Developer name
		SMRStartDt  time.Time
		SMREndDt    time.Time
		ValueKWh    float64 // NaN when the cell was empty
		CapacityKW  float64 // NaN when the cell was empty
		IsCertified string  // Categorical, kept verbatim from the source

		// Derived from SMRStartDt at load time.
		Month string
		Year  int
	}

	// Table is an immutable set of generation records. Filtering produces new
	// tables and never touches the receiver.
	Table struct {
		records []GenerationRecord
	}
)

var ErrUnknownView = errors.New("unknown view")

// NewRecord fills the derived Month and Year fields from SMRStartDt.
func NewRecord(r GenerationRecord) GenerationRecord {
	r.Month = MonthName(r.SMRStartDt.Month())
	r.Year = r.SMRStartDt.Year()
	return r
}

// NewTable copies records into a new immutable table.
func NewTable(records []GenerationRecord) *Table {
	cp := make([]GenerationRecord, len(records))
	copy(cp, records)
	return &Table{records: cp}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Records returns a copy of the rows in load order.
func (t *Table) Records() []GenerationRecord {
	if t == nil {
		return nil
	}
	out := make([]GenerationRecord, len(t.records))
	copy(out, t.records)
	return out
}

// each iterates rows without copying; callers must not retain the pointer.
func (t *Table) each(fn func(r *GenerationRecord)) {
	if t == nil {
		return
	}
	for i := range t.records {
		fn(&t.records[i])
	}
}

// Countries returns distinct country names in first-appearance order. Blank
// names are left out since a filter cannot select them.
func (t *Table) Countries() []string {
	return t.distinct(func(r *GenerationRecord) string { return r.Country })
}

// Developers returns distinct developer names in first-appearance order.
func (t *Table) Developers() []string {
	return t.distinct(func(r *GenerationRecord) string { return r.DevName })
}

// Years returns distinct years in ascending order.
func (t *Table) Years() []int {
	seen := map[int]struct{}{}
	var out []int
	t.each(func(r *GenerationRecord) {
		if _, ok := seen[r.Year]; ok {
			return
		}
		seen[r.Year] = struct{}{}
		out = append(out, r.Year)
	})
	sort.Ints(out)
	return out
}

func (t *Table) distinct(key func(r *GenerationRecord) string) []string {
	seen := map[string]struct{}{}
	var out []string
	t.each(func(r *GenerationRecord) {
		k := key(r)
		if k == "" {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	})
	return out
}

// addSkipNaN mirrors pandas' skipna summation: missing values contribute nothing.
func addSkipNaN(acc, v float64) float64 {
	if math.IsNaN(v) {
		return acc
	}
	return acc + v
}
