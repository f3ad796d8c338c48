package core

import (
	"sort"
	"strconv"
	"strings"
)

// Filters holds the user's multi-select choices. An empty slice places no
// constraint on its dimension.
type Filters struct {
	Countries  []string `json:"countries"`
	Developers []string `json:"developers"`
	Years      []int    `json:"years"`
}

// IsZero reports whether no dimension is constrained.
func (f Filters) IsZero() bool {
	return len(f.Countries) == 0 && len(f.Developers) == 0 && len(f.Years) == 0
}

// Normalize trims and dedupes every dimension and sorts it, so equal selections
// compare and hash the same regardless of click order.
func (f Filters) Normalize() Filters {
	return Filters{
		Countries:  normalizeStrings(f.Countries),
		Developers: normalizeStrings(f.Developers),
		Years:      normalizeInts(f.Years),
	}
}

// Key returns a stable string for caching. Call on normalized filters.
func (f Filters) Key() string {
	years := make([]string, len(f.Years))
	for i, y := range f.Years {
		years[i] = strconv.Itoa(y)
	}
	return "c=" + strings.Join(f.Countries, "\x1f") +
		"|d=" + strings.Join(f.Developers, "\x1f") +
		"|y=" + strings.Join(years, ",")
}

// Apply returns the rows of t matching every non-empty dimension of f
// (logical AND across dimensions, logical OR within one).
func Apply(t *Table, f Filters) *Table {
	if f.IsZero() {
		return t
	}
	countries := stringSet(f.Countries)
	developers := stringSet(f.Developers)
	years := make(map[int]struct{}, len(f.Years))
	for _, y := range f.Years {
		years[y] = struct{}{}
	}

	out := make([]GenerationRecord, 0, t.Len())
	t.each(func(r *GenerationRecord) {
		if len(countries) > 0 {
			if _, ok := countries[r.Country]; !ok {
				return
			}
		}
		if len(developers) > 0 {
			if _, ok := developers[r.DevName]; !ok {
				return
			}
		}
		if len(years) > 0 {
			if _, ok := years[r.Year]; !ok {
				return
			}
		}
		out = append(out, *r)
	})
	return &Table{records: out}
}

func stringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func normalizeStrings(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeInts(in []int) []int {
	seen := map[int]struct{}{}
	out := make([]int, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
