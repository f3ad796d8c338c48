package core

import "math"

// Summary holds the three KPI scalars shown above every view.
type Summary struct {
	TotalKWh   float64 `json:"total_kwh"`
	AverageKWh float64 `json:"average_kwh"`
	Projects   int     `json:"projects"` // distinct SiteId count
	Records    int     `json:"records"`
}

// Summarize computes sum, mean and distinct site count over t. Missing values
// are skipped; the mean of no values is reported as zero.
func Summarize(t *Table) Summary {
	var (
		s     Summary
		n     int
		sites = map[string]struct{}{}
	)
	t.each(func(r *GenerationRecord) {
		s.Records++
		sites[r.SiteID] = struct{}{}
		if math.IsNaN(r.ValueKWh) {
			return
		}
		s.TotalKWh += r.ValueKWh
		n++
	})
	if n > 0 {
		s.AverageKWh = s.TotalKWh / float64(n)
	}
	s.Projects = len(sites)
	return s
}
