package core

import (
	"encoding/json"
	"math"
	"sort"
)

type (
	// GroupTotal is a Value (KWh) sum keyed by a single dimension value.
	GroupTotal struct {
		Key      string  `json:"key"`
		ValueKWh float64 `json:"value_kwh"`
	}

	// Grid is the month x developer pivot. Rows always hold the twelve
	// calendar months in order; Cells[i][j] is the sum for Months[i] and
	// Developers[j], zero where no rows matched.
	Grid struct {
		Months     []string    `json:"months"`
		Developers []string    `json:"developers"`
		Cells      [][]float64 `json:"cells"`
	}

	// YearMonthTotal is one point of the chronological monthly series.
	YearMonthTotal struct {
		Year     int     `json:"year"`
		Month    string  `json:"month"`
		Label    string  `json:"label"`
		ValueKWh float64 `json:"value_kwh"`
	}

	// ScatterPoint exposes the per-row fields compared in the certification view.
	ScatterPoint struct {
		CapacityKW  float64 `json:"capacity_kw"`
		ValueKWh    float64 `json:"value_kwh"`
		IsCertified string  `json:"is_certified"`
		DevName     string  `json:"dev_name"`
	}
)

// ByCountry sums Value (KWh) per country, ordered by country name.
func ByCountry(t *Table) []GroupTotal {
	return groupSum(t, func(r *GenerationRecord) string { return r.Country })
}

// ByDeveloper sums Value (KWh) per developer, ordered by developer name.
func ByDeveloper(t *Table) []GroupTotal {
	return groupSum(t, func(r *GenerationRecord) string { return r.DevName })
}

func groupSum(t *Table, key func(r *GenerationRecord) string) []GroupTotal {
	sums := map[string]float64{}
	t.each(func(r *GenerationRecord) {
		k := key(r)
		sums[k] = addSkipNaN(sums[k], r.ValueKWh)
	})
	out := make([]GroupTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, GroupTotal{Key: k, ValueKWh: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// MonthDeveloperGrid pivots the (Month, DevName) sums into a grid reindexed to
// the canonical January..December order.
func MonthDeveloperGrid(t *Table) Grid {
	devIndex := map[string]int{}
	var devs []string
	t.each(func(r *GenerationRecord) {
		if _, ok := devIndex[r.DevName]; !ok {
			devIndex[r.DevName] = 0
			devs = append(devs, r.DevName)
		}
	})
	sort.Strings(devs)
	for i, d := range devs {
		devIndex[d] = i
	}

	g := Grid{
		Months:     append([]string(nil), MonthNames[:]...),
		Developers: devs,
		Cells:      make([][]float64, len(MonthNames)),
	}
	for i := range g.Cells {
		g.Cells[i] = make([]float64, len(devs))
	}
	t.each(func(r *GenerationRecord) {
		m := MonthIndex(r.Month)
		if m == 0 {
			return
		}
		j := devIndex[r.DevName]
		g.Cells[m-1][j] = addSkipNaN(g.Cells[m-1][j], r.ValueKWh)
	})
	return g
}

// YearMonthSeries sums per (Year, Month) and orders by year, then calendar
// month index. Label is "<Year>-<Month>".
func YearMonthSeries(t *Table) []YearMonthTotal {
	type ym struct {
		year  int
		month string
	}
	sums := map[ym]float64{}
	t.each(func(r *GenerationRecord) {
		k := ym{r.Year, r.Month}
		sums[k] = addSkipNaN(sums[k], r.ValueKWh)
	})
	out := make([]YearMonthTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, YearMonthTotal{
			Year:     k.year,
			Month:    k.month,
			Label:    YearMonthLabel(k.year, k.month),
			ValueKWh: v,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return MonthIndex(out[i].Month) < MonthIndex(out[j].Month)
	})
	return out
}

// Scatter passes the filtered rows through, one point per row.
func Scatter(t *Table) []ScatterPoint {
	out := make([]ScatterPoint, 0, t.Len())
	t.each(func(r *GenerationRecord) {
		out = append(out, ScatterPoint{
			CapacityKW:  r.CapacityKW,
			ValueKWh:    r.ValueKWh,
			IsCertified: r.IsCertified,
			DevName:     r.DevName,
		})
	})
	return out
}

// MarshalJSON writes missing measurements as null, since JSON has no NaN.
func (p ScatterPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		CapacityKW  *float64 `json:"capacity_kw"`
		ValueKWh    *float64 `json:"value_kwh"`
		IsCertified string   `json:"is_certified"`
		DevName     string   `json:"dev_name"`
	}{finite(p.CapacityKW), finite(p.ValueKWh), p.IsCertified, p.DevName})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Total returns the sum of Value (KWh) across group totals.
func Total(groups []GroupTotal) float64 {
	var sum float64
	for _, g := range groups {
		sum += g.ValueKWh
	}
	return sum
}
