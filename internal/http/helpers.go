package http

import (
	"encoding/json"
	"html/template"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"powertrust/internal/core"
)

var templateFuncs = template.FuncMap{
	"kwh":  core.FormatNumber,
	"cell": formatCell,
}

// formatCell renders a measurement for a table cell; missing values are blank.
func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return core.FormatNumber(v)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// tableRow is one line of the aggregate table under the chart.
type tableRow struct {
	Label string
	Value string
	Count string
}

type gridRow struct {
	Month string
	Cells []string
}

type gridData struct {
	Developers []string
	Rows       []gridRow
}

type viewOption struct {
	Slug     string
	Label    string
	Selected bool
}

// viewData feeds view.html.
type viewData struct {
	Slug      string
	Title     string
	ChartURL  template.URL
	HasData   bool
	Summary   core.Summary
	KeyHeader string
	Rows      []tableRow
	Grid      *gridData
	Exports   bool
}

func buildViewData(vm core.ViewModel, exports bool) viewData {
	d := viewData{
		Slug:     vm.View.Slug(),
		Title:    vm.Title,
		HasData:  vm.Summary.Records > 0,
		Summary:  vm.Summary,
		Exports:  exports,
		ChartURL: template.URL("/charts/" + vm.View.Slug() + ".png?" + EncodeFilters(vm.View, vm.Filters)),
	}
	switch vm.View {
	case core.ViewCountry:
		d.KeyHeader = "Country"
		d.Rows = groupRows(vm.ByCountry)
	case core.ViewDeveloper:
		d.KeyHeader = "DevName"
		d.Rows = groupRows(vm.ByDeveloper)
	case core.ViewMonthDeveloper:
		if vm.Grid != nil {
			d.Grid = buildGrid(*vm.Grid)
		}
	case core.ViewMonthly:
		d.KeyHeader = "Year-Month"
		for _, m := range vm.Monthly {
			d.Rows = append(d.Rows, tableRow{Label: m.Label, Value: core.FormatNumber(m.ValueKWh)})
		}
	case core.ViewCertification:
		d.KeyHeader = "IsCertified"
		d.Rows = certificationRows(vm.Scatter)
	}
	return d
}

func groupRows(groups []core.GroupTotal) []tableRow {
	rows := make([]tableRow, len(groups))
	for i, g := range groups {
		rows[i] = tableRow{Label: g.Key, Value: core.FormatNumber(g.ValueKWh)}
	}
	return rows
}

func buildGrid(g core.Grid) *gridData {
	out := &gridData{Developers: g.Developers}
	for i, m := range g.Months {
		row := gridRow{Month: m, Cells: make([]string, len(g.Developers))}
		for j := range g.Developers {
			row.Cells[j] = core.FormatNumber(g.Cells[i][j])
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// certificationRows summarises the scatter points per certification status.
func certificationRows(points []core.ScatterPoint) []tableRow {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, p := range points {
		counts[p.IsCertified]++
		if !math.IsNaN(p.ValueKWh) {
			sums[p.IsCertified] += p.ValueKWh
		}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]tableRow, len(keys))
	for i, k := range keys {
		rows[i] = tableRow{Label: k, Value: core.FormatNumber(sums[k]), Count: strconv.Itoa(counts[k])}
	}
	return rows
}

// rawRow is one line of the raw data table.
type rawRow struct {
	SiteID      string
	Country     string
	DevName     string
	Start       string
	End         string
	ValueKWh    float64
	CapacityKW  float64
	IsCertified string
	Month       string
	Year        int
}

func buildRawRows(records []core.GenerationRecord, limit int) []rawRow {
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	rows := make([]rawRow, len(records))
	for i, r := range records {
		rows[i] = rawRow{
			SiteID:      r.SiteID,
			Country:     r.Country,
			DevName:     r.DevName,
			Start:       r.SMRStartDt.Format("2006-01-02"),
			End:         r.SMREndDt.Format("2006-01-02"),
			ValueKWh:    r.ValueKWh,
			CapacityKW:  r.CapacityKW,
			IsCertified: r.IsCertified,
			Month:       r.Month,
			Year:        r.Year,
		}
	}
	return rows
}
