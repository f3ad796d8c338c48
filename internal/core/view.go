package core

import (
	"fmt"
	"strings"
)

// View is one of the five presentation choices. The set is closed.
type View int

const (
	ViewCountry View = iota
	ViewDeveloper
	ViewMonthDeveloper
	ViewMonthly
	ViewCertification
)

type viewInfo struct {
	slug      string
	label     string
	subheader string
}

var views = [...]viewInfo{
	ViewCountry: {
		slug:      "country",
		label:     "Value (KWh) by Country",
		subheader: "Value (KWh) Energy Generation by Country",
	},
	ViewDeveloper: {
		slug:      "developer",
		label:     "Value (KWh) by Developer",
		subheader: "Value (KWh) Energy Generation by Developer",
	},
	ViewMonthDeveloper: {
		slug:      "month-developer",
		label:     "Energy Distribution by Developer in Month",
		subheader: "Value (KWh) Energy Distribution by Month and Developer",
	},
	ViewMonthly: {
		slug:      "monthly",
		label:     "Monthly Value (KWh) Energy Generation",
		subheader: "Monthly Value (KWh) Energy Generation",
	},
	ViewCertification: {
		slug:      "certification",
		label:     "Energy Generation by Certification Status",
		subheader: "Energy Generation Value (KWh) vs Capacity (KW) by Certification Status of Solar Devices",
	},
}

// AllViews returns every view in menu order.
func AllViews() []View {
	return []View{ViewCountry, ViewDeveloper, ViewMonthDeveloper, ViewMonthly, ViewCertification}
}

// Valid reports whether v is one of the five views.
func (v View) Valid() bool {
	return v >= ViewCountry && int(v) < len(views)
}

// Slug is the URL-safe identifier of the view.
func (v View) Slug() string {
	if !v.Valid() {
		return ""
	}
	return views[v].slug
}

// Label is the menu text of the view.
func (v View) Label() string {
	if !v.Valid() {
		return ""
	}
	return views[v].label
}

// Subheader is the heading shown above the chart.
func (v View) Subheader() string {
	if !v.Valid() {
		return ""
	}
	return views[v].subheader
}

func (v View) String() string {
	return v.Slug()
}

// MarshalText implements encoding.TextMarshaler.
func (v View) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, ErrUnknownView
	}
	return []byte(v.Slug()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *View) UnmarshalText(b []byte) error {
	parsed, err := ParseView(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseView accepts a slug or a menu label (case-insensitive, surrounding
// space ignored).
func ParseView(s string) (View, error) {
	s = strings.TrimSpace(s)
	for i, info := range views {
		if strings.EqualFold(s, info.slug) || strings.EqualFold(s, info.label) {
			return View(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownView, s)
}

// ViewModel is everything the UI needs to draw one interaction: the applied
// selection, the KPIs and exactly one populated aggregate.
type ViewModel struct {
	View    View    `json:"view"`
	Title   string  `json:"title"`
	Filters Filters `json:"filters"`
	Summary Summary `json:"summary"`

	ByCountry   []GroupTotal     `json:"by_country,omitempty"`
	ByDeveloper []GroupTotal     `json:"by_developer,omitempty"`
	Grid        *Grid            `json:"grid,omitempty"`
	Monthly     []YearMonthTotal `json:"monthly,omitempty"`
	Scatter     []ScatterPoint   `json:"scatter,omitempty"`
}

// Render filters t and computes the aggregate bound to v. It panics only if v
// is outside the closed set; callers obtain views through ParseView.
func Render(t *Table, v View, f Filters) ViewModel {
	f = f.Normalize()
	filtered := Apply(t, f)
	vm := ViewModel{
		View:    v,
		Title:   v.Subheader(),
		Filters: f,
		Summary: Summarize(filtered),
	}
	switch v {
	case ViewCountry:
		vm.ByCountry = ByCountry(filtered)
	case ViewDeveloper:
		vm.ByDeveloper = ByDeveloper(filtered)
	case ViewMonthDeveloper:
		g := MonthDeveloperGrid(filtered)
		vm.Grid = &g
	case ViewMonthly:
		vm.Monthly = YearMonthSeries(filtered)
	case ViewCertification:
		vm.Scatter = Scatter(filtered)
	default:
		panic(fmt.Sprintf("core: render of invalid view %d", v))
	}
	return vm
}

// FilterOptions are the choices offered by the three multi-selects, taken
// from the full table.
type FilterOptions struct {
	Countries  []string `json:"countries"`
	Developers []string `json:"developers"`
	Years      []int    `json:"years"`
}

// Options lists the distinct filter values present in t.
func Options(t *Table) FilterOptions {
	return FilterOptions{
		Countries:  t.Countries(),
		Developers: t.Developers(),
		Years:      t.Years(),
	}
}
