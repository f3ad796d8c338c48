package http

import (
	"net/url"
	"strconv"
	"strings"

	"powertrust/internal/core"
)

// Query parameter names. Each filter parameter may repeat.
const (
	paramView      = "view"
	paramCountry   = "country"
	paramDeveloper = "developer"
	paramYear      = "year"
	paramLimit     = "limit"
)

// ParseFilters reads the three multi-select dimensions from query or form
// values. Years that are not integers are dropped and returned separately so
// the caller can warn about them.
func ParseFilters(values url.Values) (f core.Filters, invalid []string) {
	f.Countries = cleanValues(values[paramCountry])
	f.Developers = cleanValues(values[paramDeveloper])
	for _, raw := range cleanValues(values[paramYear]) {
		y, err := strconv.Atoi(raw)
		if err != nil {
			invalid = append(invalid, raw)
			continue
		}
		f.Years = append(f.Years, y)
	}
	return f.Normalize(), invalid
}

// ParseViewParam resolves the view parameter. An absent value selects the
// first view in menu order.
func ParseViewParam(values url.Values) (core.View, error) {
	raw := strings.TrimSpace(values.Get(paramView))
	if raw == "" {
		return core.AllViews()[0], nil
	}
	return core.ParseView(raw)
}

// ParseLimit returns the row limit, falling back to def for missing or
// non-positive values and capping at max.
func ParseLimit(values url.Values, def, max int) int {
	n := def
	if v := strings.TrimSpace(values.Get(paramLimit)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}

// EncodeFilters is the inverse of ParseFilters, used to build chart and
// export links for the current selection.
func EncodeFilters(v core.View, f core.Filters) string {
	q := url.Values{}
	if v.Valid() {
		q.Set(paramView, v.Slug())
	}
	for _, c := range f.Countries {
		q.Add(paramCountry, c)
	}
	for _, d := range f.Developers {
		q.Add(paramDeveloper, d)
	}
	for _, y := range f.Years {
		q.Add(paramYear, strconv.Itoa(y))
	}
	return q.Encode()
}

func cleanValues(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = sanitizeInput(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
