package chart

import (
	"io"

	gochart "github.com/wcharczuk/go-chart/v2"

	"powertrust/internal/core"
)

const (
	barWidth   = 40
	barSpacing = 12
)

// bars draws one bar per group. The canvas widens when the groups do not fit.
func (r Renderer) bars(w io.Writer, title, axis string, groups []core.GroupTotal) error {
	if len(groups) == 0 {
		return ErrNoData
	}
	values := make([]gochart.Value, len(groups))
	raw := make([]float64, len(groups))
	for i, g := range groups {
		values[i] = gochart.Value{Value: g.ValueKWh, Label: g.Key}
		raw[i] = g.ValueKWh
	}
	lo, hi, _ := bounds(raw)

	width := r.Width
	if need := len(groups)*(barWidth+barSpacing) + 160; need > width {
		width = need
	}
	c := gochart.BarChart{
		Title:      title,
		Background: gochart.Style{Padding: gochart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		Width:      width,
		Height:     r.Height,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		XAxis:      gochart.Style{TextRotationDegrees: 45},
		YAxis: gochart.YAxis{
			Name:           "Value (KWh) " + axis,
			Range:          paddedRange(lo, hi),
			ValueFormatter: kwhFormatter,
		},
		Bars: values,
	}
	return c.Render(gochart.PNG, w)
}

func kwhFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return core.FormatNumber(f)
	}
	return ""
}
