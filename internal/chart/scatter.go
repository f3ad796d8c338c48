package chart

import (
	"io"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"

	"powertrust/internal/core"
)

// scatter draws Capacity against Value with one coloured series per
// certification status, in first-appearance order.
func (r Renderer) scatter(w io.Writer, title string, points []core.ScatterPoint) error {
	type group struct {
		xs, ys []float64
	}
	var order []string
	groups := map[string]*group{}
	var allX, allY []float64
	for _, p := range points {
		if math.IsNaN(p.CapacityKW) || math.IsNaN(p.ValueKWh) {
			continue
		}
		g, ok := groups[p.IsCertified]
		if !ok {
			g = &group{}
			groups[p.IsCertified] = g
			order = append(order, p.IsCertified)
		}
		g.xs = append(g.xs, p.CapacityKW)
		g.ys = append(g.ys, p.ValueKWh)
		allX = append(allX, p.CapacityKW)
		allY = append(allY, p.ValueKWh)
	}
	if len(order) == 0 {
		return ErrNoData
	}

	series := make([]gochart.Series, 0, len(order))
	for i, name := range order {
		g := groups[name]
		label := name
		if label == "" {
			label = "(blank)"
		}
		col := seriesColor(i)
		series = append(series, gochart.ContinuousSeries{
			Name:    "IsCertified=" + label,
			XValues: g.xs,
			YValues: g.ys,
			Style: gochart.Style{
				StrokeWidth: gochart.Disabled,
				DotWidth:    4,
				DotColor:    col,
				StrokeColor: col,
			},
		})
	}
	xlo, xhi, _ := bounds(allX)
	ylo, yhi, _ := bounds(allY)

	c := gochart.Chart{
		Title:      title,
		Width:      r.Width,
		Height:     r.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 48, Left: 16, Right: 24, Bottom: 16}},
		XAxis:      gochart.XAxis{Name: "Capacity (KW)", Range: paddedRange(xlo, xhi)},
		YAxis: gochart.YAxis{
			Name:           "Value (KWh)",
			Range:          paddedRange(ylo, yhi),
			ValueFormatter: kwhFormatter,
		},
		Series: series,
	}
	c.Elements = []gochart.Renderable{gochart.Legend(&c)}
	return c.Render(gochart.PNG, w)
}
