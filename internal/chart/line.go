package chart

import (
	"io"

	gochart "github.com/wcharczuk/go-chart/v2"

	"powertrust/internal/core"
)

// line draws the year-month series in calendar order with one tick per point.
func (r Renderer) line(w io.Writer, title string, points []core.YearMonthTotal) error {
	if len(points) == 0 {
		return ErrNoData
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(i)
		ys[i] = p.ValueKWh
	}
	lo, hi, _ := bounds(ys)

	c := gochart.Chart{
		Title:      title,
		Width:      r.Width,
		Height:     r.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 48, Left: 16, Right: 24, Bottom: 16}},
		XAxis: gochart.XAxis{
			Name:      "Year-Month",
			Ticks:     lineTicks(points),
			TickStyle: gochart.Style{TextRotationDegrees: 45},
		},
		YAxis: gochart.YAxis{
			Name:           "Value (KWh)",
			Range:          paddedRange(lo, hi),
			ValueFormatter: kwhFormatter,
		},
		Series: []gochart.Series{
			gochart.ContinuousSeries{
				Name:    "Value (KWh)",
				XValues: xs,
				YValues: ys,
				Style: gochart.Style{
					StrokeColor: seriesColor(2),
					StrokeWidth: 2,
					DotColor:    seriesColor(2),
					DotWidth:    3,
				},
			},
		},
	}
	return c.Render(gochart.PNG, w)
}

// lineTicks labels every point and adds blank ticks half a step outside the
// series. go-chart takes the x range from the ticks, so a lone point would
// otherwise leave a zero-width axis.
func lineTicks(points []core.YearMonthTotal) []gochart.Tick {
	ticks := make([]gochart.Tick, 0, len(points)+2)
	ticks = append(ticks, gochart.Tick{Value: -0.5})
	for i, p := range points {
		ticks = append(ticks, gochart.Tick{Value: float64(i), Label: p.Label})
	}
	return append(ticks, gochart.Tick{Value: float64(len(points)) - 0.5})
}
