// Package chart draws every dashboard view as a PNG with go-chart.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"powertrust/internal/core"
)

// ErrNoData is returned when the view model has nothing to plot.
var ErrNoData = errors.New("no data to plot")

const (
	DefaultWidth  = 960
	DefaultHeight = 540
)

// Renderer draws view models at a fixed canvas size.
type Renderer struct {
	Width  int
	Height int
}

func NewRenderer(width, height int) Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return Renderer{Width: width, Height: height}
}

// Render writes the PNG of the aggregate carried by vm.
func (r Renderer) Render(w io.Writer, vm core.ViewModel) error {
	switch vm.View {
	case core.ViewCountry:
		return r.bars(w, vm.Title, "Country", vm.ByCountry)
	case core.ViewDeveloper:
		return r.bars(w, vm.Title, "DevName", vm.ByDeveloper)
	case core.ViewMonthDeveloper:
		if vm.Grid == nil {
			return ErrNoData
		}
		return r.heatmap(w, vm.Title, *vm.Grid)
	case core.ViewMonthly:
		return r.line(w, vm.Title, vm.Monthly)
	case core.ViewCertification:
		return r.scatter(w, vm.Title, vm.Scatter)
	default:
		return fmt.Errorf("render chart: %w", core.ErrUnknownView)
	}
}

// paddedRange returns a non-degenerate range covering lo..hi. go-chart
// refuses to draw a zero-width range.
func paddedRange(lo, hi float64) *gochart.ContinuousRange {
	if lo > 0 {
		lo = 0
	}
	if hi == lo {
		hi = lo + 1
	}
	pad := (hi - lo) * 0.05
	if lo < 0 {
		lo -= pad
	}
	return &gochart.ContinuousRange{Min: lo, Max: hi + pad}
}

func bounds(vals []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		ok = true
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, ok
}

var certificationColors = []drawing.Color{
	drawing.ColorFromHex("2ca02c"),
	drawing.ColorFromHex("d62728"),
	drawing.ColorFromHex("1f77b4"),
	drawing.ColorFromHex("ff7f0e"),
	drawing.ColorFromHex("9467bd"),
}

func seriesColor(i int) drawing.Color {
	if i < len(certificationColors) {
		return certificationColors[i]
	}
	return gochart.GetDefaultColor(i)
}
