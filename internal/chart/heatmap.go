package chart

import (
	"fmt"
	"io"
	"math"
	"sort"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"powertrust/internal/core"
)

const (
	heatLeft      = 110
	heatTop       = 60
	heatBottom    = 40
	heatRight     = 120
	heatMinCell   = 56
	heatLabelSize = 9.0

	// heatMaxColumns bounds the canvas width; smaller developers are folded
	// into one trailing column.
	heatMaxColumns = 48
)

// Colour stops of the heat scale, low to high.
var heatStops = []drawing.Color{
	drawing.ColorFromHex("440154"),
	drawing.ColorFromHex("21918c"),
	drawing.ColorFromHex("fde725"),
}

// heatmap draws the month by developer grid with go-chart's renderer
// primitives, since the library has no heatmap series.
func (r Renderer) heatmap(w io.Writer, title string, g core.Grid) error {
	if len(g.Developers) == 0 {
		return ErrNoData
	}
	g = foldColumns(g, heatMaxColumns)
	var flat []float64
	for _, row := range g.Cells {
		flat = append(flat, row...)
	}
	lo, hi, ok := bounds(flat)
	if !ok {
		return ErrNoData
	}

	width := r.Width
	cellW := (width - heatLeft - heatRight) / len(g.Developers)
	if cellW < heatMinCell {
		cellW = heatMinCell
		width = heatLeft + heatRight + cellW*len(g.Developers)
	}
	cellH := (r.Height - heatTop - heatBottom) / len(g.Months)
	if cellH < 12 {
		cellH = 12
	}
	height := heatTop + heatBottom + cellH*len(g.Months)

	rend, err := gochart.PNG(width, height)
	if err != nil {
		return fmt.Errorf("create png renderer: %w", err)
	}
	font, err := gochart.GetDefaultFont()
	if err != nil {
		return fmt.Errorf("load font: %w", err)
	}
	text := gochart.Style{Font: font, FontSize: heatLabelSize, FontColor: drawing.ColorBlack}

	gochart.Draw.Box(rend, gochart.Box{Top: 0, Left: 0, Right: width, Bottom: height},
		gochart.Style{FillColor: drawing.ColorWhite, StrokeColor: drawing.ColorWhite, StrokeWidth: 1})
	gochart.Draw.Text(rend, title, heatLeft, heatTop/2, gochart.Style{Font: font, FontSize: 12, FontColor: drawing.ColorBlack})

	for i, month := range g.Months {
		top := heatTop + i*cellH
		gochart.Draw.Text(rend, month, 8, top+cellH/2+4, text)
		for j := range g.Developers {
			left := heatLeft + j*cellW
			c := heatColor(g.Cells[i][j], lo, hi)
			gochart.Draw.Box(rend, gochart.Box{Top: top, Left: left, Right: left + cellW, Bottom: top + cellH},
				gochart.Style{FillColor: c, StrokeColor: drawing.ColorWhite, StrokeWidth: 1})
		}
	}
	for j, dev := range g.Developers {
		left := heatLeft + j*cellW
		gochart.Draw.Text(rend, truncate(dev, cellW), left+2, heatTop+len(g.Months)*cellH+14, text)
	}

	// Colour bar.
	barLeft := width - heatRight + 30
	barTop, barBottom := heatTop, heatTop+len(g.Months)*cellH
	steps := barBottom - barTop
	for k := 0; k < steps; k++ {
		v := hi - (hi-lo)*float64(k)/float64(max(steps-1, 1))
		c := heatColor(v, lo, hi)
		gochart.Draw.Box(rend, gochart.Box{Top: barTop + k, Left: barLeft, Right: barLeft + 16, Bottom: barTop + k + 1},
			gochart.Style{FillColor: c, StrokeColor: c, StrokeWidth: 1})
	}
	gochart.Draw.Text(rend, core.FormatNumber(hi), barLeft+20, barTop+8, text)
	gochart.Draw.Text(rend, core.FormatNumber(lo), barLeft+20, barBottom, text)

	return rend.Save(w)
}

// foldColumns keeps the limit-1 developers with the largest totals, in their
// original order, and sums the rest into an "Other (n)" column.
func foldColumns(g core.Grid, limit int) core.Grid {
	if limit < 2 || len(g.Developers) <= limit {
		return g
	}
	totals := make([]float64, len(g.Developers))
	for _, row := range g.Cells {
		for j, v := range row {
			if !math.IsNaN(v) {
				totals[j] += v
			}
		}
	}
	rank := make([]int, len(g.Developers))
	for j := range rank {
		rank[j] = j
	}
	sort.SliceStable(rank, func(a, b int) bool { return totals[rank[a]] > totals[rank[b]] })
	keep := make([]bool, len(g.Developers))
	for _, j := range rank[:limit-1] {
		keep[j] = true
	}

	out := core.Grid{Months: g.Months, Cells: make([][]float64, len(g.Cells))}
	for j, dev := range g.Developers {
		if keep[j] {
			out.Developers = append(out.Developers, dev)
		}
	}
	out.Developers = append(out.Developers, fmt.Sprintf("Other (%d)", len(g.Developers)-(limit-1)))
	for i, row := range g.Cells {
		folded := make([]float64, 0, limit)
		var other float64
		for j, v := range row {
			switch {
			case keep[j]:
				folded = append(folded, v)
			case !math.IsNaN(v):
				other += v
			}
		}
		out.Cells[i] = append(folded, other)
	}
	return out
}

// heatColor maps v in lo..hi onto the colour stops.
func heatColor(v, lo, hi float64) drawing.Color {
	t := 0.0
	if hi > lo && !math.IsNaN(v) {
		t = (v - lo) / (hi - lo)
	}
	t = math.Max(0, math.Min(1, t))
	seg := t * float64(len(heatStops)-1)
	i := int(seg)
	if i >= len(heatStops)-1 {
		return heatStops[len(heatStops)-1]
	}
	return lerp(heatStops[i], heatStops[i+1], seg-float64(i))
}

func lerp(a, b drawing.Color, t float64) drawing.Color {
	mix := func(x, y uint8) uint8 { return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t)) }
	return drawing.Color{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

// truncate shortens s so it roughly fits px pixels of label text.
func truncate(s string, px int) string {
	limit := px / 6
	if limit < 3 {
		limit = 3
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
