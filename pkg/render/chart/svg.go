package chart

import (
	"bytes"
	"fmt"
	"math"

	"github.com/rawp123/covertower/pkg/tower"
)

// SVGOption configures SVG rendering via [RenderSVG].
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	width  float64
	height float64
	title  string
	theme  tower.Theme
	legend bool
}

// WithSize sets the output pixel dimensions.
func WithSize(w, h float64) SVGOption {
	return func(r *svgRenderer) { r.width, r.height = w, h }
}

// WithTitle draws a title above the chart area.
func WithTitle(title string) SVGOption { return func(r *svgRenderer) { r.title = title } }

// WithTheme selects background and text colors.
func WithTheme(t tower.Theme) SVGOption { return func(r *svgRenderer) { r.theme = t } }

// WithLegend draws a legend row under the chart area.
func WithLegend() SVGOption { return func(r *svgRenderer) { r.legend = true } }

const (
	defaultWidth  = 960.0
	defaultHeight = 600.0
	marginLeft    = 70.0
	marginRight   = 20.0
	marginTop     = 40.0
	marginBottom  = 60.0
	legendRowH    = 24.0
)

// RenderSVG draws the coverage tower as floating bars: one rect per
// point spanning [attach, top] vertically and the point's time extent
// horizontally, filled with the series color. Each rect carries a <title>
// child listing its participants, so plain browser hover works without
// any scripting.
func RenderSVG(data tower.ChartData, opts ...SVGOption) []byte {
	r := svgRenderer{width: defaultWidth, height: defaultHeight, theme: tower.ThemeLight}
	for _, opt := range opts {
		opt(&r)
	}

	minX, maxX, maxY := bounds(data.Series)

	plotW := r.width - marginLeft - marginRight
	plotH := r.height - marginTop - marginBottom
	if r.legend {
		plotH -= legendRowH
	}

	xOf := func(x float64) float64 {
		if maxX == minX {
			return marginLeft
		}
		return marginLeft + (x-minX)/(maxX-minX)*plotW
	}
	yOf := func(y float64) float64 {
		if maxY == 0 {
			return marginTop + plotH
		}
		return marginTop + plotH - y/maxY*plotH
	}

	bg, fg, grid := themeColors(r.theme)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		r.width, r.height, r.width, r.height)
	fmt.Fprintf(&buf, `  <rect x="0" y="0" width="%.1f" height="%.1f" fill="%s"/>`+"\n", r.width, r.height, bg)

	if r.title != "" {
		fmt.Fprintf(&buf, `  <text x="%.1f" y="%.1f" text-anchor="middle" font-size="18" fill="%s">%s</text>`+"\n",
			r.width/2, marginTop/2+6, fg, escapeXML(r.title))
	}

	renderAxes(&buf, minX, maxX, maxY, xOf, yOf, fg, grid)

	for _, s := range data.Series {
		color := data.Colors[s.Name]
		for _, p := range s.Points {
			renderBar(&buf, p, s.Name, color, xOf, yOf)
		}
	}

	if r.legend {
		renderLegend(&buf, data, marginLeft, r.height-legendRowH, fg)
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

// bounds returns the drawable extent across all series. Degenerate inputs
// (no points) get a unit extent so the axes still draw.
func bounds(series []tower.Series) (minX, maxX, maxY float64) {
	minX, maxX = math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, p := range s.Points {
			minX = min(minX, p.XStart)
			maxX = max(maxX, p.XEnd)
			maxY = max(maxY, p.Top)
		}
	}
	if minX > maxX {
		minX, maxX = 0, 1
	}
	return minX, maxX, maxY
}

func renderBar(buf *bytes.Buffer, p tower.Point, series, color string, xOf, yOf func(float64) float64) {
	x := xOf(p.XStart)
	w := xOf(p.XEnd) - x
	y := yOf(p.Top)
	h := yOf(p.Attach) - y
	if w <= 0 || h <= 0 {
		return
	}

	// Hairline gap between adjacent bars keeps stacked layers readable.
	const gap = 1.0
	if w > 2*gap {
		x += gap
		w -= 2 * gap
	}

	fmt.Fprintf(buf, `  <rect class="layer" x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" stroke="#00000022">`+"\n",
		x, y, w, h, color)
	fmt.Fprintf(buf, "    <title>%s</title>\n", escapeXML(barTooltip(p, series)))
	buf.WriteString("  </rect>\n")
}

func barTooltip(p tower.Point, series string) string {
	s := fmt.Sprintf("%s: %s xs %s", series, fmtMoney(p.Top-p.Attach), fmtMoney(p.Attach))
	for _, part := range p.Participants {
		s += fmt.Sprintf("\n%s (%s, %s)", part.Carrier, part.PolicyID, fmtMoney(part.Limit))
	}
	return s
}

// maxXTicks bounds the number of x-axis labels regardless of axis scale.
const maxXTicks = 10

func renderAxes(buf *bytes.Buffer, minX, maxX, maxY float64, xOf, yOf func(float64) float64, fg, grid string) {
	step := tickStep(maxX - minX)
	if step == 1 {
		// Year-scale axis: ticks at integer years, gridlines at the year
		// boundaries (half positions on the [y-0.5, y+0.5) axis).
		for year := math.Ceil(minX); year <= math.Floor(maxX); year++ {
			px := xOf(year)
			fmt.Fprintf(buf, `  <text x="%.1f" y="%.1f" text-anchor="middle" font-size="12" fill="%s">%.0f</text>`+"\n",
				px, yOf(0)+20, fg, year)
		}
		for b := math.Floor(minX) + 0.5; b <= maxX; b++ {
			if b < minX {
				continue
			}
			px := xOf(b)
			fmt.Fprintf(buf, `  <line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-dasharray="2,4"/>`+"\n",
				px, yOf(maxY), px, yOf(0), grid)
		}
	} else {
		// Wider scales (e.g. a raw millisecond time axis) tick at a nice
		// interval, gridlines on the ticks.
		for x := math.Ceil(minX/step) * step; x <= maxX; x += step {
			px := xOf(x)
			fmt.Fprintf(buf, `  <text x="%.1f" y="%.1f" text-anchor="middle" font-size="12" fill="%s">%s</text>`+"\n",
				px, yOf(0)+20, fg, formatTick(x))
			fmt.Fprintf(buf, `  <line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-dasharray="2,4"/>`+"\n",
				px, yOf(maxY), px, yOf(0), grid)
		}
	}

	// Five evenly spaced value ticks.
	for i := 0; i <= 5; i++ {
		v := maxY * float64(i) / 5
		py := yOf(v)
		fmt.Fprintf(buf, `  <line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s"/>`+"\n",
			marginLeft-4, py, marginLeft, py, grid)
		fmt.Fprintf(buf, `  <text x="%.1f" y="%.1f" text-anchor="end" font-size="12" fill="%s">%s</text>`+"\n",
			marginLeft-8, py+4, fg, fmtMoney(v))
	}
}

// tickStep picks the x label interval: 1 for year-scale axes, otherwise
// the smallest 1/2/5×10^k interval that keeps the label count bounded.
func tickStep(span float64) float64 {
	if span <= maxXTicks {
		return 1
	}
	raw := span / maxXTicks
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 5} {
		if step := m * mag; raw <= step {
			return step
		}
	}
	return 10 * mag
}

func formatTick(x float64) string {
	if math.Abs(x) >= 1e6 {
		return fmt.Sprintf("%.3g", x)
	}
	return fmt.Sprintf("%.0f", x)
}

func renderLegend(buf *bytes.Buffer, data tower.ChartData, x, y float64, fg string) {
	for _, entry := range data.Legend {
		if entry.Hidden {
			continue
		}
		fmt.Fprintf(buf, `  <rect x="%.1f" y="%.1f" width="12" height="12" fill="%s"/>`+"\n", x, y, entry.Color)
		fmt.Fprintf(buf, `  <text x="%.1f" y="%.1f" font-size="12" fill="%s">%s</text>`+"\n",
			x+16, y+10, fg, escapeXML(entry.Label))
		x += 16 + 7*float64(len(entry.Label)) + 24
	}
}

func themeColors(t tower.Theme) (bg, fg, grid string) {
	if t == tower.ThemeDark {
		return "#1e1e2e", "#e0e0e8", "#44445a"
	}
	return "#ffffff", "#222222", "#cccccc"
}

func fmtMoney(v float64) string {
	switch {
	case v >= 1e9:
		return trimZero(fmt.Sprintf("%.1fB", v/1e9))
	case v >= 1e6:
		return trimZero(fmt.Sprintf("%.1fM", v/1e6))
	case v >= 1e3:
		return trimZero(fmt.Sprintf("%.1fK", v/1e3))
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

func trimZero(s string) string {
	if len(s) > 3 && s[len(s)-3:len(s)-1] == ".0" {
		return s[:len(s)-3] + s[len(s)-1:]
	}
	return s
}

func escapeXML(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
