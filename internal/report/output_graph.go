package report

import (
	"fmt"
	"html"
	"math"
	"strings"
)

const (
	graphWidth        = 1200
	graphHeight       = 420
	graphMarginLeft   = 70
	graphMarginRight  = 20
	graphMarginTop    = 40
	graphMarginBottom = 45
	graphTicks        = 5
	// maxKeyframeMarkers caps vertical keyframe lines; past it they would
	// fill the plot.
	maxKeyframeMarkers = 1000
	maxPolylinePoints  = 4000
)

type point struct {
	x, y float64
}

// RenderGraphSVG draws one bitrate chart per report, stacked vertically:
// the retained per-frame series, the windowed series and keyframe markers.
func RenderGraphSVG(reports []Report) string {
	var b strings.Builder
	total := graphHeight * max(len(reports), 1)
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif" font-size="12">`+"\n",
		graphWidth, total, graphWidth, total)
	b.WriteString(`<rect width="100%" height="100%" fill="#2b2b2b"/>` + "\n")
	for i, report := range reports {
		writeChart(&b, report, float64(i*graphHeight))
	}
	b.WriteString("</svg>\n")
	return b.String()
}

func writeChart(b *strings.Builder, report Report, offsetY float64) {
	result := report.Result
	stats := result.Stats()
	frames := result.Frames()
	windows := result.Windows()

	duration := stats.TotalDuration
	peak := math.Max(stats.PerFrame.Max.Value, stats.Windowed.Max.Value)
	if duration <= 0 {
		duration = 1
	}
	if peak <= 0 {
		peak = 1
	}
	peak = niceCeiling(peak)

	left := float64(graphMarginLeft)
	top := offsetY + graphMarginTop
	plotW := float64(graphWidth - graphMarginLeft - graphMarginRight)
	plotH := float64(graphHeight - graphMarginTop - graphMarginBottom)
	project := func(t, bitrate float64) point {
		return point{x: left + t/duration*plotW, y: top + plotH - bitrate/peak*plotH}
	}

	fmt.Fprintf(b, `<text x="%.1f" y="%.1f" fill="#e0e0e0" font-size="14">%s</text>`+"\n",
		left, offsetY+24, html.EscapeString(displayName(report.Ref)+" - "+formatBitrate(stats.OverallBitrate)+" overall"))

	for i := 0; i <= graphTicks; i++ {
		frac := float64(i) / graphTicks
		y := top + plotH - frac*plotH
		x := left + frac*plotW
		fmt.Fprintf(b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#444"/>`+"\n", left, y, left+plotW, y)
		fmt.Fprintf(b, `<text x="%.1f" y="%.1f" fill="#bbb" text-anchor="end">%.2f</text>`+"\n", left-6, y+4, frac*peak/1_000_000)
		fmt.Fprintf(b, `<text x="%.1f" y="%.1f" fill="#bbb" text-anchor="middle">%.1f</text>`+"\n", x, top+plotH+16, frac*duration)
	}
	fmt.Fprintf(b, `<text x="%.1f" y="%.1f" fill="#bbb" text-anchor="middle">Time (s)</text>`+"\n", left+plotW/2, top+plotH+36)
	fmt.Fprintf(b, `<text x="16" y="%.1f" fill="#bbb" text-anchor="middle" transform="rotate(-90 16 %.1f)">Bitrate (Mb/s)</text>`+"\n",
		top+plotH/2, top+plotH/2)

	if keyframes := stats.Keyframes; len(keyframes) <= maxKeyframeMarkers {
		for _, keyframe := range keyframes {
			p := project(keyframe.Timestamp, 0)
			fmt.Fprintf(b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#ff5252" stroke-opacity="0.35"/>`+"\n", p.x, top, p.x, top+plotH)
		}
	}

	perFrame := make([]point, 0, len(frames))
	for _, frame := range frames {
		perFrame = append(perFrame, project(frame.Timestamp, frame.Bitrate))
	}
	writePolyline(b, thin(perFrame, maxPolylinePoints), "#4fc3f7", 1)

	windowed := make([]point, 0, len(windows))
	for _, window := range windows {
		windowed = append(windowed, project((window.Start+window.End)/2, window.Bitrate))
	}
	writePolyline(b, thin(windowed, maxPolylinePoints), "#ffca28", 2)
}

func writePolyline(b *strings.Builder, points []point, color string, width int) {
	if len(points) == 0 {
		return
	}
	b.WriteString(`<polyline fill="none" stroke="`)
	b.WriteString(color)
	fmt.Fprintf(b, `" stroke-width="%d" points="`, width)
	for i, p := range points {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(b, "%.1f,%.1f", p.x, p.y)
	}
	b.WriteString("\"/>\n")
}

// thin keeps every n-th point so that at most limit remain; the last point
// is always kept.
func thin(points []point, limit int) []point {
	if len(points) <= limit {
		return points
	}
	stride := (len(points) + limit - 1) / limit
	out := make([]point, 0, limit+1)
	for i := 0; i < len(points); i += stride {
		out = append(out, points[i])
	}
	if last := points[len(points)-1]; out[len(out)-1] != last {
		out = append(out, last)
	}
	return out
}

// niceCeiling rounds up to 1, 2 or 5 times a power of ten.
func niceCeiling(value float64) float64 {
	exp := math.Floor(math.Log10(value))
	base := math.Pow(10, exp)
	for _, m := range []float64{1, 2, 5, 10} {
		if value <= m*base {
			return m * base
		}
	}
	return 10 * base
}
