package analysis

import (
	"container/heap"
	"math"
)

// timeTolerance drops window starts that only exist because of float
// residue at the stream end.
const timeTolerance = 1e-9

// WindowedSample is the average bitrate over [Start, End). End is clipped to
// the stream end, so the final window may be shorter than the configured
// length; Bitrate is always Bits over the actual span.
type WindowedSample struct {
	Start   float64
	End     float64
	Bits    float64
	Bitrate float64
}

func (w WindowedSample) Span() float64 {
	return w.End - w.Start
}

// AverageWindows computes the windowed bitrate series over a presentation
// ordered per-frame series. Each frame's bits are spread evenly over its
// interval and split across the windows it overlaps.
func AverageWindows(series []FrameSample, opts Options) ([]WindowedSample, error) {
	opts, err := normalizeOptions(opts)
	if err != nil {
		return nil, err
	}
	return averageWindows(series, opts)
}

func averageWindows(series []FrameSample, opts Options) ([]WindowedSample, error) {
	if len(series) == 0 {
		return nil, nil
	}
	total := seriesDuration(series)
	if err := opts.checkWindowCount(total); err != nil {
		return nil, err
	}
	windows := windowGrid(total, opts.WindowLength, opts.WindowStep)
	if opts.LinearScanLimit > 0 && len(series) < opts.LinearScanLimit {
		scanWindows(series, windows)
	} else {
		sweepWindows(series, windows)
	}
	for i := range windows {
		windows[i].Bitrate = windows[i].Bits / windows[i].Span()
	}
	return windows, nil
}

func windowGrid(total, length, step float64) []WindowedSample {
	count := int(math.Ceil((total-timeTolerance)/step)) + 1
	windows := make([]WindowedSample, 0, max(count, 1))
	for k := 0; ; k++ {
		start := float64(k) * step
		if k > 0 && start >= total-timeTolerance {
			break
		}
		windows = append(windows, WindowedSample{Start: start, End: math.Min(start+length, total)})
	}
	return windows
}

// overlapBits is the share of a frame's bits that falls inside [start, end).
func overlapBits(sample FrameSample, start, end float64) float64 {
	frameEnd := sample.End()
	if sample.Timestamp >= start && frameEnd <= end {
		return sample.Bits()
	}
	overlap := math.Min(frameEnd, end) - math.Max(sample.Timestamp, start)
	if overlap <= 0 {
		return 0
	}
	return sample.Bits() * overlap / sample.Duration
}

// scanWindows checks every frame against every window. It is only used for
// short series.
func scanWindows(series []FrameSample, windows []WindowedSample) {
	for i := range windows {
		var bits float64
		for _, sample := range series {
			bits += overlapBits(sample, windows[i].Start, windows[i].End)
		}
		windows[i].Bits = bits
	}
}

// sweepWindows derives window totals from the cumulative bit count at each
// window edge. Window starts and ends are both non-decreasing, so each set
// of edges is resolved in one pass over the series.
func sweepWindows(series []FrameSample, windows []WindowedSample) {
	starts := make([]float64, len(windows))
	ends := make([]float64, len(windows))
	for i, w := range windows {
		starts[i] = w.Start
		ends[i] = w.End
	}
	before := cumulativeBits(series, starts)
	upTo := cumulativeBits(series, ends)
	for i := range windows {
		bits := upTo[i] - before[i]
		if bits < 0 {
			bits = 0
		}
		windows[i].Bits = bits
	}
}

// cumulativeBits returns, for each point t in non-decreasing order, the bits
// emitted in [0, t). Frames enter the active set when they start before t
// and leave it once they end at or before t.
func cumulativeBits(series []FrameSample, points []float64) []float64 {
	out := make([]float64, len(points))
	active := &activeFrames{}
	var completed float64
	next := 0
	for i, t := range points {
		for next < len(series) && series[next].Timestamp < t {
			heap.Push(active, series[next])
			next++
		}
		for active.Len() > 0 && (*active)[0].End() <= t {
			completed += heap.Pop(active).(FrameSample).Bits()
		}
		partial := 0.0
		for _, sample := range *active {
			partial += sample.Bits() * (t - sample.Timestamp) / sample.Duration
		}
		out[i] = completed + partial
	}
	return out
}

// activeFrames is a min-heap of frames ordered by interval end.
type activeFrames []FrameSample

func (h activeFrames) Len() int           { return len(h) }
func (h activeFrames) Less(i, j int) bool { return h[i].End() < h[j].End() }
func (h activeFrames) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *activeFrames) Push(x any) {
	*h = append(*h, x.(FrameSample))
}

func (h *activeFrames) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
