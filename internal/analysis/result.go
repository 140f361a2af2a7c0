// Package analysis turns raw per-frame size and timing metadata into a
// per-frame bitrate series, a windowed bitrate series and summary
// statistics.
//
// Analyze is a pure function of its inputs: it keeps no state between calls
// and may run concurrently on independent inputs.
package analysis

import (
	"fmt"
	"slices"
)

// Sampling describes how the retained per-frame series was decimated.
// Stride is 1 when every frame was kept.
type Sampling struct {
	Applied  bool
	Stride   int
	Total    int
	Retained int
}

// Result is the read-only outcome of one analysis. Accessors return copies.
type Result struct {
	frames   []FrameSample
	windows  []WindowedSample
	stats    Statistics
	sampling Sampling
	warnings []Warning
	options  Options
}

func (r Result) Frames() []FrameSample     { return slices.Clone(r.frames) }
func (r Result) Windows() []WindowedSample { return slices.Clone(r.windows) }
func (r Result) Sampling() Sampling        { return r.sampling }
func (r Result) Warnings() []Warning       { return slices.Clone(r.warnings) }
func (r Result) Options() Options          { return r.options }
func (r Result) FrameCount() int           { return r.stats.FrameCount }
func (r Result) OverallBitrate() float64   { return r.stats.OverallBitrate }
func (r Result) TotalDuration() float64    { return r.stats.TotalDuration }

func (r Result) KeyframeTimestamps() []float64 {
	return keyframeTimestamps(r.stats.Keyframes)
}

func (r Result) Stats() Statistics {
	stats := r.stats
	stats.Keyframes = slices.Clone(r.stats.Keyframes)
	return stats
}

// Analyze runs the full pipeline: series building, windowing and
// aggregation over the full series, then decimation of the retained
// per-frame series.
func Analyze(records []RawFrameRecord, opts Options) (Result, error) {
	opts, err := normalizeOptions(opts)
	if err != nil {
		return Result{}, err
	}
	series, warnings, err := buildSeries(records, opts)
	if err != nil {
		return Result{}, err
	}

	windows, err := averageWindows(series, opts)
	if err != nil {
		return Result{}, err
	}
	stats := Aggregate(series, windows)

	retained, sampling := decimate(series, opts.MaxSamples)
	if sampling.Applied {
		warnings = append(warnings, Warning{
			Kind:    NoticeSamplingApplied,
			Index:   0,
			Count:   sampling.Total - sampling.Retained,
			Message: fmt.Sprintf("per-frame series reduced to every %d frame(s) (%d of %d kept); statistics use all frames", sampling.Stride, sampling.Retained, sampling.Total),
		})
	}

	return Result{
		frames:   retained,
		windows:  windows,
		stats:    stats,
		sampling: sampling,
		warnings: warnings,
		options:  opts,
	}, nil
}

// decimate keeps every stride-th frame, starting with the first, where
// stride = ceil(total / limit). A non-positive limit keeps everything.
func decimate(series []FrameSample, limit int) ([]FrameSample, Sampling) {
	total := len(series)
	if limit <= 0 || total <= limit {
		return series, Sampling{Stride: 1, Total: total, Retained: total}
	}
	stride := (total + limit - 1) / limit
	retained := make([]FrameSample, 0, (total+stride-1)/stride)
	for i := 0; i < total; i += stride {
		retained = append(retained, series[i])
	}
	return retained, Sampling{Applied: true, Stride: stride, Total: total, Retained: len(retained)}
}

func keyframeTimestamps(keyframes []Keyframe) []float64 {
	out := make([]float64, len(keyframes))
	for i, keyframe := range keyframes {
		out[i] = keyframe.Timestamp
	}
	return out
}
