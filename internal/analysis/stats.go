package analysis

import "math"

// Extreme is a maximum or minimum together with where it first occurred.
// For windowed statistics Index is the window index and Timestamp its start.
type Extreme struct {
	Value     float64
	Index     int
	Timestamp float64
}

// SeriesStats summarises one bitrate series. StdDev is the population
// standard deviation (divided by n).
type SeriesStats struct {
	Count  int
	Mean   float64
	StdDev float64
	Max    Extreme
	Min    Extreme
}

type Keyframe struct {
	Index     int
	Timestamp float64
}

// Statistics is the summary block of an analysis. PerFrame is computed over
// the instantaneous bitrate of every frame and is the primary basis;
// Windowed is the same summary over the windowed series.
type Statistics struct {
	PerFrame         SeriesStats
	Windowed         SeriesStats
	FrameCount       int
	TotalSize        int64
	TotalDuration    float64
	OverallBitrate   float64
	Keyframes        []Keyframe
	KeyframeInterval float64
}

func (s Statistics) KeyframeCount() int {
	return len(s.Keyframes)
}

// Aggregate computes the statistics block. series must be the full,
// undecimated per-frame series.
func Aggregate(series []FrameSample, windows []WindowedSample) Statistics {
	stats := Statistics{FrameCount: len(series)}
	if len(series) == 0 {
		return stats
	}

	var perFrame seriesAccumulator
	for _, sample := range series {
		perFrame.add(sample.Bitrate, sample.Index, sample.Timestamp)
		stats.TotalSize += sample.Size
		if sample.Keyframe {
			stats.Keyframes = append(stats.Keyframes, Keyframe{Index: sample.Index, Timestamp: sample.Timestamp})
		}
	}
	stats.PerFrame = perFrame.stats()

	var windowed seriesAccumulator
	for i, window := range windows {
		windowed.add(window.Bitrate, i, window.Start)
	}
	stats.Windowed = windowed.stats()

	stats.TotalDuration = seriesDuration(series)
	stats.OverallBitrate = float64(stats.TotalSize) * 8 / stats.TotalDuration
	stats.KeyframeInterval = float64(len(series)) / float64(max(len(stats.Keyframes), 1))
	return stats
}

// seriesAccumulator uses Welford's update, which keeps the mean exact and
// the variance at zero for a constant series.
type seriesAccumulator struct {
	n    int
	mean float64
	m2   float64
	max  Extreme
	min  Extreme
}

func (a *seriesAccumulator) add(value float64, index int, timestamp float64) {
	a.n++
	delta := value - a.mean
	a.mean += delta / float64(a.n)
	a.m2 += delta * (value - a.mean)

	if a.n == 1 || value > a.max.Value {
		a.max = Extreme{Value: value, Index: index, Timestamp: timestamp}
	}
	if a.n == 1 || value < a.min.Value {
		a.min = Extreme{Value: value, Index: index, Timestamp: timestamp}
	}
}

func (a *seriesAccumulator) stats() SeriesStats {
	if a.n == 0 {
		return SeriesStats{}
	}
	return SeriesStats{
		Count:  a.n,
		Mean:   a.mean,
		StdDev: math.Sqrt(a.m2 / float64(a.n)),
		Max:    a.max,
		Min:    a.min,
	}
}
