package analysis

import (
	"cmp"
	"fmt"
	"slices"
)

// FrameSample is one frame in presentation order. Timestamp is relative to
// the earliest frame; Duration is always positive.
type FrameSample struct {
	Index     int
	Timestamp float64
	Duration  float64
	Size      int64
	Bitrate   float64
	Keyframe  bool
	Anomalous bool
}

func (s FrameSample) End() float64 {
	return s.Timestamp + s.Duration
}

func (s FrameSample) Bits() float64 {
	return float64(s.Size) * 8
}

// BuildSeries validates records and turns them into a presentation-ordered
// per-frame series with instantaneous bitrates.
func BuildSeries(records []RawFrameRecord, opts Options) ([]FrameSample, []Warning, error) {
	opts, err := normalizeOptions(opts)
	if err != nil {
		return nil, nil, err
	}
	return buildSeries(records, opts)
}

func buildSeries(records []RawFrameRecord, opts Options) ([]FrameSample, []Warning, error) {
	if len(records) == 0 {
		return nil, nil, ErrEmptySeries
	}
	for i, record := range records {
		if err := record.validate(i); err != nil {
			return nil, nil, err
		}
	}

	var warnings []Warning
	ordered := records
	if first, count := disorder(records); count > 0 {
		ordered = slices.Clone(records)
		slices.SortStableFunc(ordered, func(a, b RawFrameRecord) int {
			return cmp.Compare(a.Timestamp, b.Timestamp)
		})
		warnings = append(warnings, Warning{
			Kind:    WarningReordered,
			Index:   first,
			Count:   count,
			Message: fmt.Sprintf("%d frame timestamp(s) out of presentation order; frames re-sorted", count),
		})
	}

	n := len(ordered)
	origin := ordered[0].Timestamp
	durations := make([]float64, n)
	for i := 0; i < n-1; i++ {
		durations[i] = ordered[i+1].Timestamp - ordered[i].Timestamp
	}
	if n > 1 {
		durations[n-1] = durations[n-2]
	} else {
		tail, known := opts.tailDuration()
		durations[0] = tail
		if !known {
			warnings = append(warnings, Warning{
				Kind:    WarningFallbackDuration,
				Index:   0,
				Count:   1,
				Message: fmt.Sprintf("single frame without frame rate; duration assumed to be %gs", tail),
			})
		}
	}

	samples := make([]FrameSample, n)
	clamped, firstClamped := 0, -1
	for i, record := range ordered {
		duration := durations[i]
		anomalous := false
		if duration <= 0 {
			duration = MinDuration
			anomalous = true
			if clamped == 0 {
				firstClamped = i
			}
			clamped++
		}
		samples[i] = FrameSample{
			Index:     i,
			Timestamp: record.Timestamp - origin,
			Duration:  duration,
			Size:      record.Size,
			Bitrate:   float64(record.Size) * 8 / duration,
			Keyframe:  record.Type == FrameTypeI,
			Anomalous: anomalous,
		}
	}
	if clamped > 0 {
		warnings = append(warnings, Warning{
			Kind:    WarningAnomalousTiming,
			Index:   firstClamped,
			Count:   clamped,
			Message: fmt.Sprintf("%d frame(s) with non-positive duration clamped to %gs", clamped, MinDuration),
		})
	}
	return samples, warnings, nil
}

// disorder returns the arrival index of the first timestamp that goes
// backwards and how many do.
func disorder(records []RawFrameRecord) (int, int) {
	first, count := -1, 0
	for i := 1; i < len(records); i++ {
		if records[i].Timestamp < records[i-1].Timestamp {
			if count == 0 {
				first = i
			}
			count++
		}
	}
	return first, count
}

// seriesDuration is the end of the latest frame interval.
func seriesDuration(series []FrameSample) float64 {
	var total float64
	for _, sample := range series {
		if end := sample.End(); end > total {
			total = end
		}
	}
	return total
}
