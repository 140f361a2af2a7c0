package report

import (
	"github.com/goccy/go-json"

	"github.com/autobrr/go-bitrate/internal/analysis"
	"github.com/autobrr/go-bitrate/internal/probe"
)

type JSONOptions struct {
	// Frames includes the retained per-frame series.
	Frames bool
}

type Document struct {
	CreatingLibrary Library `json:"creatingLibrary"`
	Media           Media   `json:"media"`
}

type Library struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	URL     string `json:"url"`
}

type Media struct {
	Ref        string           `json:"@ref"`
	Stream     probe.StreamInfo `json:"stream"`
	Options    jsonOptions      `json:"options"`
	Statistics jsonStatistics   `json:"statistics"`
	Keyframes  []jsonKeyframe   `json:"keyframes"`
	Sampling   jsonSampling     `json:"sampling"`
	Warnings   []jsonWarning    `json:"warnings"`
	Timeline   []jsonWindow     `json:"timeline"`
	Frames     []jsonFrame      `json:"frames,omitempty"`
}

type jsonOptions struct {
	WindowLength float64 `json:"window_length"`
	WindowStep   float64 `json:"window_step"`
	MaxSamples   int     `json:"max_samples"`
	FrameRate    float64 `json:"frame_rate,omitempty"`
}

type jsonStatistics struct {
	FrameCount       int         `json:"frame_count"`
	TotalSize        int64       `json:"total_size"`
	TotalDuration    float64     `json:"total_duration"`
	OverallBitrate   float64     `json:"overall_bitrate"`
	KeyframeCount    int         `json:"keyframe_count"`
	KeyframeInterval float64     `json:"keyframe_interval"`
	PerFrame         jsonSummary `json:"per_frame"`
	Windowed         jsonSummary `json:"windowed"`
}

type jsonSummary struct {
	Count  int         `json:"count"`
	Mean   float64     `json:"mean"`
	StdDev float64     `json:"std_dev"`
	Max    jsonExtreme `json:"max"`
	Min    jsonExtreme `json:"min"`
}

type jsonExtreme struct {
	Value     float64 `json:"value"`
	Index     int     `json:"index"`
	Timestamp float64 `json:"timestamp"`
}

type jsonKeyframe struct {
	Index     int     `json:"index"`
	Timestamp float64 `json:"timestamp"`
}

type jsonSampling struct {
	Applied  bool `json:"applied"`
	Stride   int  `json:"stride"`
	Total    int  `json:"total"`
	Retained int  `json:"retained"`
}

type jsonWarning struct {
	Kind    string `json:"kind"`
	Notice  bool   `json:"notice"`
	Index   int    `json:"index"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}

type jsonWindow struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Bits    float64 `json:"bits"`
	Bitrate float64 `json:"bitrate"`
}

type jsonFrame struct {
	Index     int     `json:"index"`
	Timestamp float64 `json:"timestamp"`
	Duration  float64 `json:"duration"`
	Size      int64   `json:"size"`
	Bitrate   float64 `json:"bitrate"`
	Keyframe  bool    `json:"keyframe,omitempty"`
	Anomalous bool    `json:"anomalous,omitempty"`
}

// RenderJSON renders one report as an object and several as an array.
func RenderJSON(reports []Report, opts JSONOptions) (string, error) {
	var payload any
	if len(reports) == 1 {
		payload = NewDocument(reports[0], opts)
	} else {
		docs := make([]Document, 0, len(reports))
		for _, report := range reports {
			docs = append(docs, NewDocument(report, opts))
		}
		payload = docs
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

func NewDocument(report Report, opts JSONOptions) Document {
	result := report.Result
	stats := result.Stats()
	options := result.Options()
	sampling := result.Sampling()

	media := Media{
		Ref:    report.Ref,
		Stream: report.Info,
		Options: jsonOptions{
			WindowLength: options.WindowLength,
			WindowStep:   options.WindowStep,
			MaxSamples:   options.MaxSamples,
			FrameRate:    options.FrameRate,
		},
		Statistics: jsonStatistics{
			FrameCount:       stats.FrameCount,
			TotalSize:        stats.TotalSize,
			TotalDuration:    stats.TotalDuration,
			OverallBitrate:   stats.OverallBitrate,
			KeyframeCount:    stats.KeyframeCount(),
			KeyframeInterval: stats.KeyframeInterval,
			PerFrame:         summary(stats.PerFrame),
			Windowed:         summary(stats.Windowed),
		},
		Keyframes: make([]jsonKeyframe, 0, len(stats.Keyframes)),
		Sampling: jsonSampling{
			Applied:  sampling.Applied,
			Stride:   sampling.Stride,
			Total:    sampling.Total,
			Retained: sampling.Retained,
		},
		Warnings: []jsonWarning{},
	}

	for _, keyframe := range stats.Keyframes {
		media.Keyframes = append(media.Keyframes, jsonKeyframe{Index: keyframe.Index, Timestamp: keyframe.Timestamp})
	}
	for _, warning := range result.Warnings() {
		media.Warnings = append(media.Warnings, jsonWarning{
			Kind:    string(warning.Kind),
			Notice:  warning.Notice(),
			Index:   warning.Index,
			Count:   warning.Count,
			Message: warning.Message,
		})
	}

	windows := result.Windows()
	media.Timeline = make([]jsonWindow, 0, len(windows))
	for _, window := range windows {
		media.Timeline = append(media.Timeline, jsonWindow{Start: window.Start, End: window.End, Bits: window.Bits, Bitrate: window.Bitrate})
	}

	if opts.Frames {
		frames := result.Frames()
		media.Frames = make([]jsonFrame, 0, len(frames))
		for _, frame := range frames {
			media.Frames = append(media.Frames, jsonFrame{
				Index:     frame.Index,
				Timestamp: frame.Timestamp,
				Duration:  frame.Duration,
				Size:      frame.Size,
				Bitrate:   frame.Bitrate,
				Keyframe:  frame.Keyframe,
				Anomalous: frame.Anomalous,
			})
		}
	}

	return Document{
		CreatingLibrary: Library{Name: AppName, Version: FormatVersion(AppVersion), URL: AppURL},
		Media:           media,
	}
}

func summary(stats analysis.SeriesStats) jsonSummary {
	return jsonSummary{
		Count:  stats.Count,
		Mean:   stats.Mean,
		StdDev: stats.StdDev,
		Max:    jsonExtreme(stats.Max),
		Min:    jsonExtreme(stats.Min),
	}
}
