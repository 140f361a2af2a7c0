// Package bitrate is the public API of go-bitrate: frame-level bitrate
// analysis of video files and of raw frame metadata.
package bitrate

import (
	"context"

	"github.com/autobrr/go-bitrate/internal/analysis"
	"github.com/autobrr/go-bitrate/internal/config"
	"github.com/autobrr/go-bitrate/internal/probe"
	"github.com/autobrr/go-bitrate/internal/report"
	"github.com/autobrr/go-bitrate/internal/runner"
)

// Types
type FrameType = analysis.FrameType
type RawFrameRecord = analysis.RawFrameRecord
type Options = analysis.Options
type Result = analysis.Result
type FrameSample = analysis.FrameSample
type WindowedSample = analysis.WindowedSample
type Statistics = analysis.Statistics
type Warning = analysis.Warning
type MalformedRecordError = analysis.MalformedRecordError
type OptionsError = analysis.OptionsError
type StreamInfo = probe.StreamInfo
type Report = report.Report
type JSONOptions = report.JSONOptions

// Constants
const (
	FrameTypeI     = analysis.FrameTypeI
	FrameTypeP     = analysis.FrameTypeP
	FrameTypeB     = analysis.FrameTypeB
	FrameTypeOther = analysis.FrameTypeOther
)

// Errors
var (
	ErrEmptySeries     = analysis.ErrEmptySeries
	ErrUnsupported     = probe.ErrUnsupported
	ErrNoVideoStream   = probe.ErrNoVideoStream
	ErrFFprobeNotFound = probe.ErrFFprobeNotFound
)

// Engine
func Analyze(records []RawFrameRecord, opts Options) (Result, error) {
	return analysis.Analyze(records, opts)
}

func Frame(size int64, timestamp float64, frameType FrameType) RawFrameRecord {
	return analysis.Frame(size, timestamp, frameType)
}

func DefaultOptions() Options {
	return analysis.DefaultOptions()
}

// Files

// AnalyzeFile probes path with the automatic backend (native MP4 reader,
// ffprobe otherwise) and analyses it.
func AnalyzeFile(ctx context.Context, path string, opts Options) (Report, error) {
	prober, err := probe.New(config.ProbeConfig{Backend: probe.BackendAuto, FFprobePath: "ffprobe"})
	if err != nil {
		return Report{}, err
	}
	return runner.New(prober, opts, 1).AnalyzeFile(ctx, path)
}

func AnalyzeFiles(ctx context.Context, paths []string, opts Options, jobs int) ([]Report, error) {
	prober, err := probe.New(config.ProbeConfig{Backend: probe.BackendAuto, FFprobePath: "ffprobe"})
	if err != nil {
		return nil, err
	}
	return runner.New(prober, opts, jobs).AnalyzeFiles(ctx, paths)
}

// Rendering
func RenderText(reports []Report) string {
	return report.RenderText(reports)
}

func RenderJSON(reports []Report, opts JSONOptions) (string, error) {
	return report.RenderJSON(reports, opts)
}

func RenderCSV(reports []Report) (string, error) {
	return report.RenderCSV(reports)
}

func RenderGraphSVG(reports []Report) string {
	return report.RenderGraphSVG(reports)
}

func FormatVersion(version string) string {
	return report.FormatVersion(version)
}

func SetAppVersion(version string) {
	report.SetAppVersion(version)
}
