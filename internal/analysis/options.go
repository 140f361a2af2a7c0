package analysis

import (
	"fmt"
	"math"
)

const (
	DefaultWindowLength    = 1.0
	DefaultMaxSamples      = 100_000
	DefaultLinearScanLimit = 4096
	DefaultMaxWindows      = 1_000_000

	// MinDuration is the duration given to frames whose timing collapses to
	// zero or less, and to a lone frame when nothing better is known.
	MinDuration = 1e-6
)

// Options configures one analysis run. Zero values select defaults:
// WindowStep defaults to WindowLength, MaxSamples and LinearScanLimit to
// their package defaults. A negative MaxSamples disables decimation and a
// negative LinearScanLimit always selects the sweep strategy. MaxWindows caps
// the number of windows a stream may be divided into.
type Options struct {
	WindowLength     float64
	WindowStep       float64
	MaxSamples       int
	FrameRate        float64
	FallbackDuration float64
	LinearScanLimit  int
	MaxWindows       int
}

func DefaultOptions() Options {
	return Options{
		WindowLength:    DefaultWindowLength,
		WindowStep:      DefaultWindowLength,
		MaxSamples:      DefaultMaxSamples,
		LinearScanLimit: DefaultLinearScanLimit,
		MaxWindows:      DefaultMaxWindows,
	}
}

func normalizeOptions(opts Options) (Options, error) {
	if opts.WindowLength == 0 {
		opts.WindowLength = DefaultWindowLength
	}
	if opts.WindowStep == 0 {
		opts.WindowStep = opts.WindowLength
	}
	if opts.MaxSamples == 0 {
		opts.MaxSamples = DefaultMaxSamples
	}
	if opts.LinearScanLimit == 0 {
		opts.LinearScanLimit = DefaultLinearScanLimit
	}
	if opts.MaxWindows == 0 {
		opts.MaxWindows = DefaultMaxWindows
	}

	switch {
	case !positiveFinite(opts.WindowLength):
		return opts, &OptionsError{Option: "window length", Reason: "must be a positive number of seconds"}
	case !positiveFinite(opts.WindowStep):
		return opts, &OptionsError{Option: "window step", Reason: "must be a positive number of seconds"}
	case opts.WindowStep > opts.WindowLength:
		return opts, &OptionsError{Option: "window step", Reason: "must not exceed the window length"}
	case opts.MaxWindows < 0:
		return opts, &OptionsError{Option: "max windows", Reason: "must be zero (default) or positive"}
	case opts.FrameRate < 0 || math.IsNaN(opts.FrameRate) || math.IsInf(opts.FrameRate, 0):
		return opts, &OptionsError{Option: "frame rate", Reason: "must be zero (unknown) or positive"}
	case opts.FallbackDuration < 0 || math.IsNaN(opts.FallbackDuration) || math.IsInf(opts.FallbackDuration, 0):
		return opts, &OptionsError{Option: "fallback duration", Reason: "must be zero (derive) or positive"}
	}
	return opts, nil
}

// checkWindowCount rejects a window grid over a stream of total seconds
// that would hold more than MaxWindows windows.
func (o Options) checkWindowCount(total float64) error {
	count := math.Ceil((total-timeTolerance)/o.WindowStep) + 1
	if count > float64(o.MaxWindows) {
		return &OptionsError{
			Option: "window step",
			Reason: fmt.Sprintf("%gs over %gs of stream yields more than %d windows", o.WindowStep, total, o.MaxWindows),
		}
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// tailDuration is the duration of a frame that has no successor and no
// predecessor interval. The bool is false when only MinDuration was left.
func (o Options) tailDuration() (float64, bool) {
	if o.FallbackDuration > 0 {
		return o.FallbackDuration, true
	}
	if o.FrameRate > 0 {
		return 1 / o.FrameRate, true
	}
	return MinDuration, false
}
