package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeThreeFrameScenario(t *testing.T) {
	records := []RawFrameRecord{
		Frame(1000, 0.0, FrameTypeI),
		Frame(2000, 0.5, FrameTypeP),
		Frame(1500, 1.0, FrameTypeP),
	}

	result, err := Analyze(records, Options{WindowLength: 1, WindowStep: 1, FallbackDuration: 0.5})
	require.NoError(t, err)

	frames := result.Frames()
	require.Len(t, frames, 3)
	assert.InDelta(t, 16000, frames[0].Bitrate, 1e-6)
	assert.InDelta(t, 32000, frames[1].Bitrate, 1e-6)
	assert.InDelta(t, 24000, frames[2].Bitrate, 1e-6)

	stats := result.Stats()
	assert.InDelta(t, 24000, stats.PerFrame.Mean, 1e-9)
	assert.Equal(t, 1, stats.KeyframeCount())

	windows := result.Windows()
	require.Len(t, windows, 2)
	assert.InDelta(t, 24000, windows[0].Bitrate, 1e-6)
	assert.InDelta(t, 24000, windows[1].Bitrate, 1e-6)
	assert.InDelta(t, 0.5, windows[1].Span(), 1e-12)

	assert.False(t, result.Sampling().Applied)
	assert.Equal(t, 1, result.Sampling().Stride)
	assert.Empty(t, result.Warnings())
}

func TestAnalyzeSingleFrame(t *testing.T) {
	result, err := Analyze([]RawFrameRecord{Frame(4000, 12.5, FrameTypeI)}, Options{FrameRate: 24})
	require.NoError(t, err)

	require.Len(t, result.Frames(), 1)
	require.Len(t, result.Windows(), 1)
	assert.InDelta(t, 1.0/24, result.TotalDuration(), 1e-12)
	assert.InDelta(t, 32000*24, result.OverallBitrate(), 1e-6)
	assert.InDelta(t, 32000*24, result.Windows()[0].Bitrate, 1e-6)
}

func TestAnalyzeFatalErrors(t *testing.T) {
	_, err := Analyze(nil, Options{})
	require.ErrorIs(t, err, ErrEmptySeries)

	result, err := Analyze([]RawFrameRecord{Frame(10, 0, FrameTypeI), Frame(-5, 0.04, FrameTypeP)}, Options{})
	var malformed *MalformedRecordError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 1, malformed.Index)
	assert.Equal(t, Result{}, result)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	records := uniformRecords(5000, 1.0/29.97, 8000)
	records[100], records[101] = records[101], records[100]

	first, err := Analyze(records, Options{MaxSamples: 1000})
	require.NoError(t, err)
	second, err := Analyze(records, Options{MaxSamples: 1000})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAnalyzeOverallBitrateIgnoresWindowing(t *testing.T) {
	records := uniformRecords(900, 1.0/30, 5000)
	for i := range records {
		records[i].Size += int64(i % 17 * 300)
	}

	reference, err := Analyze(records, Options{})
	require.NoError(t, err)
	for _, opts := range []Options{
		{WindowLength: 0.5},
		{WindowLength: 2, WindowStep: 0.25},
		{WindowLength: 7.3},
		{WindowLength: 1, LinearScanLimit: -1},
	} {
		result, err := Analyze(records, opts)
		require.NoError(t, err)
		assert.Equal(t, reference.OverallBitrate(), result.OverallBitrate())
		assert.Equal(t, reference.Stats().PerFrame, result.Stats().PerFrame)
	}
}

func TestAnalyzeSamplesLargeSeries(t *testing.T) {
	records := uniformRecords(200_000, 1.0/60, 0)
	for i := range records {
		records[i].Size = int64(1000 + i%500)
	}

	sampled, err := Analyze(records, Options{MaxSamples: 100_000})
	require.NoError(t, err)
	reference, err := Analyze(records, Options{MaxSamples: -1})
	require.NoError(t, err)

	sampling := sampled.Sampling()
	assert.True(t, sampling.Applied)
	assert.Equal(t, 2, sampling.Stride)
	assert.Equal(t, 200_000, sampling.Total)
	assert.Equal(t, 100_000, sampling.Retained)
	assert.Len(t, sampled.Frames(), 100_000)
	assert.Equal(t, 2, sampled.Frames()[1].Index)

	assert.False(t, reference.Sampling().Applied)
	assert.Len(t, reference.Frames(), 200_000)

	want, got := reference.Stats(), sampled.Stats()
	assert.InDelta(t, want.PerFrame.Mean, got.PerFrame.Mean, 1e-6)
	assert.InDelta(t, want.PerFrame.StdDev, got.PerFrame.StdDev, 1e-6)
	assert.Equal(t, want.PerFrame.Max, got.PerFrame.Max)
	assert.Equal(t, want.OverallBitrate, got.OverallBitrate)
	assert.Equal(t, want.KeyframeCount(), got.KeyframeCount())
	assert.Equal(t, reference.Windows(), sampled.Windows())

	warnings := sampled.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, NoticeSamplingApplied, warnings[0].Kind)
	assert.True(t, warnings[0].Notice())
}

func TestAnalyzeAccessorsReturnCopies(t *testing.T) {
	result, err := Analyze(uniformRecords(50, 0.04, 100), Options{})
	require.NoError(t, err)

	frames := result.Frames()
	frames[0].Size = 999999
	assert.Equal(t, int64(100), result.Frames()[0].Size)

	stats := result.Stats()
	stats.Keyframes[0].Index = 42
	assert.Equal(t, 0, result.Stats().Keyframes[0].Index)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 1.0, opts.WindowLength)
	assert.Equal(t, opts.WindowLength, opts.WindowStep)
	assert.Equal(t, 100_000, opts.MaxSamples)

	normalized, err := normalizeOptions(Options{WindowLength: 2})
	require.NoError(t, err)
	assert.Equal(t, 2.0, normalized.WindowStep)
	assert.Equal(t, DefaultMaxSamples, normalized.MaxSamples)
	assert.Equal(t, DefaultLinearScanLimit, normalized.LinearScanLimit)
}

func TestNormalizeOptionsRejectsInvalid(t *testing.T) {
	cases := map[string]Options{
		"window length": {WindowLength: -1},
		"window step":   {WindowLength: 1, WindowStep: -0.5},
		"frame rate":    {FrameRate: -24},
		"fallback":      {FallbackDuration: -1},
		"max windows":   {MaxWindows: -1},
	}
	for name, opts := range cases {
		_, err := normalizeOptions(opts)
		var optsErr *OptionsError
		assert.ErrorAs(t, err, &optsErr, name)
	}
}

func TestAnalyzeRejectsOversizedWindowGrid(t *testing.T) {
	records := []RawFrameRecord{
		Frame(1000, 0, FrameTypeI),
		Frame(1000, 5, FrameTypeP),
		Frame(1000, 10, FrameTypeP),
	}

	cases := []struct {
		name string
		opts Options
	}{
		{name: "vanishing step", opts: Options{WindowLength: 1, WindowStep: 1e-12}},
		{name: "step below default cap", opts: Options{WindowLength: 1, WindowStep: 1e-6}},
		{name: "custom cap", opts: Options{WindowLength: 1, WindowStep: 0.5, MaxWindows: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var result Result
			var err error
			require.NotPanics(t, func() { result, err = Analyze(records, tc.opts) })

			var optsErr *OptionsError
			require.ErrorAs(t, err, &optsErr)
			assert.Equal(t, "window step", optsErr.Option)
			assert.Equal(t, Result{}, result)

			_, err = AverageWindows([]FrameSample{{Timestamp: 0, Duration: 15, Size: 3000}}, tc.opts)
			require.ErrorAs(t, err, &optsErr)
		})
	}

	// 15 s at 0.5 s steps is 31 grid points at most.
	result, err := Analyze(records, Options{WindowLength: 1, WindowStep: 0.5, MaxWindows: 40})
	require.NoError(t, err)
	assert.Len(t, result.Windows(), 30)
}
