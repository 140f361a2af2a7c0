package analysis

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestSeries(t *testing.T, records []RawFrameRecord, opts Options) []FrameSample {
	t.Helper()
	series, _, err := BuildSeries(records, opts)
	require.NoError(t, err)
	return series
}

func TestAverageWindowsThreeFrames(t *testing.T) {
	series := buildTestSeries(t, []RawFrameRecord{
		Frame(1000, 0.0, FrameTypeI),
		Frame(2000, 0.5, FrameTypeP),
		Frame(1500, 1.0, FrameTypeP),
	}, Options{FallbackDuration: 0.5})

	for _, limit := range []int{DefaultLinearScanLimit, -1} {
		windows, err := AverageWindows(series, Options{WindowLength: 1, LinearScanLimit: limit})
		require.NoError(t, err)
		require.Len(t, windows, 2)

		assert.Equal(t, 0.0, windows[0].Start)
		assert.Equal(t, 1.0, windows[0].End)
		assert.InDelta(t, 24000, windows[0].Bits, 1e-6)
		assert.InDelta(t, 24000, windows[0].Bitrate, 1e-6)

		assert.Equal(t, 1.0, windows[1].Start)
		assert.InDelta(t, 1.5, windows[1].End, 1e-12)
		assert.InDelta(t, 12000, windows[1].Bits, 1e-6)
		assert.InDelta(t, 24000, windows[1].Bitrate, 1e-6)
	}
}

func TestAverageWindowsFractionalAttribution(t *testing.T) {
	// 6000 bits per 0.75s frame; frame 1 straddles 1.0 and frame 2 straddles 2.0
	series := buildTestSeries(t, []RawFrameRecord{
		Frame(750, 0.0, FrameTypeI),
		Frame(750, 0.75, FrameTypeP),
		Frame(750, 1.5, FrameTypeP),
	}, Options{})

	for _, limit := range []int{DefaultLinearScanLimit, -1} {
		windows, err := AverageWindows(series, Options{WindowLength: 1, LinearScanLimit: limit})
		require.NoError(t, err)
		require.Len(t, windows, 3)
		assert.InDelta(t, 6000+2000, windows[0].Bits, 1e-6)
		assert.InDelta(t, 4000+4000, windows[1].Bits, 1e-6)
		assert.InDelta(t, 2000, windows[2].Bits, 1e-6)
		assert.InDelta(t, 0.25, windows[2].Span(), 1e-12)
		for _, w := range windows {
			assert.InDelta(t, 8000, w.Bitrate, 1e-6)
		}
	}
}

func TestAverageWindowsReportsEmptyWindows(t *testing.T) {
	series := []FrameSample{
		{Index: 0, Timestamp: 0, Duration: 0.5, Size: 1000, Bitrate: 16000},
		{Index: 1, Timestamp: 3.0, Duration: 0.5, Size: 1000, Bitrate: 16000},
	}

	windows, err := AverageWindows(series, Options{WindowLength: 1, LinearScanLimit: -1})
	require.NoError(t, err)
	require.Len(t, windows, 4)
	assert.Equal(t, 0.0, windows[1].Bitrate)
	assert.Equal(t, 0.0, windows[2].Bitrate)
	assert.InDelta(t, 16000, windows[3].Bitrate, 1e-6)
}

func TestAverageWindowsOverlappingSteps(t *testing.T) {
	series := buildTestSeries(t, uniformRecords(100, 0.04, 500), Options{})

	windows, err := AverageWindows(series, Options{WindowLength: 1, WindowStep: 0.5})
	require.NoError(t, err)
	require.Len(t, windows, 8)
	for i, w := range windows {
		assert.InDelta(t, float64(i)*0.5, w.Start, 1e-12)
		assert.InDelta(t, 100000, w.Bitrate, 1e-3, "window %d", i)
	}
	assert.InDelta(t, 4.0, windows[len(windows)-1].End, 1e-9)
}

func TestAverageWindowsCoverWithoutGaps(t *testing.T) {
	series := buildTestSeries(t, uniformRecords(250, 1.0/30, 1200), Options{})

	windows, err := AverageWindows(series, Options{WindowLength: 2})
	require.NoError(t, err)
	require.NotEmpty(t, windows)
	assert.Equal(t, 0.0, windows[0].Start)
	for i := 1; i < len(windows); i++ {
		assert.Equal(t, windows[i-1].End, windows[i].Start)
	}
	assert.InDelta(t, seriesDuration(series), windows[len(windows)-1].End, 1e-12)
}

func TestAverageWindowsFullWindowBits(t *testing.T) {
	// 10 frames of 0.25s: full windows [0,1) and [1,2), partial [2,2.5)
	records := make([]RawFrameRecord, 10)
	for i := range records {
		records[i] = Frame(int64(100*(i+1)), float64(i)*0.25, FrameTypeP)
	}
	series := buildTestSeries(t, records, Options{})

	windows, err := AverageWindows(series, Options{WindowLength: 1})
	require.NoError(t, err)
	require.Len(t, windows, 3)

	var fullBits float64
	for _, sample := range series {
		if sample.End() <= 2.0 {
			fullBits += sample.Bits()
		}
	}
	var windowBits float64
	for _, w := range windows[:2] {
		windowBits += w.Bitrate * 1.0
	}
	assert.InDelta(t, fullBits, windowBits, 1e-6)

	last := windows[2]
	assert.InDelta(t, 0.5, last.Span(), 1e-12)
	assert.InDelta(t, (900+1000)*8/0.5, last.Bitrate, 1e-6)
}

func TestScanAndSweepAgreeOnVariableFrameRate(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	records := make([]RawFrameRecord, 3000)
	ts := 0.0
	for i := range records {
		frameType := FrameTypeP
		if i%48 == 0 {
			frameType = FrameTypeI
		}
		records[i] = Frame(int64(200+rng.Intn(40000)), ts, frameType)
		// 15 to 60 fps with occasional duplicate timestamps
		if rng.Intn(100) > 0 {
			ts += 1.0/60 + rng.Float64()*(1.0/15-1.0/60)
		}
	}
	series := buildTestSeries(t, records, Options{})

	for _, opts := range []Options{
		{WindowLength: 1},
		{WindowLength: 0.7, WindowStep: 0.3},
		{WindowLength: 2.5, WindowStep: 2.5},
	} {
		scanOpts, sweepOpts := opts, opts
		scanOpts.LinearScanLimit = len(series) + 1
		sweepOpts.LinearScanLimit = -1

		scanned, err := AverageWindows(series, scanOpts)
		require.NoError(t, err)
		swept, err := AverageWindows(series, sweepOpts)
		require.NoError(t, err)

		require.Len(t, swept, len(scanned))
		for i := range scanned {
			assert.InEpsilon(t, scanned[i].Bits+1, swept[i].Bits+1, 1e-9, "window %d", i)
		}
	}
}

func uniformRecords(n int, interval float64, size int64) []RawFrameRecord {
	records := make([]RawFrameRecord, n)
	for i := range records {
		frameType := FrameTypeP
		if i%25 == 0 {
			frameType = FrameTypeI
		}
		records[i] = Frame(size, float64(i)*interval, frameType)
	}
	return records
}
