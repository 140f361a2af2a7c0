package bitrate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/go-bitrate/pkg/bitrate"
)

func TestFacadeAnalyze(t *testing.T) {
	result, err := bitrate.Analyze([]bitrate.RawFrameRecord{
		bitrate.Frame(1000, 0, bitrate.FrameTypeI),
		bitrate.Frame(1000, 0.5, bitrate.FrameTypeP),
	}, bitrate.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, result.FrameCount())

	_, err = bitrate.Analyze(nil, bitrate.Options{})
	assert.ErrorIs(t, err, bitrate.ErrEmptySeries)

	out := bitrate.RenderText([]bitrate.Report{{Ref: "x.mp4", Result: result}})
	assert.Contains(t, out, "x.mp4")
}
