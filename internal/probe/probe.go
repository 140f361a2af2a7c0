// Package probe extracts per-frame size, timing and picture type records
// from media files. Two backends exist: an ffprobe wrapper that handles any
// container ffmpeg can read, and a native MP4/QuickTime sample table reader.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/autobrr/go-bitrate/internal/analysis"
	"github.com/autobrr/go-bitrate/internal/config"
	"github.com/autobrr/go-bitrate/internal/logging"
)

const (
	BackendAuto    = "auto"
	BackendFFprobe = "ffprobe"
	BackendMP4     = "mp4"
)

var (
	ErrUnsupported     = errors.New("unsupported media")
	ErrNoVideoStream   = errors.New("no video stream")
	ErrFFprobeNotFound = errors.New("ffprobe executable not found")
)

// StreamInfo is container and stream metadata reported next to the frames.
type StreamInfo struct {
	Format    string  `json:"format"`
	Codec     string  `json:"codec"`
	CodecLong string  `json:"codec_long,omitempty"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	FrameRate float64 `json:"frame_rate,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	Size      int64   `json:"size,omitempty"`
	BitRate   float64 `json:"bit_rate,omitempty"`
	Backend   string  `json:"backend"`
}

type Media struct {
	Path   string                    `json:"path"`
	Info   StreamInfo                `json:"info"`
	Frames []analysis.RawFrameRecord `json:"frames"`
}

type Prober interface {
	Probe(ctx context.Context, path string) (Media, error)
	// Name identifies the backend; it is part of cache keys.
	Name() string
}

// New returns the prober selected by cfg.Backend.
func New(cfg config.ProbeConfig) (Prober, error) {
	switch cfg.Backend {
	case BackendFFprobe:
		return NewFFprobe(cfg.FFprobePath, cfg.Timeout), nil
	case BackendMP4:
		return NewMP4(), nil
	case BackendAuto, "":
		return NewAuto(NewFFprobe(cfg.FFprobePath, cfg.Timeout), NewMP4()), nil
	default:
		return nil, fmt.Errorf("unknown probe backend %q", cfg.Backend)
	}
}

// Auto sends ISO-BMFF files to the native reader and everything else, or
// anything the native reader cannot handle, to ffprobe.
type Auto struct {
	ffprobe Prober
	mp4     Prober
}

func NewAuto(ffprobe, mp4 Prober) *Auto {
	return &Auto{ffprobe: ffprobe, mp4: mp4}
}

func (a *Auto) Name() string { return BackendAuto }

func (a *Auto) Probe(ctx context.Context, path string) (Media, error) {
	format, err := sniffFile(path)
	if err != nil {
		return Media{}, err
	}

	if format == FormatMPEG4 || format == FormatQuickTime {
		media, err := a.mp4.Probe(ctx, path)
		if err == nil {
			return media, nil
		}
		if !errors.Is(err, ErrUnsupported) {
			return Media{}, err
		}
		logging.Debug().Str("file", path).Err(err).Msg("native reader declined file, using ffprobe")
	}

	media, err := a.ffprobe.Probe(ctx, path)
	if err != nil {
		return Media{}, err
	}
	if media.Info.Format == "" {
		media.Info.Format = format
	}
	return media, nil
}

func sniffFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	header := make([]byte, maxSniffBytes)
	n, err := io.ReadFull(file, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return DetectFormat(header[:n], path), nil
}
