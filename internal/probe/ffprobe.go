package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/autobrr/go-bitrate/internal/analysis"
	"github.com/autobrr/go-bitrate/internal/logging"
)

const ffprobeEntries = "stream=codec_name,codec_long_name,width,height,r_frame_rate,avg_frame_rate" +
	":format=duration,size,bit_rate,format_name" +
	":frame=pts_time,best_effort_timestamp_time,pkt_pts_time,pkt_dts_time,pkt_size,pict_type,key_frame"

// CommandRunner executes name with args and returns its standard output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

type FFprobe struct {
	path    string
	timeout time.Duration
	run     CommandRunner
}

func NewFFprobe(path string, timeout time.Duration) *FFprobe {
	if path == "" {
		path = "ffprobe"
	}
	return &FFprobe{path: path, timeout: timeout, run: execCommand}
}

// WithRunner replaces the process runner; tests feed canned output through it.
func (p *FFprobe) WithRunner(run CommandRunner) *FFprobe {
	p.run = run
	return p
}

func (p *FFprobe) Name() string { return BackendFFprobe }

func (p *FFprobe) Probe(ctx context.Context, path string) (Media, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Media{}, err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	started := time.Now()
	out, err := p.run(ctx, p.path, ffprobeArgs(path)...)
	if err != nil {
		return Media{}, err
	}
	logging.Debug().Str("file", path).Dur("elapsed", time.Since(started)).Int("bytes", len(out)).Msg("ffprobe finished")

	media, err := parseFFprobe(out)
	if err != nil {
		return Media{}, fmt.Errorf("ffprobe output: %w", err)
	}
	media.Path = path
	if media.Info.Size == 0 {
		media.Info.Size = info.Size()
	}
	return media, nil
}

func ffprobeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", ffprobeEntries,
		"-of", "json",
		path,
	}
}

func execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	bin, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFFprobeNotFound, name)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = exitErr.Error()
			}
			return nil, fmt.Errorf("ffprobe failed: %s", msg)
		}
		return nil, err
	}
	return out, nil
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Frames  []ffprobeFrame  `json:"frames"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecName     string `json:"codec_name"`
	CodecLongName string `json:"codec_long_name"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	RFrameRate    string `json:"r_frame_rate"`
	AvgFrameRate  string `json:"avg_frame_rate"`
}

type ffprobeFrame struct {
	PTSTime        string `json:"pts_time"`
	BestEffortTime string `json:"best_effort_timestamp_time"`
	PktPTSTime     string `json:"pkt_pts_time"`
	PktDTSTime     string `json:"pkt_dts_time"`
	PktSize        string `json:"pkt_size"`
	PictType       string `json:"pict_type"`
	KeyFrame       *int   `json:"key_frame"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

func parseFFprobe(data []byte) (Media, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Media{}, err
	}
	if len(out.Streams) == 0 {
		return Media{}, ErrNoVideoStream
	}

	stream := out.Streams[0]
	fps, ok := parseRate(stream.RFrameRate)
	if !ok {
		fps, _ = parseRate(stream.AvgFrameRate)
	}

	info := StreamInfo{
		Format:    out.Format.FormatName,
		Codec:     stream.CodecName,
		CodecLong: stream.CodecLongName,
		Width:     stream.Width,
		Height:    stream.Height,
		FrameRate: fps,
		Backend:   BackendFFprobe,
	}
	if v, ok := parseNumber(out.Format.Duration); ok {
		info.Duration = v
	}
	if v, ok := parseNumber(out.Format.Size); ok {
		info.Size = int64(v)
	}
	if v, ok := parseNumber(out.Format.BitRate); ok {
		info.BitRate = v
	}

	frames := make([]analysis.RawFrameRecord, len(out.Frames))
	for i, frame := range out.Frames {
		frames[i] = frame.record(i, fps)
	}
	return Media{Info: info, Frames: frames}, nil
}

func (f ffprobeFrame) record(index int, fps float64) analysis.RawFrameRecord {
	var record analysis.RawFrameRecord

	if size, err := strconv.ParseInt(strings.TrimSpace(f.PktSize), 10, 64); err == nil {
		record.Size = size
		record.HasSize = true
	}

	for _, candidate := range []string{f.PTSTime, f.BestEffortTime, f.PktPTSTime, f.PktDTSTime} {
		if ts, ok := parseNumber(candidate); ok {
			record.Timestamp = ts
			record.HasTimestamp = true
			break
		}
	}
	if !record.HasTimestamp && fps > 0 {
		record.Timestamp = float64(index) / fps
		record.HasTimestamp = true
	}

	record.Type = analysis.ParseFrameType(f.PictType)
	if record.Type == "" && f.KeyFrame != nil {
		record.Type = analysis.FrameTypeOther
		if *f.KeyFrame == 1 {
			record.Type = analysis.FrameTypeI
		}
	}
	return record
}

// parseNumber accepts ffprobe's decimal strings and rejects "N/A".
func parseNumber(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "N/A") {
		return 0, false
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseRate parses "num/den" rationals such as "30000/1001".
func parseRate(value string) (float64, bool) {
	num, den, found := strings.Cut(strings.TrimSpace(value), "/")
	if !found {
		return parseNumber(num)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 || n <= 0 {
		return 0, false
	}
	return n / d, true
}
