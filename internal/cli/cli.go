package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/autobrr/go-bitrate/internal/analysis"
	"github.com/autobrr/go-bitrate/internal/cache"
	"github.com/autobrr/go-bitrate/internal/config"
	"github.com/autobrr/go-bitrate/internal/logging"
	"github.com/autobrr/go-bitrate/internal/probe"
	"github.com/autobrr/go-bitrate/internal/report"
	"github.com/autobrr/go-bitrate/internal/runner"
)

const (
	exitOK    = 0
	exitError = 1
)

// Run analyses files and writes the selected output to stdout (and to
// cfg.Output.File when set). It returns the process exit code.
func Run(ctx context.Context, program string, cfg config.Config, files []string, stdout, stderr io.Writer) int {
	if len(files) == 0 {
		return Usage(program, stdout)
	}

	prober, closeProber, err := newProber(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return exitError
	}
	defer func() {
		if err := closeProber(); err != nil {
			logging.Warn().Err(err).Msg("closing probe cache")
		}
	}()

	r := runner.New(prober, cfg.Analysis.Options(), cfg.Jobs)
	reports, err := r.AnalyzeFiles(ctx, files)
	if err != nil {
		fmt.Fprintln(stderr, describeError(err))
		return exitError
	}

	output, err := render(cfg.Output, reports)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return exitError
	}
	fmt.Fprint(stdout, output)

	if cfg.Output.File != "" {
		if err := writeLogFile(cfg.Output.File, output); err != nil {
			fmt.Fprintln(stderr, err.Error())
			return exitError
		}
	}
	return exitOK
}

var newProber = NewProber

// NewProber builds the configured probe backend, wrapped in the badger
// cache when caching is enabled. The returned func releases the cache.
func NewProber(cfg config.Config) (probe.Prober, func() error, error) {
	prober, err := probe.New(cfg.Probe)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Cache.Enabled {
		return prober, func() error { return nil }, nil
	}

	store, err := cache.Open(cfg.Cache.Dir, cfg.Cache.TTL)
	if err != nil {
		return nil, nil, err
	}
	logging.Debug().Str("dir", cfg.Cache.Dir).Msg("probe cache enabled")
	return cache.NewProber(prober, store), store.Close, nil
}

func render(out config.OutputConfig, reports []report.Report) (string, error) {
	switch strings.ToLower(out.Format) {
	case "", "text":
		return report.RenderText(reports), nil
	case "json":
		return report.RenderJSON(reports, report.JSONOptions{Frames: out.Frames})
	case "csv":
		return report.RenderCSV(reports)
	case "svg":
		return report.RenderGraphSVG(reports), nil
	}
	return "", fmt.Errorf("output format not implemented: %s", out.Format)
}

func describeError(err error) string {
	var malformed *analysis.MalformedRecordError
	switch {
	case errors.Is(err, analysis.ErrEmptySeries):
		return err.Error() + " (no video frames could be read from the file)"
	case errors.As(err, &malformed):
		return err.Error() + " (the extractor returned incomplete frame metadata)"
	case errors.Is(err, probe.ErrFFprobeNotFound):
		return err.Error() + " (install ffmpeg or point --ffprobe at the binary)"
	case errors.Is(err, probe.ErrNoVideoStream):
		return err.Error() + " (the file has no video track)"
	}
	return err.Error()
}

func ProgramName(arg0 string) string {
	name := filepath.Base(arg0)
	if runtime.GOOS == "windows" {
		ext := filepath.Ext(name)
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

func writeLogFile(path, output string) error {
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return err
	}
	return nil
}
