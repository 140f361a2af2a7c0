// Package runner connects probing, analysis and reporting for one or many
// files.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/autobrr/go-bitrate/internal/analysis"
	"github.com/autobrr/go-bitrate/internal/logging"
	"github.com/autobrr/go-bitrate/internal/metrics"
	"github.com/autobrr/go-bitrate/internal/probe"
	"github.com/autobrr/go-bitrate/internal/report"
)

// invalidator is implemented by probers that keep results between runs.
type invalidator interface {
	Invalidate(path string) error
}

type Runner struct {
	prober probe.Prober
	opts   analysis.Options
	jobs   int
}

// New returns a runner. jobs below 1 means one file at a time.
func New(prober probe.Prober, opts analysis.Options, jobs int) *Runner {
	if jobs < 1 {
		jobs = 1
	}
	return &Runner{prober: prober, opts: opts, jobs: jobs}
}

func (r *Runner) AnalyzeFile(ctx context.Context, path string) (report.Report, error) {
	return r.AnalyzeFileWithOptions(ctx, path, r.opts)
}

// AnalyzeFileWithOptions probes path and analyses its frames with opts. A
// zero FrameRate is filled in from the stream metadata.
func (r *Runner) AnalyzeFileWithOptions(ctx context.Context, path string, opts analysis.Options) (report.Report, error) {
	log := logging.WithRunID().With().Str("file", path).Logger()
	started := time.Now()

	media, err := r.prober.Probe(ctx, path)
	if err != nil {
		metrics.RecordAnalysis(r.prober.Name(), 0, time.Since(started), err)
		return report.Report{}, err
	}
	log.Debug().Int("frames", len(media.Frames)).Str("backend", media.Info.Backend).Msg("probe finished")

	if opts.FrameRate == 0 && media.Info.FrameRate > 0 {
		opts.FrameRate = media.Info.FrameRate
	}

	result, err := analysis.Analyze(media.Frames, opts)
	metrics.RecordAnalysis(r.prober.Name(), len(media.Frames), time.Since(started), err)
	if err != nil {
		r.dropRejectedFrames(path, err)
		return report.Report{}, err
	}

	for _, warning := range result.Warnings() {
		event := log.Warn()
		if warning.Notice() {
			event = log.Info()
		}
		event.Str("kind", string(warning.Kind)).Int("count", warning.Count).Int("index", warning.Index).Msg(warning.Message)
	}
	log.Info().
		Int("frames", result.FrameCount()).
		Float64("overall_bitrate", result.OverallBitrate()).
		Dur("elapsed", time.Since(started)).
		Msg("analysis finished")

	return report.Report{Ref: path, Info: media.Info, Result: result}, nil
}

// dropRejectedFrames forgets stored frames the engine refused, so the next
// run extracts them again.
func (r *Runner) dropRejectedFrames(path string, err error) {
	var malformed *analysis.MalformedRecordError
	if !errors.Is(err, analysis.ErrEmptySeries) && !errors.As(err, &malformed) {
		return
	}
	inv, ok := r.prober.(invalidator)
	if !ok {
		return
	}
	if err := inv.Invalidate(path); err != nil {
		logging.Warn().Err(err).Str("file", path).Msg("could not drop cached frames")
		return
	}
	logging.Debug().Str("file", path).Msg("dropped cached frames rejected by analysis")
}

// AnalyzeFiles analyses every file (directories are expanded) with up to
// jobs analyses in flight. Reports keep the order of the expanded paths; the
// first failure cancels the rest.
func (r *Runner) AnalyzeFiles(ctx context.Context, paths []string) ([]report.Report, error) {
	expanded, err := ExpandPaths(paths)
	if err != nil {
		return nil, err
	}

	reports := make([]report.Report, len(expanded))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.jobs)
	for i, path := range expanded {
		i, path := i, path
		g.Go(func() error {
			rep, err := r.AnalyzeFile(ctx, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// ExpandPaths replaces each directory by the regular files directly inside
// it, sorted by name.
func ExpandPaths(paths []string) ([]string, error) {
	expanded := make([]string, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			expanded = append(expanded, path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() || entry.Name()[0] == '.' {
				continue
			}
			names = append(names, entry.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			expanded = append(expanded, filepath.Join(path, name))
		}
	}
	return expanded, nil
}
