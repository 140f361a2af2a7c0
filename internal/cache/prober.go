package cache

import (
	"context"
	"errors"
	"os"

	"github.com/autobrr/go-bitrate/internal/logging"
	"github.com/autobrr/go-bitrate/internal/metrics"
	"github.com/autobrr/go-bitrate/internal/probe"
)

// Prober serves probe results from the store and falls through to the
// wrapped prober on a miss.
type Prober struct {
	next  probe.Prober
	store *Store
}

func NewProber(next probe.Prober, store *Store) *Prober {
	return &Prober{next: next, store: store}
}

func (p *Prober) Name() string { return p.next.Name() }

func (p *Prober) Probe(ctx context.Context, path string) (probe.Media, error) {
	info, err := os.Stat(path)
	if err != nil {
		return probe.Media{}, err
	}
	key := Key(path, info, p.next.Name())

	media, err := p.store.Get(key)
	switch {
	case err == nil:
		metrics.RecordCacheLookup(true)
		logging.Debug().Str("file", path).Int("frames", len(media.Frames)).Msg("probe cache hit")
		media.Path = path
		return media, nil
	case errors.Is(err, ErrMiss):
		metrics.RecordCacheLookup(false)
	default:
		logging.Warn().Err(err).Str("file", path).Msg("probe cache read failed")
	}

	media, err = p.next.Probe(ctx, path)
	if err != nil {
		return probe.Media{}, err
	}
	if err := p.store.Put(key, media); err != nil {
		logging.Warn().Err(err).Str("file", path).Msg("probe cache write failed")
	}
	return media, nil
}

// Invalidate drops the cached entry for the current version of path.
func (p *Prober) Invalidate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return p.store.Delete(Key(path, info, p.next.Name()))
}
