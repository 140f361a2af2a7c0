// Package cache persists probe results in a badger database so that
// re-analysing an unchanged file skips the expensive frame extraction.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/autobrr/go-bitrate/internal/probe"
)

// keyPrefix is bumped whenever the stored Media layout changes.
const keyPrefix = "media:v1:"

var ErrMiss = errors.New("cache miss")

type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens (or creates) the cache database in dir. A zero ttl keeps
// entries until the file they describe changes.
func Open(dir string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	opts.ValueLogFileSize = 64 << 20

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open probe cache: %w", err)
	}
	return &Store{db: db, ttl: ttl}, nil
}

// OpenInMemory returns a store that lives only as long as the process.
func OpenInMemory(ttl time.Duration) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open probe cache: %w", err)
	}
	return &Store{db: db, ttl: ttl}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(key string) (probe.Media, error) {
	var media probe.Media
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMiss
		}
		if err != nil {
			return fmt.Errorf("get cache entry: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &media)
		})
	})
	if err != nil {
		return probe.Media{}, err
	}
	return media, nil
}

func (s *Store) Put(key string, media probe.Media) error {
	data, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(keyPrefix+key), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Key identifies a file version as seen by one backend: any change to the
// path, size or modification time yields a new key.
func Key(path string, info os.FileInfo, backend string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return backend + "|" + abs + "|" + strconv.FormatInt(info.Size(), 10) + "|" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
}
