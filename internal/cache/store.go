// Package cache is the content-addressed on-disk store shared by every
// stage of the evaluation pipeline.
//
// Blobs are immutable and keyed by fingerprint. Two namespaces exist
// under the cache root: index/ for remote-index blobs and byproducts/
// for everything else. Writes go through a temp file plus atomic rename,
// so readers never observe partial blobs. GetOrCompute gives the
// single-flight guarantee: concurrent requests for a missing fingerprint
// elect exactly one producer, everyone else receives the producer's
// result, including its failure.
package cache

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"github.com/tonykolomeytsev/figx/internal/log"
)

const (
	indexDir      = "index"
	byproductsDir = "byproducts"
)

// Observer receives hit/miss notifications for metrics and progress.
type Observer interface {
	CacheHit(k Key, size int)
	CacheMiss(k Key)
}

type Store struct {
	root     string
	flight   singleflight.Group
	observer Observer
	logger   *slog.Logger
}

// NewStore opens (creating if needed) a cache rooted at dir, usually
// <workspace>/.figx-out/caches.
func NewStore(dir string) (*Store, error) {
	for _, sub := range []string{indexDir, byproductsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	return &Store{root: dir, logger: log.WithComponent("cache")}, nil
}

// SetObserver wires hit/miss reporting. Must be called before the store
// is shared between goroutines.
func (s *Store) SetObserver(o Observer) { s.observer = o }

func (s *Store) Root() string { return s.root }

func (s *Store) path(k Key) string {
	name := k.String()
	if k.tag == TagRemoteIndex {
		return filepath.Join(s.root, indexDir, name)
	}
	return filepath.Join(s.root, byproductsDir, name[:4], name)
}

// Get returns the blob for k if present. Read errors are treated as a
// corrupt entry and degrade to a miss.
func (s *Store) Get(k Key) ([]byte, bool) {
	data, err := os.ReadFile(s.path(k))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("unreadable cache entry treated as miss", "key", k.String(), "error", err)
		}
		return nil, false
	}
	return data, true
}

// Put stores the blob for k. Write errors propagate.
func (s *Store) Put(k Key, data []byte) error {
	dst := s.path(k)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create cache shard: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp*")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("publish cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry for k if it exists.
func (s *Store) Delete(k Key) error {
	err := os.Remove(s.path(k))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Contains reports whether k is present without reading the blob.
func (s *Store) Contains(k Key) bool {
	_, err := os.Stat(s.path(k))
	return err == nil
}

// GetOrCompute returns the blob for k, electing one producer among
// concurrent callers when it is missing. The producer's error is shared
// with every waiter and is never cached or retried here; nothing is
// stored on failure.
func (s *Store) GetOrCompute(k Key, produce func() ([]byte, error)) ([]byte, error) {
	if data, ok := s.Get(k); ok {
		s.notifyHit(k, len(data))
		return data, nil
	}
	v, err, _ := s.flight.Do(k.String(), func() (any, error) {
		// Double check: another flight may have published between our miss
		// and the election.
		if data, ok := s.Get(k); ok {
			s.notifyHit(k, len(data))
			return data, nil
		}
		s.notifyMiss(k)
		data, err := produce()
		if err != nil {
			return nil, err
		}
		if err := s.Put(k, data); err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *Store) notifyHit(k Key, size int) {
	if s.observer != nil {
		s.observer.CacheHit(k, size)
	}
}

func (s *Store) notifyMiss(k Key) {
	if s.observer != nil {
		s.observer.CacheMiss(k)
	}
}

// CleanAll removes every cache entry in both namespaces.
func (s *Store) CleanAll() error {
	for _, sub := range []string{indexDir, byproductsDir} {
		dir := filepath.Join(s.root, sub)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clean %s: %w", sub, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// CleanIndex drops only the remote-index namespace; `figx clean --index`
// uses this to force re-indexing without losing downloaded byproducts.
func (s *Store) CleanIndex() error {
	dir := filepath.Join(s.root, indexDir)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clean index: %w", err)
	}
	return os.MkdirAll(dir, 0o755)
}
