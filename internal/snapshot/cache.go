package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Cache stores snapshots of one dataset under root, one directory per capture.
//
// A Cache is meant for a single process. Two processes sharing a root may both
// fetch, and a same-second collision makes the later writer report a
// PersistenceError.
type Cache[T any] struct {
	root   string
	prefix string
	logger *zap.Logger

	// Now returns the current time. Replaced in tests.
	Now func() time.Time
}

// New returns a cache rooted at root for snapshots named <prefix>-<timestamp>.
// The root directory is created if missing.
func New[T any](root, prefix string, logger *zap.Logger) (*Cache[T], error) {
	if prefix == "" || strings.ContainsAny(prefix, `/\`) || strings.HasPrefix(prefix, ".") {
		return nil, fmt.Errorf("invalid snapshot prefix %q", prefix)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache[T]{
		root:   root,
		prefix: prefix,
		logger: logger.With(zap.String("dataset", prefix)),
		Now:    time.Now,
	}, nil
}

func (c *Cache[T]) Root() string   { return c.root }
func (c *Cache[T]) Prefix() string { return c.prefix }

// GetOrFetch returns the newest snapshot if it is at most q.MaxAge old,
// otherwise it calls f exactly once and persists the result.
//
// A fetch failure returns *FetchError and writes nothing. A write failure
// returns the fetched snapshot together with a *PersistenceError.
func (c *Cache[T]) GetOrFetch(ctx context.Context, q Query, f Fetcher[T]) (*Snapshot[T], error) {
	now := c.Now().UTC()

	if !q.ForceRefresh {
		if snap, ok := c.fresh(now, q.MaxAge); ok {
			return snap, nil
		}
	} else {
		c.logger.Debug("force refresh requested")
	}

	start := time.Now()
	payload, err := f.Fetch(ctx)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	c.logger.Info("fetched fresh snapshot", zap.Duration("elapsed", time.Since(start)))

	capturedAt := c.Now().UTC().Truncate(time.Second)
	name := FormatDirName(c.prefix, capturedAt)
	snap := &Snapshot[T]{
		Info: Info{
			DirName:    name,
			CapturedAt: capturedAt,
			Path:       filepath.Join(c.root, name),
		},
		Payload: payload,
	}

	if err := writeSnapshot(c.root, c.prefix, name, capturedAt, payload); err != nil {
		return snap, &PersistenceError{DirName: name, Err: err}
	}
	snap.Persisted = true
	c.logger.Info("saved snapshot", zap.String("dir", name))
	return snap, nil
}

// fresh loads the newest snapshot if it is within maxAge of now.
func (c *Cache[T]) fresh(now time.Time, maxAge time.Duration) (*Snapshot[T], bool) {
	infos, err := c.List()
	if err != nil {
		c.logger.Warn("cannot list snapshots, fetching instead", zap.Error(err))
		return nil, false
	}
	if len(infos) == 0 {
		c.logger.Debug("no snapshots found")
		return nil, false
	}

	latest := infos[0]
	age := latest.Age(now)
	if age > maxAge {
		c.logger.Debug("latest snapshot is stale",
			zap.String("dir", latest.DirName),
			zap.Duration("age", age),
			zap.Duration("max_age", maxAge),
		)
		return nil, false
	}

	snap, err := c.load(latest)
	if err != nil {
		c.logger.Warn("ignoring unreadable snapshot", zap.String("dir", latest.DirName), zap.Error(err))
		return nil, false
	}
	snap.Hit = true
	c.logger.Info("using cached snapshot", zap.String("dir", latest.DirName), zap.Duration("age", age))
	return snap, true
}

// List returns the parseable snapshot directories, newest first.
func (c *Cache[T]) List() ([]Info, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("read cache root: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		t, err := ParseDirName(c.prefix, e.Name())
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			DirName:    e.Name(),
			CapturedAt: t,
			Path:       filepath.Join(c.root, e.Name()),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CapturedAt.After(infos[j].CapturedAt)
	})
	return infos, nil
}

// Latest returns the newest snapshot directory, if any.
func (c *Cache[T]) Latest() (*Info, bool, error) {
	infos, err := c.List()
	if err != nil {
		return nil, false, err
	}
	if len(infos) == 0 {
		return nil, false, nil
	}
	return &infos[0], true, nil
}

// Load reads the snapshot stored in the named directory regardless of age.
func (c *Cache[T]) Load(name string) (*Snapshot[T], error) {
	t, err := ParseDirName(c.prefix, name)
	if err != nil {
		return nil, err
	}
	snap, err := c.load(Info{DirName: name, CapturedAt: t, Path: filepath.Join(c.root, name)})
	if err != nil {
		return nil, err
	}
	snap.Hit = true
	return snap, nil
}

func (c *Cache[T]) load(info Info) (*Snapshot[T], error) {
	var payload T
	if _, err := readSnapshot(info.Path, c.prefix, &payload); err != nil {
		return nil, err
	}
	return &Snapshot[T]{Info: info, Payload: payload, Persisted: true}, nil
}

// Prune removes all but the newest keep snapshots and returns the removed names.
// Leftover staging directories are removed as well.
func (c *Cache[T]) Prune(keep int) ([]string, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep must be non-negative, got %d", keep)
	}
	infos, err := c.List()
	if err != nil {
		return nil, err
	}

	var removed []string
	var errs []error
	if len(infos) > keep {
		for _, info := range infos[keep:] {
			if err := os.RemoveAll(info.Path); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", info.DirName, err))
				continue
			}
			removed = append(removed, info.DirName)
			c.logger.Info("pruned snapshot", zap.String("dir", info.DirName))
		}
	}

	stale, _ := filepath.Glob(filepath.Join(c.root, tmpPrefix+c.prefix+"-*"))
	for _, dir := range stale {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", filepath.Base(dir), err))
		}
	}

	return removed, errors.Join(errs...)
}
