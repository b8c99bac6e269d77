// Package snapshot caches fetched datasets on disk as timestamped,
// immutable directories and reuses the newest one while it is fresh.
package snapshot

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DirTimeLayout is the timestamp part of a snapshot directory name (UTC).
const DirTimeLayout = "2006-01-02-15-04-05"

// Snapshot is one captured dataset.
type Snapshot[T any] struct {
	Info
	Payload T

	// Hit is true when the payload was loaded from disk instead of fetched.
	Hit bool
	// Persisted is false when a fresh fetch could not be written to disk.
	Persisted bool
}

// Info describes a snapshot directory without loading its payload.
type Info struct {
	DirName    string
	CapturedAt time.Time
	Path       string
}

// Age returns how old the snapshot is relative to now.
func (i Info) Age(now time.Time) time.Duration {
	return now.Sub(i.CapturedAt)
}

// Query controls GetOrFetch.
type Query struct {
	MaxAge       time.Duration
	ForceRefresh bool
}

// Fetcher produces a fresh dataset.
type Fetcher[T any] interface {
	Fetch(ctx context.Context) (T, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc[T any] func(ctx context.Context) (T, error)

func (f FetcherFunc[T]) Fetch(ctx context.Context) (T, error) {
	return f(ctx)
}

// FormatDirName returns the directory name for a snapshot captured at t.
func FormatDirName(prefix string, t time.Time) string {
	return prefix + "-" + t.UTC().Format(DirTimeLayout)
}

// ParseDirName recovers the capture time from a directory name produced by FormatDirName.
func ParseDirName(prefix, name string) (time.Time, error) {
	stamp, ok := strings.CutPrefix(name, prefix+"-")
	if !ok {
		return time.Time{}, fmt.Errorf("snapshot name %q lacks prefix %q", name, prefix)
	}
	t, err := time.ParseInLocation(DirTimeLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("snapshot name %q: %w", name, err)
	}
	if FormatDirName(prefix, t) != name {
		return time.Time{}, fmt.Errorf("snapshot name %q is not canonical", name)
	}
	return t, nil
}
