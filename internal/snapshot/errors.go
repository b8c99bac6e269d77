package snapshot

import (
	"errors"
	"fmt"
)

// ErrCorruptSnapshot marks a snapshot directory that cannot be loaded.
// GetOrFetch treats it as a miss; Load returns it.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// FetchError wraps a failure of the Fetcher. Nothing is written when it occurs.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("snapshot fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// PersistenceError is returned alongside a freshly fetched snapshot that could
// not be written to disk. The snapshot itself is still usable.
type PersistenceError struct {
	DirName string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("snapshot %s not persisted: %v", e.DirName, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
