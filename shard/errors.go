package shard

import (
	"errors"
	"fmt"
)

var (
	// ErrLocked is returned when another process holds the migration manifest.
	ErrLocked = errors.New("shard: migration manifest is locked by another process")
	// ErrNoPending is returned by Resume and Rollback when there is nothing to do.
	ErrNoPending = errors.New("shard: no pending migration")
	// ErrLevels is returned for a level count outside [0, MaxLevels].
	ErrLevels = fmt.Errorf("shard: levels must be between 0 and %d", MaxLevels)
)

// InconsistentTreeError means the tree does not follow the 0 or 26 shard
// directories rule and needs an operator.
type InconsistentTreeError struct {
	Path   string
	Reason string
}

func (e *InconsistentTreeError) Error() string {
	return fmt.Sprintf("shard: inconsistent tree at %s: %s", e.Path, e.Reason)
}

// FilesystemError is an I/O failure on a given path.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("shard: %s %s: %s", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}
