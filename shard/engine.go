// Package shard spreads files over a tree of single letter directories, A
// to Z, chosen by a hash of the file name, and migrates a populated tree
// from one depth to another.
//
// A migration is planned into a list of idempotent steps written to a bolt
// manifest before anything moves, so an interrupted migration can be
// resumed or rolled back.
package shard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	d "github.com/tj/go-debug"

	"github.com/greut/sipi/internal/logger"
)

var debug = d.Debug("shard")

// Engine owns a shard tree. Its methods are safe for concurrent use, and
// migrations are serialized.
type Engine struct {
	root     string
	manifest string
	observer func(Step)

	mu     sync.Mutex
	levels atomic.Int64
}

type Option func(*Engine)

// WithManifest stores the manifest somewhere else than the root.
func WithManifest(path string) Option {
	return func(e *Engine) {
		e.manifest = path
	}
}

// WithObserver is called after every step that ran.
func WithObserver(fn func(Step)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// New opens the tree at root. An inconsistent tree is refused unless a
// pending migration explains it.
func New(root string, opts ...Option) (*Engine, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &FilesystemError{Op: "stat", Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &FilesystemError{Op: "stat", Path: root, Err: errors.New("not a directory")}
	}

	e := &Engine{
		root:     root,
		manifest: filepath.Join(root, ManifestName),
	}
	for _, opt := range opts {
		opt(e)
	}

	levels, err := CheckLevels(root)
	if err != nil {
		h, perr := e.Pending()
		if perr != nil || h == nil {
			return nil, err
		}
		logger.Warn("shard tree %s is inconsistent, a migration from %d to %d levels is pending", root, h.From, h.To)
		levels = h.From
	}
	e.levels.Store(int64(levels))
	return e, nil
}

func (e *Engine) Root() string {
	return e.root
}

// Levels is the depth of the tree as last seen.
func (e *Engine) Levels() int {
	return int(e.levels.Load())
}

// Refresh scans the tree again.
func (e *Engine) Refresh() (int, error) {
	levels, err := CheckLevels(e.root)
	if err != nil {
		return 0, err
	}
	e.levels.Store(int64(levels))
	return levels, nil
}

// Path is where name lives in the tree.
func (e *Engine) Path(name string) string {
	return Path(e.root, name, e.Levels())
}

// Place moves the file at src into the tree and returns its new path.
func (e *Engine) Place(ctx context.Context, src string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	dst := e.Path(src)
	if _, err := os.Stat(dst); err == nil {
		return "", &FilesystemError{Op: "place", Path: dst, Err: os.ErrExist}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", &FilesystemError{Op: "mkdir", Path: filepath.Dir(dst), Err: err}
	}
	if err := os.Rename(src, dst); err != nil {
		// rename fails across devices
		if err := copyFile(src, dst); err != nil {
			return "", err
		}
		if err := os.Remove(src); err != nil {
			return "", &FilesystemError{Op: "remove", Path: src, Err: err}
		}
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return &FilesystemError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return &FilesystemError{Op: "create", Path: dst, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return &FilesystemError{Op: "copy", Path: dst, Err: err}
	}
	if err := out.Close(); err != nil {
		return &FilesystemError{Op: "close", Path: dst, Err: err}
	}
	return nil
}

// Pending returns the header of an interrupted migration, or nil.
func (e *Engine) Pending() (*Header, error) {
	if _, err := os.Stat(e.manifest); os.IsNotExist(err) {
		return nil, nil
	}
	m, err := openManifest(e.manifest)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	h, _, err := m.pending()
	return h, err
}

// withManifest opens the manifest for the duration of fn and deletes the
// file if fn left it clean.
func (e *Engine) withManifest(fn func(m *manifest) error) error {
	m, err := openManifest(e.manifest)
	if err != nil {
		return err
	}

	ferr := fn(m)

	h, _, perr := m.pending()
	if cerr := m.Close(); ferr == nil {
		ferr = cerr
	}
	if ferr == nil && perr == nil && h == nil {
		ferr = removeManifest(e.manifest)
	}
	return ferr
}

// Migrate changes the depth of the tree to target, one level at a time.
// A pending migration is finished first. On cancellation the manifest is
// kept so Resume or Rollback can pick it up.
func (e *Engine) Migrate(ctx context.Context, target int) error {
	if target < 0 || target > MaxLevels {
		return ErrLevels
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.withManifest(func(m *manifest) error {
		if err := e.resume(ctx, m); err != nil && !errors.Is(err, ErrNoPending) {
			return err
		}
		return e.migrate(ctx, m, target)
	})
}

func (e *Engine) migrate(ctx context.Context, m *manifest, target int) error {
	for {
		current, err := CheckLevels(e.root)
		if err != nil {
			return err
		}
		e.levels.Store(int64(current))
		if current == target {
			return nil
		}

		var steps []Step
		next := current + 1
		if current < target {
			steps, err = planAdd(ctx, e.root, current)
		} else {
			next = current - 1
			steps, err = planRemove(ctx, e.root, current)
		}
		if err != nil {
			return err
		}

		logger.Info("shard: migrating %s from %d to %d levels (%d steps)", e.root, current, next, len(steps))
		h := Header{From: current, To: next, Target: target}
		if err := m.begin(h, steps); err != nil {
			return err
		}
		if err := e.run(ctx, m, steps, 0); err != nil {
			return err
		}
		if err := m.finish(); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		e.levels.Store(int64(next))
	}
}

// Resume finishes an interrupted migration, up to its final target.
func (e *Engine) Resume(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if h, err := e.Pending(); err != nil {
		return err
	} else if h == nil {
		return ErrNoPending
	}

	return e.withManifest(func(m *manifest) error {
		h, _, err := m.pending()
		if err != nil {
			return err
		}
		if err := e.resume(ctx, m); err != nil {
			return err
		}
		return e.migrate(ctx, m, h.Target)
	})
}

func (e *Engine) resume(ctx context.Context, m *manifest) error {
	h, cursor, err := m.pending()
	if err != nil {
		return err
	}
	if h == nil {
		return ErrNoPending
	}

	steps, err := m.steps()
	if err != nil {
		return err
	}
	if len(steps) != h.Steps {
		return fmt.Errorf("manifest: %d steps recorded, %d expected", len(steps), h.Steps)
	}

	logger.Info("shard: resuming migration of %s from %d to %d levels at step %d/%d", e.root, h.From, h.To, cursor, len(steps))
	if err := e.run(ctx, m, steps, cursor); err != nil {
		return err
	}
	if err := m.finish(); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	e.levels.Store(int64(h.To))
	return nil
}

// Rollback undoes every step of an interrupted migration.
func (e *Engine) Rollback(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if h, err := e.Pending(); err != nil {
		return err
	} else if h == nil {
		return ErrNoPending
	}

	return e.withManifest(func(m *manifest) error {
		h, _, err := m.pending()
		if err != nil {
			return err
		}
		steps, err := m.steps()
		if err != nil {
			return err
		}

		logger.Info("shard: rolling back migration of %s from %d to %d levels", e.root, h.From, h.To)
		// steps past the cursor may have run before a crash, so all of
		// them are undone
		for i := len(steps) - 1; i >= 0; i-- {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.apply(steps[i].reverse()); err != nil {
				return err
			}
		}
		if err := m.finish(); err != nil {
			return fmt.Errorf("manifest: %w", err)
		}
		e.levels.Store(int64(h.From))
		return nil
	})
}

func (e *Engine) run(ctx context.Context, m *manifest, steps []Step, cursor int) error {
	for i := cursor; i < len(steps); i++ {
		if err := ctx.Err(); err != nil {
			if cerr := m.checkpoint(i); cerr != nil {
				return fmt.Errorf("%w (checkpoint: %s)", err, cerr)
			}
			return err
		}
		if err := e.apply(steps[i]); err != nil {
			if cerr := m.checkpoint(i); cerr != nil {
				debug("checkpoint failed: %s", cerr)
			}
			return err
		}
		if (i+1)%checkpointEvery == 0 {
			if err := m.checkpoint(i + 1); err != nil {
				return fmt.Errorf("manifest: %w", err)
			}
		}
	}
	return m.checkpoint(len(steps))
}

// apply runs a step so that running it twice is harmless.
func (e *Engine) apply(s Step) error {
	to := filepath.Join(e.root, s.To)
	debug("%s", s)

	switch s.Op {
	case OpMkdir:
		if err := os.Mkdir(to, 0755); err != nil {
			if info, serr := os.Stat(to); serr != nil || !info.IsDir() {
				return &FilesystemError{Op: "mkdir", Path: to, Err: err}
			}
		}

	case OpRmdir:
		if err := os.Remove(to); err != nil && !os.IsNotExist(err) {
			return &FilesystemError{Op: "rmdir", Path: to, Err: err}
		}

	case OpMove:
		from := filepath.Join(e.root, s.From)
		_, ferr := os.Lstat(from)
		_, terr := os.Lstat(to)
		switch {
		case ferr == nil && terr == nil:
			return &FilesystemError{Op: "rename", Path: to, Err: os.ErrExist}
		case ferr == nil:
			if err := os.Rename(from, to); err != nil {
				return &FilesystemError{Op: "rename", Path: from, Err: err}
			}
		case os.IsNotExist(ferr) && terr == nil:
			// already moved
		default:
			return &FilesystemError{Op: "rename", Path: from, Err: ferr}
		}

	default:
		return fmt.Errorf("shard: unknown step %q", s.Op)
	}

	if e.observer != nil {
		e.observer(s)
	}
	return nil
}

// MigrateToLevels brings the tree at root to the given depth.
func MigrateToLevels(ctx context.Context, root string, target int) error {
	e, err := New(root)
	if err != nil {
		return err
	}
	return e.Migrate(ctx, target)
}
