package shard

import (
	"context"
	"fmt"
	"path/filepath"
)

// Op is a single filesystem operation of a migration.
type Op string

const (
	OpMkdir Op = "mkdir"
	OpMove  Op = "move"
	OpRmdir Op = "rmdir"
)

// Step is one idempotent operation, paths are relative to the root.
type Step struct {
	Op   Op     `json:"op"`
	From string `json:"from,omitempty"`
	To   string `json:"to"`
}

func (s Step) String() string {
	if s.Op == OpMove {
		return fmt.Sprintf("%s %s -> %s", s.Op, s.From, s.To)
	}
	return fmt.Sprintf("%s %s", s.Op, s.To)
}

// reverse undoes the step.
func (s Step) reverse() Step {
	switch s.Op {
	case OpMkdir:
		return Step{Op: OpRmdir, To: s.To}
	case OpRmdir:
		return Step{Op: OpMkdir, To: s.To}
	}
	return Step{Op: OpMove, From: s.To, To: s.From}
}

// leaves returns the directories found at the given depth, relative to root.
func leaves(ctx context.Context, root string, depth int) ([]string, error) {
	dirs := []string{"."}
	for i := 0; i < depth; i++ {
		next := make([]string, 0, len(dirs)*Alphabet)
		for _, d := range dirs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			l, err := list(filepath.Join(root, d))
			if err != nil {
				return nil, err
			}
			if len(l.shards) != Alphabet {
				return nil, &InconsistentTreeError{
					Path:   filepath.Join(root, d),
					Reason: fmt.Sprintf("%d shard directories at depth %d", len(l.shards), i),
				}
			}
			for _, s := range l.shards {
				next = append(next, filepath.Join(d, s))
			}
		}
		dirs = next
	}
	return dirs, nil
}

// planAdd splits every leaf of a tree of depth levels into 26 directories
// and moves each file to the one named by its hash letter at that depth.
func planAdd(ctx context.Context, root string, levels int) ([]Step, error) {
	if levels >= MaxLevels {
		return nil, ErrLevels
	}

	dirs, err := leaves(ctx, root, levels)
	if err != nil {
		return nil, err
	}

	var steps []Step
	for _, d := range dirs {
		l, err := list(filepath.Join(root, d))
		if err != nil {
			return nil, err
		}
		if len(l.shards) > 0 {
			return nil, &InconsistentTreeError{
				Path:   filepath.Join(root, d),
				Reason: "a leaf already holds shard directories",
			}
		}
		for _, f := range l.files {
			if isShardName(f) {
				return nil, &InconsistentTreeError{
					Path:   filepath.Join(root, d, f),
					Reason: "a file is named like a shard directory",
				}
			}
		}
		for _, letter := range letters() {
			steps = append(steps, Step{Op: OpMkdir, To: filepath.Join(d, letter)})
		}
		for _, f := range l.files {
			letter := Hash(f, levels+1).Letter(levels)
			steps = append(steps, Step{
				Op:   OpMove,
				From: filepath.Join(d, f),
				To:   filepath.Join(d, letter, f),
			})
		}
	}
	return steps, nil
}

// planRemove collapses the deepest level: the files of the 26 leaves go up
// to their parent, then the emptied leaves are removed. Name clashes are
// reported here, before anything moves.
func planRemove(ctx context.Context, root string, levels int) ([]Step, error) {
	if levels <= 0 {
		return nil, ErrLevels
	}

	parents, err := leaves(ctx, root, levels-1)
	if err != nil {
		return nil, err
	}

	var steps []Step
	for _, p := range parents {
		pl, err := list(filepath.Join(root, p))
		if err != nil {
			return nil, err
		}
		seen := make(map[string]string)
		for _, f := range pl.hidden {
			seen[f] = p
		}

		var rmdirs []Step
		for _, letter := range letters() {
			d := filepath.Join(p, letter)
			l, err := list(filepath.Join(root, d))
			if err != nil {
				return nil, err
			}
			if len(l.shards) > 0 || len(l.others) > 0 {
				return nil, &InconsistentTreeError{
					Path:   filepath.Join(root, d),
					Reason: "cannot be emptied, it holds more than files",
				}
			}
			for _, f := range append(l.files, l.hidden...) {
				if isShardName(f) {
					return nil, &InconsistentTreeError{
						Path:   filepath.Join(root, d, f),
						Reason: "a file is named like a shard directory",
					}
				}
				if other, ok := seen[f]; ok {
					return nil, &InconsistentTreeError{
						Path:   filepath.Join(root, d, f),
						Reason: fmt.Sprintf("same name as %s", filepath.Join(root, other)),
					}
				}
				seen[f] = d
				steps = append(steps, Step{
					Op:   OpMove,
					From: filepath.Join(d, f),
					To:   filepath.Join(p, f),
				})
			}
			rmdirs = append(rmdirs, Step{Op: OpRmdir, To: d})
		}
		steps = append(steps, rmdirs...)
	}
	return steps, nil
}
