package shard

import (
	"fmt"
	"os"
	"path/filepath"
)

// CheckLevels scans root and returns the uniform depth of the tree. Every
// directory must hold either no shard directory or all 26 of them, siblings
// must have the same depth and files never sit next to shard directories.
// Hidden entries and directories not named by a single letter are ignored.
// Removing a level moves hidden files up with the others, a hidden or
// foreign directory inside a leaf blocks it.
func CheckLevels(root string) (int, error) {
	return checkDir(root)
}

type listing struct {
	shards []string
	files  []string
	// hidden holds the dot files, hidden directories go to others.
	hidden []string
	others []string
}

func list(dir string) (*listing, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &FilesystemError{Op: "readdir", Path: dir, Err: err}
	}

	l := &listing{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case isHidden(name) && !e.IsDir():
			l.hidden = append(l.hidden, name)
		case isHidden(name):
			l.others = append(l.others, name)
		case e.IsDir() && isShardName(name):
			l.shards = append(l.shards, name)
		case e.IsDir():
			l.others = append(l.others, name)
		default:
			l.files = append(l.files, name)
		}
	}
	return l, nil
}

func checkDir(dir string) (int, error) {
	l, err := list(dir)
	if err != nil {
		return 0, err
	}

	switch len(l.shards) {
	case 0:
		return 0, nil
	case Alphabet:
	default:
		return 0, &InconsistentTreeError{
			Path:   dir,
			Reason: fmt.Sprintf("%d shard directories, expected 0 or %d", len(l.shards), Alphabet),
		}
	}

	if len(l.files) > 0 {
		return 0, &InconsistentTreeError{
			Path:   dir,
			Reason: fmt.Sprintf("%d files next to the shard directories", len(l.files)),
		}
	}

	depth := -1
	for _, s := range l.shards {
		d, err := checkDir(filepath.Join(dir, s))
		if err != nil {
			return 0, err
		}
		if depth >= 0 && d != depth {
			return 0, &InconsistentTreeError{
				Path:   dir,
				Reason: fmt.Sprintf("subtree %s has depth %d, its siblings %d", s, d, depth),
			}
		}
		depth = d
	}
	return depth + 1, nil
}
