package source

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/greut/sipi/shard"
)

// DiskSource reads from a shard tree.
type DiskSource struct {
	engine *shard.Engine
}

func NewDiskSource(engine *shard.Engine) *DiskSource {
	return &DiskSource{engine: engine}
}

// Read finds identifier where the hash of its name places it. Identifiers
// with a directory part are never on disk.
func (ds *DiskSource) Read(ctx context.Context, identifier string) ([]byte, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, err
	}
	if identifier == "" || strings.ContainsAny(identifier, "/\\") || strings.HasPrefix(identifier, ".") {
		return nil, time.Time{}, ErrNotFound
	}

	path := ds.engine.Path(identifier)
	stat, err := os.Stat(path)
	if os.IsNotExist(err) || (err == nil && stat.IsDir()) {
		debug("%s is not in %s", identifier, path)
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	return body, stat.ModTime(), nil
}
