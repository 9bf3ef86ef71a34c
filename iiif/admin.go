package iiif

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/greut/sipi/auth"
	"github.com/greut/sipi/shard"
)

// shardStatus is the body of every /admin/shard response.
type shardStatus struct {
	Root    string        `json:"root"`
	Levels  int           `json:"levels"`
	Pending *shard.Header `json:"pending"`
}

// requireAdmin hides the admin endpoints when no secret is configured and
// asks for a bearer token otherwise.
func requireAdmin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		secret := configFrom(ctx).Admin.Secret
		if secret == "" || engineFrom(ctx) == nil {
			http.NotFound(w, r)
			return
		}
		auth.Require([]byte(secret), h)(w, r)
	}
}

func writeStatus(w http.ResponseWriter, engine *shard.Engine, status int) {
	pending, err := engine.Pending()
	if err != nil {
		writeError(w, err)
		return
	}

	buf, err := json.MarshalIndent(shardStatus{
		Root:    engine.Root(),
		Levels:  engine.Levels(),
		Pending: pending,
	}, "", "  ")
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// ShardStatusHandler reports the depth of the tree and any pending migration.
func ShardStatusHandler(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, engineFrom(r.Context()), http.StatusOK)
}

// ShardMigrateHandler changes the depth of the tree to ?levels=n.
func ShardMigrateHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	engine := engineFrom(ctx)

	levels, err := strconv.Atoi(r.URL.Query().Get("levels"))
	if err != nil {
		http.Error(w, "levels must be an integer", http.StatusBadRequest)
		return
	}

	if err := engine.Migrate(ctx, levels); err != nil {
		writeError(w, err)
		return
	}
	metricsFrom(ctx).SetShardLevels(engine.Levels())

	writeStatus(w, engine, http.StatusOK)
}

// ShardResumeHandler finishes an interrupted migration.
func ShardResumeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	engine := engineFrom(ctx)

	if err := engine.Resume(ctx); err != nil {
		writeError(w, err)
		return
	}
	metricsFrom(ctx).SetShardLevels(engine.Levels())

	writeStatus(w, engine, http.StatusOK)
}

// ShardRollbackHandler undoes an interrupted migration.
func ShardRollbackHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	engine := engineFrom(ctx)

	if err := engine.Rollback(ctx); err != nil {
		writeError(w, err)
		return
	}
	metricsFrom(ctx).SetShardLevels(engine.Levels())

	writeStatus(w, engine, http.StatusOK)
}
