package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	d "github.com/tj/go-debug"

	"github.com/greut/sipi/auth"
	"github.com/greut/sipi/shard"
)

func run(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestShardHash(t *testing.T) {
	out := run(t, NewShardCommand(), "hash", "--levels", "2", "ab")

	fields := strings.Fields(out)
	require.Len(t, fields, 2)
	assert.Equal(t, string(shard.Hash("ab", shard.MaxLevels)), fields[0])
	assert.Equal(t, filepath.Join("X", "U", "ab"), fields[1])
}

func TestShardMigrateAndCheck(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.jpg", "b.jpg", "c.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(name), 0o644))
	}

	run(t, NewShardCommand(), "migrate", "--levels", "1", root)

	var status struct {
		Levels  int           `json:"levels"`
		Pending *shard.Header `json:"pending"`
	}
	out := run(t, NewShardCommand(), "check", root)
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, 1, status.Levels)
	assert.Nil(t, status.Pending)

	_, err := os.Stat(shard.Path(root, "c.png", 1))
	assert.NoError(t, err)
}

func TestShardAdd(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "new.png")
	require.NoError(t, os.WriteFile(src, []byte("png"), 0o644))

	out := run(t, NewShardCommand(), "add", "--root", root, src)

	path := strings.Fields(out)[0]
	assert.Equal(t, shard.Path(root, "new.png", 0), path)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestToken(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	file := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(file, []byte("[admin]\nsecret = \""+secret+"\"\n"), 0o644))

	configFile = file
	defer func() { configFile = "" }()

	out := run(t, NewTokenCommand(), "--subject", "ops")

	claims, err := auth.Verify([]byte(secret), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
}

func TestDebugNamespaces(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.jpg"), []byte("a"), 0o644))

	file := filepath.Join(t.TempDir(), "config.toml")
	conf := "debug = \"sipi\"\n[images]\nroot = \"" + root + "\"\n"
	require.NoError(t, os.WriteFile(file, []byte(conf), 0o644))

	var buf bytes.Buffer
	d.SetWriter(&buf)
	configFile = file
	defer func() {
		configFile = ""
		d.Disable()
		d.SetWriter(os.Stderr)
	}()

	run(t, NewShardCommand(), "migrate", "--levels", "1")

	assert.Contains(t, buf.String(), "mkdir")
	assert.Contains(t, buf.String(), "a.jpg")
}
