package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/atlaspack/internal/catalog"
	"github.com/jmgilman/atlaspack/internal/logging"
)

func TestRunFinished(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewStore(filepath.Join(t.TempDir(), "catalog.json"))
	entry := catalog.Entry{ID: "brave_hopper", Status: catalog.StatusRunning, StartedAt: time.Now()}
	require.NoError(t, store.Add(ctx, entry))

	done := runFinished(store, entry.ID)

	finished, err := done(ctx)
	require.NoError(t, err)
	assert.False(t, finished, "running entry")

	entry.Finish(catalog.StatusFailed, 2, nil, time.Now())
	require.NoError(t, store.Update(ctx, entry))

	finished, err = done(ctx)
	require.NoError(t, err)
	assert.True(t, finished, "failed entry")

	finished, err = runFinished(store, "unknown_run")(ctx)
	require.NoError(t, err)
	assert.True(t, finished, "uncatalogued run")
}

func TestOutputLogs(t *testing.T) {
	ctx := context.Background()
	pathMgr := logging.NewPathManager(t.TempDir())
	path, err := pathMgr.EnsureRunLog("brave_hopper")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("l1\nl2\nl3\n"), 0o644))
	reader := logging.NewReader(pathMgr)

	t.Run("tail", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, outputLogs(ctx, &out, reader, "brave_hopper", 2, false, nil))
		assert.Equal(t, "l2\nl3\n", out.String())
	})

	t.Run("full", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, outputLogs(ctx, &out, reader, "brave_hopper", 1, true, nil))
		assert.Equal(t, "l1\nl2\nl3\n", out.String())
	})

	t.Run("follow stops once the run is no longer running", func(t *testing.T) {
		store := catalog.NewStore(filepath.Join(t.TempDir(), "catalog.json"))
		entry := catalog.Entry{ID: "brave_hopper", Status: catalog.StatusRunning, StartedAt: time.Now()}
		entry.Finish(catalog.StatusSucceeded, 0, nil, time.Now())
		require.NoError(t, store.Add(ctx, entry))

		var out bytes.Buffer
		err := outputLogs(ctx, &out, reader, "brave_hopper", 1, false, runFinished(store, entry.ID))

		require.NoError(t, err)
		assert.Equal(t, "l3\n", out.String())
	})
}
