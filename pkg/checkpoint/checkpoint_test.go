package checkpoint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoscore/pkg/types"
)

func TestManager(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "ontoscore-checkpoint-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	ctx := context.Background()

	t.Run("Create manager with custom directory", func(t *testing.T) {
		manager, err := NewManager(tmpDir)
		require.NoError(t, err)
		assert.Equal(t, tmpDir, manager.Dir())
	})

	t.Run("Create manager with default directory", func(t *testing.T) {
		manager, err := NewManager("")
		require.NoError(t, err)
		expectedDir := filepath.Join(os.TempDir(), "ontoscore-checkpoints")
		assert.Equal(t, expectedDir, manager.Dir())
	})

	t.Run("Save and load checkpoint", func(t *testing.T) {
		manager, err := NewManager(tmpDir)
		require.NoError(t, err)

		asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		cp := NewRunCheckpoint("run-123", []string{"co-1", "co-2", "co-3"}, asOf, true, 4)
		cp.Outcomes = append(cp.Outcomes, types.CompanyOutcome{CompanyID: "co-0", Err: "not found"})

		require.NoError(t, manager.Save(ctx, cp))

		loaded, err := manager.Load(ctx, "run-123")
		require.NoError(t, err)
		require.NotNil(t, loaded)

		assert.Equal(t, cp.RunID, loaded.RunID)
		assert.True(t, loaded.AsOf.Equal(asOf))
		assert.True(t, loaded.Persist)
		assert.Equal(t, 4, loaded.Concurrency)
		assert.Equal(t, []string{"co-1", "co-2", "co-3"}, loaded.Pending)
		require.Len(t, loaded.Outcomes, 1)
		assert.Equal(t, "not found", loaded.Outcomes[0].Err)
	})

	t.Run("Load missing checkpoint returns nil", func(t *testing.T) {
		manager, err := NewManager(tmpDir)
		require.NoError(t, err)

		loaded, err := manager.Load(ctx, "never-saved")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("Exists and Delete", func(t *testing.T) {
		manager, err := NewManager(tmpDir)
		require.NoError(t, err)

		cp := NewRunCheckpoint("run-del", []string{"co-1"}, time.Time{}, false, 1)
		require.NoError(t, manager.Save(ctx, cp))

		exists, err := manager.Exists(ctx, "run-del")
		require.NoError(t, err)
		assert.True(t, exists)

		require.NoError(t, manager.Delete(ctx, "run-del"))

		exists, err = manager.Exists(ctx, "run-del")
		require.NoError(t, err)
		assert.False(t, exists)

		// Deleting again is not an error
		require.NoError(t, manager.Delete(ctx, "run-del"))
	})

	t.Run("List skips temp and malformed files", func(t *testing.T) {
		listDir := filepath.Join(tmpDir, "list")
		manager, err := NewManager(listDir)
		require.NoError(t, err)

		require.NoError(t, manager.Save(ctx, NewRunCheckpoint("run-a", []string{"co-1"}, time.Time{}, false, 1)))
		require.NoError(t, manager.Save(ctx, NewRunCheckpoint("run-b", []string{"co-2"}, time.Time{}, false, 1)))
		require.NoError(t, os.WriteFile(filepath.Join(listDir, "run_partial.json.tmp"), []byte("{"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(listDir, "run_broken.json"), []byte("not json"), 0644))

		checkpoints, err := manager.List(ctx)
		require.NoError(t, err)
		assert.Len(t, checkpoints, 2)
	})

	t.Run("Rejects unsafe run IDs", func(t *testing.T) {
		manager, err := NewManager(tmpDir)
		require.NoError(t, err)

		for _, runID := range []string{"", "..", "../etc", "a/b", `a\b`, "run\x00id"} {
			_, err := manager.Path(runID)
			assert.ErrorIs(t, err, ErrInvalidRunID, "run ID %q", runID)
		}
	})

	t.Run("CleanOld removes only stale checkpoints", func(t *testing.T) {
		cleanDir := filepath.Join(tmpDir, "clean")
		manager, err := NewManager(cleanDir)
		require.NoError(t, err)

		require.NoError(t, manager.Save(ctx, NewRunCheckpoint("run-fresh", []string{"co-1"}, time.Time{}, false, 1)))

		// Write a stale checkpoint directly so Save cannot refresh its timestamp.
		stale := NewRunCheckpoint("run-stale", []string{"co-2"}, time.Time{}, false, 1)
		stale.LastUpdatedAt = time.Now().Add(-48 * time.Hour)
		data, err := json.Marshal(stale)
		require.NoError(t, err)
		path, err := manager.Path("run-stale")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0644))

		removed, err := manager.CleanOld(ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		exists, err := manager.Exists(ctx, "run-fresh")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestRunCheckpointCanRetry(t *testing.T) {
	cp := NewRunCheckpoint("run-1", []string{"co-1"}, time.Time{}, false, 1)

	assert.True(t, cp.CanRetry(3, time.Hour))

	cp.AttemptCount = 3
	assert.False(t, cp.CanRetry(3, time.Hour))

	cp.AttemptCount = 1
	cp.CreatedAt = time.Now().Add(-2 * time.Hour)
	assert.False(t, cp.CanRetry(3, time.Hour))
}

func TestRunCheckpointResults(t *testing.T) {
	cp := NewRunCheckpoint("run-1", nil, time.Time{}, false, 1)
	cp.Outcomes = []types.CompanyOutcome{
		{CompanyID: "co-1", Result: &types.RiskScoreResult{CompanyID: "co-1"}},
		{CompanyID: "co-2", Err: "object not found"},
		{CompanyID: "co-3", Result: &types.RiskScoreResult{CompanyID: "co-3"}},
	}

	results := cp.Results()
	assert.Equal(t, 2, results.SuccessCount)
	assert.Equal(t, 1, results.FailureCount)
	require.Len(t, results.Outcomes, 3)
	assert.Equal(t, "co-2", results.Outcomes[1].CompanyID)
	assert.True(t, cp.Done() == (len(cp.Pending) == 0))
}
