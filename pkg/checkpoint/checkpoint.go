// Package checkpoint persists the progress of long batch scoring runs
// so an interrupted run resumes from its remaining companies instead of
// rescoring the whole market.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/soundprediction/ontoscore/pkg/types"
)

// ErrInvalidRunID is returned when a run ID contains invalid characters
var ErrInvalidRunID = errors.New("invalid run ID: contains path traversal or invalid characters")

// RunCheckpoint represents the state of a partially scored batch run
type RunCheckpoint struct {
	// Run identification
	RunID string `json:"run_id"`

	// Scoring parameters, replayed verbatim on resume
	AsOf        time.Time `json:"as_of"`
	Persist     bool      `json:"persist"`
	Concurrency int       `json:"concurrency"`

	// Timestamp tracking
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	AttemptCount  int       `json:"attempt_count"`
	LastError     string    `json:"last_error,omitempty"`

	// Pending holds the companies not yet scored; Outcomes accumulates
	// the scored ones in submission order.
	Pending  []string               `json:"pending"`
	Outcomes []types.CompanyOutcome `json:"outcomes,omitempty"`
}

// NewRunCheckpoint creates a checkpoint for a fresh run with every
// company still pending.
func NewRunCheckpoint(runID string, companyIDs []string, asOf time.Time, persist bool, concurrency int) *RunCheckpoint {
	now := time.Now()
	pending := make([]string, len(companyIDs))
	copy(pending, companyIDs)
	return &RunCheckpoint{
		RunID:         runID,
		AsOf:          asOf,
		Persist:       persist,
		Concurrency:   concurrency,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Pending:       pending,
	}
}

// CanRetry determines if a checkpoint should be retried based on attempt count and age
func (c *RunCheckpoint) CanRetry(maxAttempts int, maxAge time.Duration) bool {
	if c.AttemptCount >= maxAttempts {
		return false
	}

	age := time.Since(c.CreatedAt)
	if age > maxAge {
		return false
	}

	return true
}

// Done reports whether every company has been scored.
func (c *RunCheckpoint) Done() bool {
	return len(c.Pending) == 0
}

// Results assembles the accumulated outcomes into batch results.
func (c *RunCheckpoint) Results() *types.BatchScoreResults {
	batch := &types.BatchScoreResults{
		Outcomes: make([]types.CompanyOutcome, len(c.Outcomes)),
	}
	copy(batch.Outcomes, c.Outcomes)
	for _, outcome := range batch.Outcomes {
		if outcome.Err != "" {
			batch.FailureCount++
		} else {
			batch.SuccessCount++
		}
	}
	batch.Elapsed = c.LastUpdatedAt.Sub(c.CreatedAt)
	return batch
}

// Manager manages run checkpoints
type Manager struct {
	checkpointDir string
}

// NewManager creates a new checkpoint manager.
// If checkpointDir is empty, uses os.TempDir()/ontoscore-checkpoints
func NewManager(checkpointDir string) (*Manager, error) {
	if checkpointDir == "" {
		checkpointDir = filepath.Join(os.TempDir(), "ontoscore-checkpoints")
	}

	// Create checkpoint directory if it doesn't exist
	if err := os.MkdirAll(checkpointDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	return &Manager{
		checkpointDir: checkpointDir,
	}, nil
}

// validateRunID checks that the run ID is safe for use in file paths.
// It rejects IDs containing path separators, path traversal sequences, or null bytes.
func validateRunID(runID string) error {
	if runID == "" {
		return ErrInvalidRunID
	}

	if strings.Contains(runID, "..") {
		return ErrInvalidRunID
	}

	if strings.ContainsAny(runID, `/\`) {
		return ErrInvalidRunID
	}

	// Null bytes can truncate paths on some systems
	if strings.ContainsRune(runID, '\x00') {
		return ErrInvalidRunID
	}

	return nil
}

// isPathWithinDirectory checks that the resolved path is within the expected directory.
func isPathWithinDirectory(path, directory string) bool {
	cleanPath := filepath.Clean(path)
	cleanDir := filepath.Clean(directory)

	if !strings.HasSuffix(cleanDir, string(filepath.Separator)) {
		cleanDir += string(filepath.Separator)
	}

	return strings.HasPrefix(cleanPath, cleanDir) || cleanPath == filepath.Clean(directory)
}

// Path returns the file path for a run's checkpoint.
// Returns an error if the run ID contains invalid characters or path traversal sequences.
func (m *Manager) Path(runID string) (string, error) {
	if err := validateRunID(runID); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("run_%s.json", runID)
	fullPath := filepath.Join(m.checkpointDir, filename)

	if !isPathWithinDirectory(fullPath, m.checkpointDir) {
		return "", ErrInvalidRunID
	}

	return fullPath, nil
}

// Save persists the checkpoint to disk
func (m *Manager) Save(ctx context.Context, checkpoint *RunCheckpoint) error {
	checkpoint.LastUpdatedAt = time.Now()

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	checkpointPath, err := m.Path(checkpoint.RunID)
	if err != nil {
		return fmt.Errorf("invalid run ID: %w", err)
	}

	// Write to a temporary file first, then rename for atomic write
	tmpPath := checkpointPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}

	if err := os.Rename(tmpPath, checkpointPath); err != nil {
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}

	return nil
}

// Load retrieves a checkpoint from disk. A missing checkpoint returns
// nil without error.
func (m *Manager) Load(ctx context.Context, runID string) (*RunCheckpoint, error) {
	checkpointPath, err := m.Path(runID)
	if err != nil {
		return nil, fmt.Errorf("invalid run ID: %w", err)
	}

	data, err := os.ReadFile(checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var checkpoint RunCheckpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	return &checkpoint, nil
}

// Delete removes a checkpoint from disk
func (m *Manager) Delete(ctx context.Context, runID string) error {
	checkpointPath, err := m.Path(runID)
	if err != nil {
		return fmt.Errorf("invalid run ID: %w", err)
	}

	if err := os.Remove(checkpointPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}

	return nil
}

// Exists checks if a checkpoint exists for a run
func (m *Manager) Exists(ctx context.Context, runID string) (bool, error) {
	checkpointPath, err := m.Path(runID)
	if err != nil {
		return false, fmt.Errorf("invalid run ID: %w", err)
	}

	_, err = os.Stat(checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check checkpoint existence: %w", err)
	}

	return true, nil
}

// List returns all checkpoints in the checkpoint directory
func (m *Manager) List(ctx context.Context) ([]*RunCheckpoint, error) {
	entries, err := os.ReadDir(m.checkpointDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var checkpoints []*RunCheckpoint
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		// Only process .json files, skip .tmp files
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.checkpointDir, entry.Name()))
		if err != nil {
			continue
		}

		var checkpoint RunCheckpoint
		if err := json.Unmarshal(data, &checkpoint); err != nil {
			continue
		}

		checkpoints = append(checkpoints, &checkpoint)
	}

	return checkpoints, nil
}

// Dir returns the checkpoint directory path
func (m *Manager) Dir() string {
	return m.checkpointDir
}

// CleanOld removes checkpoints older than the specified duration
func (m *Manager) CleanOld(ctx context.Context, maxAge time.Duration) (int, error) {
	checkpoints, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, checkpoint := range checkpoints {
		if checkpoint.LastUpdatedAt.Before(cutoff) {
			if err := m.Delete(ctx, checkpoint.RunID); err != nil {
				continue
			}
			removed++
		}
	}

	return removed, nil
}
