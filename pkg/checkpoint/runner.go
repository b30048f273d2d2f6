package checkpoint

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundprediction/ontoscore/pkg/scoring"
	"github.com/soundprediction/ontoscore/pkg/types"
)

const defaultChunkSize = 25

// BatchScorer is the slice of the scoring engine the runner needs.
type BatchScorer interface {
	CalculateBatch(ctx context.Context, companyIDs []string, concurrency int, opts ...scoring.ScoreOption) *types.BatchScoreResults
}

// Runner drives a batch run in checkpointed chunks. After every chunk
// the remaining companies are persisted, so a crashed or cancelled run
// resumes where it stopped.
type Runner struct {
	manager   *Manager
	scorer    BatchScorer
	chunkSize int
	logger    *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithChunkSize sets how many companies are scored between saves.
func WithChunkSize(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a checkpointed batch runner.
func NewRunner(manager *Manager, scorer BatchScorer, opts ...RunnerOption) *Runner {
	r := &Runner{
		manager:   manager,
		scorer:    scorer,
		chunkSize: defaultChunkSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run scores companyIDs under the named run. When a checkpoint for the
// run already exists its saved parameters and pending set win and
// companyIDs is ignored. The checkpoint is deleted once every company
// has an outcome.
func (r *Runner) Run(ctx context.Context, runID string, companyIDs []string, asOf time.Time, persist bool, concurrency int) (*types.BatchScoreResults, error) {
	cp, err := r.manager.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		cp = NewRunCheckpoint(runID, companyIDs, asOf, persist, concurrency)
	} else {
		r.logger.Info("resuming batch run",
			"run_id", runID,
			"pending", len(cp.Pending),
			"scored", len(cp.Outcomes),
			"attempt", cp.AttemptCount+1)
	}
	cp.AttemptCount++
	if err := r.manager.Save(ctx, cp); err != nil {
		return nil, err
	}

	opts := []scoring.ScoreOption{}
	if !cp.AsOf.IsZero() {
		opts = append(opts, scoring.AsOf(cp.AsOf))
	}
	if cp.Persist {
		opts = append(opts, scoring.Persist())
	}

	for !cp.Done() {
		if err := ctx.Err(); err != nil {
			cp.LastError = err.Error()
			if saveErr := r.manager.Save(ctx, cp); saveErr != nil {
				r.logger.Warn("checkpoint save failed on cancellation", "run_id", runID, "error", saveErr)
			}
			return nil, err
		}

		chunk := cp.Pending
		if len(chunk) > r.chunkSize {
			chunk = chunk[:r.chunkSize]
		}

		batch := r.scorer.CalculateBatch(ctx, chunk, cp.Concurrency, opts...)
		rest := cp.Pending[len(chunk):]

		if err := ctx.Err(); err != nil {
			// Keep companies the cancelled chunk never scored pending
			// so a resume retries them instead of recording failures.
			var retry []string
			for _, outcome := range batch.Outcomes {
				if outcome.Result == nil && outcome.Err == err.Error() {
					retry = append(retry, outcome.CompanyID)
					continue
				}
				cp.Outcomes = append(cp.Outcomes, outcome)
			}
			cp.Pending = append(retry, rest...)
			cp.LastError = err.Error()
			if saveErr := r.manager.Save(ctx, cp); saveErr != nil {
				r.logger.Warn("checkpoint save failed on cancellation", "run_id", runID, "error", saveErr)
			}
			return nil, err
		}

		cp.Outcomes = append(cp.Outcomes, batch.Outcomes...)
		cp.Pending = rest
		cp.LastError = ""
		if err := r.manager.Save(ctx, cp); err != nil {
			return nil, err
		}
	}

	results := cp.Results()
	if err := r.manager.Delete(ctx, runID); err != nil {
		r.logger.Warn("checkpoint delete failed", "run_id", runID, "error", err)
	}
	r.logger.Info("batch run complete",
		"run_id", runID,
		"succeeded", results.SuccessCount,
		"failed", results.FailureCount)
	return results, nil
}
