package scoring

import (
	"context"
	"errors"
	"time"

	"github.com/soundprediction/ontoscore/pkg/types"
	"github.com/soundprediction/ontoscore/pkg/utils"
)

// CalculateBatch scores many companies under a bounded worker pool. Every
// company gets an outcome: one failure never aborts its siblings and the
// caller can always attribute an error to its company.
func (e *Engine) CalculateBatch(ctx context.Context, companyIDs []string, concurrency int, opts ...ScoreOption) *types.BatchScoreResults {
	start := e.now()

	pool := utils.NewWorkerPool(concurrency, func(ctx context.Context, companyID string) (*types.RiskScoreResult, error) {
		return e.CalculateRiskScore(ctx, companyID, opts...)
	})
	results, errs := pool.ProcessItems(ctx, companyIDs)

	batch := &types.BatchScoreResults{
		Outcomes: make([]types.CompanyOutcome, len(companyIDs)),
	}
	for i, companyID := range companyIDs {
		outcome := types.CompanyOutcome{CompanyID: companyID}
		if errs[i] == nil && results[i] == nil {
			// Left unprocessed by a cancelled context.
			if errs[i] = ctx.Err(); errs[i] == nil {
				errs[i] = errors.New("not processed")
			}
		}
		if errs[i] != nil {
			outcome.Err = errs[i].Error()
			batch.FailureCount++
		} else {
			outcome.Result = results[i]
			batch.SuccessCount++
		}
		batch.Outcomes[i] = outcome
	}
	batch.Elapsed = e.now().Sub(start)

	e.logger.Info("batch scoring finished",
		"companies", len(companyIDs),
		"succeeded", batch.SuccessCount,
		"failed", batch.FailureCount,
		"elapsed", batch.Elapsed)
	return batch
}

// ScoreAllCompanies scores every company object valid at asOf.
func (e *Engine) ScoreAllCompanies(ctx context.Context, asOf time.Time, concurrency int, opts ...ScoreOption) (*types.BatchScoreResults, error) {
	if asOf.IsZero() {
		asOf = e.now()
	}
	companies, err := e.store.ScanObjects(ctx, types.ObjectTypeCompany, asOf)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(companies))
	for i, company := range companies {
		ids[i] = company.ID
	}
	return e.CalculateBatch(ctx, ids, concurrency, append(opts, AsOf(asOf))...), nil
}
