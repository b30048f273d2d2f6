package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoscore/pkg/types"
)

func TestCalculateBatchIsolatesFailures(t *testing.T) {
	f := newScoreFixture(t)
	good := f.object("company:good", types.ObjectTypeCompany, 1.0)
	other := f.object("company:other", types.ObjectTypeCompany, 1.0)
	fund := f.object("fund:alpha", types.ObjectTypeFund, 0.9)

	ids := []string{good, "ghost", fund, other}
	batch := f.engine.CalculateBatch(context.Background(), ids, 2)

	require.Len(t, batch.Outcomes, 4)
	assert.Equal(t, 2, batch.SuccessCount)
	assert.Equal(t, 2, batch.FailureCount)

	for i, id := range ids {
		assert.Equal(t, id, batch.Outcomes[i].CompanyID, "outcomes stay index-aligned")
	}
	assert.NotNil(t, batch.Outcomes[0].Result)
	assert.NotEmpty(t, batch.Outcomes[1].Err, "missing company attributed")
	assert.NotEmpty(t, batch.Outcomes[2].Err, "non-company target attributed")
	assert.NotNil(t, batch.Outcomes[3].Result)
}

func TestCalculateBatchCancelledContext(t *testing.T) {
	f := newScoreFixture(t)
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = f.object("company:"+string(rune('a'+i)), types.ObjectTypeCompany, 1.0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := f.engine.CalculateBatch(ctx, ids, 2)
	require.Len(t, batch.Outcomes, 10)
	assert.Equal(t, 10, batch.SuccessCount+batch.FailureCount)
	// Every unprocessed slot carries an attributable error, never a nil
	// result counted as success.
	for i, outcome := range batch.Outcomes {
		if outcome.Err == "" {
			assert.NotNil(t, batch.Outcomes[i].Result)
		}
	}
	assert.Greater(t, batch.FailureCount, 0)
}

func TestScoreAllCompanies(t *testing.T) {
	f := newScoreFixture(t)
	f.object("company:a", types.ObjectTypeCompany, 1.0)
	f.object("company:b", types.ObjectTypeCompany, 1.0)
	f.object("fund:ignored", types.ObjectTypeFund, 0.9)

	batch, err := f.engine.ScoreAllCompanies(context.Background(), time.Time{}, 4)
	require.NoError(t, err)
	assert.Len(t, batch.Outcomes, 2, "funds are not scored")
	assert.Equal(t, 2, batch.SuccessCount)
	assert.Zero(t, batch.FailureCount)
}

func TestScoreAllCompaniesRespectsAsOf(t *testing.T) {
	f := newScoreFixture(t)
	before := f.now
	f.advance(time.Hour)
	f.object("company:late", types.ObjectTypeCompany, 1.0)

	batch, err := f.engine.ScoreAllCompanies(context.Background(), before, 4)
	require.NoError(t, err)
	assert.Empty(t, batch.Outcomes, "company did not exist yet")
}
