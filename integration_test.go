//go:build integration
// +build integration

package ontoscore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoscore"
	"github.com/soundprediction/ontoscore/pkg/driver"
	"github.com/soundprediction/ontoscore/pkg/ingest"
	"github.com/soundprediction/ontoscore/pkg/ontology"
	"github.com/soundprediction/ontoscore/pkg/scoring"
	"github.com/soundprediction/ontoscore/pkg/types"
)

// Run with: go test -tags=integration

// TestIngestScorePersistRoundtrip exercises the full pipeline over the
// badger driver: ingest an extraction batch, score the company with
// persistence, and read back the snapshot and risk signal it wrote.
func TestIngestScorePersistRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dbPath := t.TempDir()
	d, err := driver.NewBadgerDriver(dbPath)
	require.NoError(t, err)

	client, err := ontoscore.NewClient(d, nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	batch := &ingest.Batch{
		Objects: []ingest.ObjectRecord{
			{Type: types.ObjectTypeCompany, IdentityKey: "company:acme", Properties: types.Properties{"name": types.String("Acme Corp")}, Confidence: 0.9},
			{Type: types.ObjectTypeFund, IdentityKey: "fund:alpha", Properties: types.Properties{"name": types.String("Alpha Fund")}, Confidence: 0.9},
			{Type: types.ObjectTypeOfficer, IdentityKey: "officer:h-lee", Properties: types.Properties{"name": types.String("H. Lee")}, Confidence: 0.9},
		},
		Links: []ingest.LinkRecord{
			{Type: types.LinkOwnsCBIn, SourceKey: "fund:alpha", TargetKey: "company:acme", Strength: 0.6, Confidence: 0.9},
			{Type: types.LinkRelatedPartyTx, SourceKey: "fund:alpha", TargetKey: "company:acme", Strength: 0.5, Confidence: 0.9},
			{Type: types.LinkOfficerOf, SourceKey: "officer:h-lee", TargetKey: "company:acme", Strength: 0.9, Confidence: 0.9},
		},
	}

	report, err := client.ApplyBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, report.ObjectsApplied)
	assert.Equal(t, 3, report.LinksApplied)
	assert.Empty(t, report.Errors)

	company, err := client.GetObjectByIdentity(ctx, "company:acme", time.Now())
	require.NoError(t, err)

	asOf := time.Now().Add(time.Second)
	result, err := client.CalculateRiskScore(ctx, company.ID, scoring.AsOf(asOf), scoring.Persist())
	require.NoError(t, err)
	assert.Greater(t, result.TotalScore, 0.0)

	// The co-located convertible bond and related-party links form an
	// amplification pair.
	detected, err := client.DetectPatterns(ctx, company.ID, asOf)
	require.NoError(t, err)
	require.NotEmpty(t, detected.Matches)
	assert.Equal(t, "cb_related_party_pair", detected.Matches[0].PatternID)

	snapshot, err := client.GetObjectByIdentity(ctx, "risk_score:company:acme", time.Now().Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, types.ObjectTypeRiskScore, snapshot.Type)

	// A second client over the same path sees the persisted graph.
	require.NoError(t, client.Close(ctx))
	d2, err := driver.NewBadgerDriver(dbPath)
	require.NoError(t, err)
	client2, err := ontoscore.NewClient(d2, nil, nil)
	require.NoError(t, err)
	defer client2.Close(ctx)

	links, err := client2.GetLinks(ctx, company.ID, ontology.LinkQuery{AsOf: asOf})
	require.NoError(t, err)
	assert.Len(t, links, 3)
}
