package ontoscore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoscore"
	"github.com/soundprediction/ontoscore/pkg/driver"
	"github.com/soundprediction/ontoscore/pkg/ontology"
	"github.com/soundprediction/ontoscore/pkg/scoring"
	"github.com/soundprediction/ontoscore/pkg/taxonomy"
	"github.com/soundprediction/ontoscore/pkg/types"
)

func newTestClient(t *testing.T, cfg *ontoscore.Config) *ontoscore.Client {
	t.Helper()
	client, err := ontoscore.NewClient(driver.NewMemoryDriver(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close(context.Background()) })
	return client
}

func TestNewClientDefaults(t *testing.T) {
	client := newTestClient(t, nil)
	assert.NotNil(t, client.Store())
	assert.NoError(t, client.CreateIndices(context.Background()))
}

func TestNewClientRejectsInvalidScoringConfig(t *testing.T) {
	cfg := &ontoscore.Config{Scoring: &scoring.Config{
		Weights: map[types.ComponentName]float64{types.ComponentInformationAsymmetry: 1.0},
	}}
	_, err := ontoscore.NewClient(driver.NewMemoryDriver(), cfg, nil)
	require.Error(t, err)
}

func TestClientClassification(t *testing.T) {
	client := newTestClient(t, nil)

	category, weight, err := client.Classify(types.LinkType("owns_cb_in"))
	require.NoError(t, err)
	assert.Equal(t, taxonomy.CategoryFund, category)
	assert.InDelta(t, 0.50, weight, 1e-9)

	_, _, err = client.Classify(types.LinkType("borrows_lawnmower_from"))
	require.Error(t, err)
}

func TestClientGraphAndScoreFlow(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	companyID, err := client.UpsertObject(ctx, ontology.UpsertRequest{
		Type:        types.ObjectTypeCompany,
		IdentityKey: "company:acme",
		Properties:  types.Properties{"name": types.String("Acme Corp")},
		Confidence:  1.0,
	})
	require.NoError(t, err)

	fundID, err := client.UpsertObject(ctx, ontology.UpsertRequest{
		Type:        types.ObjectTypeFund,
		IdentityKey: "fund:alpha",
		Properties:  types.Properties{"name": types.String("Alpha Fund")},
		Confidence:  1.0,
	})
	require.NoError(t, err)

	link, err := client.CreateLink(ctx, ontology.CreateLinkRequest{
		Type:       types.LinkType("owns_cb_in"),
		SourceID:   fundID,
		TargetID:   companyID,
		Strength:   0.6,
		Confidence: 0.9,
	})
	require.NoError(t, err)
	assert.Greater(t, client.LinkRisk(link), 0.0)

	asOf := time.Now().Add(time.Second)

	links, err := client.GetLinks(ctx, companyID, ontology.LinkQuery{AsOf: asOf})
	require.NoError(t, err)
	require.Len(t, links, 1)

	view, err := client.Neighborhood(ctx, companyID, 2, asOf)
	require.NoError(t, err)
	assert.Len(t, view.Nodes, 2)
	assert.Len(t, view.Edges, 1)

	detected, err := client.DetectPatterns(ctx, companyID, asOf)
	require.NoError(t, err)
	assert.Empty(t, detected.Matches)

	result, err := client.CalculateRiskScore(ctx, companyID, scoring.AsOf(asOf))
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", result.CompanyName)
	assert.Greater(t, result.TotalScore, 0.0)
	assert.Len(t, result.Components, 5)

	require.NoError(t, client.CloseLink(ctx, link.ID, asOf))
	links, err = client.GetLinks(ctx, companyID, ontology.LinkQuery{AsOf: asOf.Add(time.Minute)})
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestClientBatchScoring(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	id, err := client.UpsertObject(ctx, ontology.UpsertRequest{
		Type:        types.ObjectTypeCompany,
		IdentityKey: "company:solo",
		Confidence:  1.0,
	})
	require.NoError(t, err)

	asOf := time.Now().Add(time.Second)
	batch := client.CalculateBatch(ctx, []string{id, "ghost"}, 2, scoring.AsOf(asOf))
	assert.Equal(t, 1, batch.SuccessCount)
	assert.Equal(t, 1, batch.FailureCount)

	all, err := client.ScoreAllCompanies(ctx, asOf, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, all.SuccessCount)
}
