package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoscore/pkg/types"
)

func TestDefaultTableShape(t *testing.T) {
	table := DefaultTable()
	assert.Len(t, table, 35)

	perCategory := map[Category]int{}
	for lt, entry := range table {
		perCategory[entry.Category]++
		assert.GreaterOrEqual(t, entry.BaseWeight, 0.0, "weight below 0 for %s", lt)
		assert.LessOrEqual(t, entry.BaseWeight, 1.0, "weight above 1 for %s", lt)
	}
	for _, cat := range []Category{
		CategoryEmployment, CategoryOwnership, CategoryFund, CategorySpecial, CategoryRiskSignal,
	} {
		assert.Equal(t, 7, perCategory[cat], "category %s", cat)
	}
}

func TestDefaultTableWeightBands(t *testing.T) {
	bands := map[Category][2]float64{
		CategoryEmployment: {0.1, 0.3},
		CategoryOwnership:  {0.3, 0.6},
		CategoryFund:       {0.3, 0.5},
		CategorySpecial:    {0.6, 0.9},
		CategoryRiskSignal: {0.8, 1.0},
	}
	for lt, entry := range DefaultTable() {
		band := bands[entry.Category]
		assert.GreaterOrEqual(t, entry.BaseWeight, band[0], "%s below its category band", lt)
		assert.LessOrEqual(t, entry.BaseWeight, band[1], "%s above its category band", lt)
	}
}

func TestClassify(t *testing.T) {
	c := NewClassifier(nil)

	cat, weight, err := c.Classify(types.LinkOwnsCBIn)
	require.NoError(t, err)
	assert.Equal(t, CategoryFund, cat)
	assert.Equal(t, 0.50, weight)

	cat, weight, err = c.Classify(types.LinkExploitedBy)
	require.NoError(t, err)
	assert.Equal(t, CategoryRiskSignal, cat)
	assert.Equal(t, 1.00, weight)

	_, _, err = c.Classify(types.LinkType("sits_next_to"))
	assert.Error(t, err)
	assert.False(t, c.Known(types.LinkType("sits_next_to")))
}

func TestLinkRisk(t *testing.T) {
	c := NewClassifier(nil)

	link := &types.Link{Type: types.LinkOwnsCBIn, Strength: 0.8, Confidence: 0.9}
	assert.InDelta(t, 0.5*0.8*0.9, c.LinkRisk(link), 1e-9)

	// Unknown types contribute nothing.
	unknown := &types.Link{Type: types.LinkType("sits_next_to"), Strength: 1, Confidence: 1}
	assert.Zero(t, c.LinkRisk(unknown))

	// Result stays in [0,1] even for the heaviest entry.
	max := &types.Link{Type: types.LinkExploitedBy, Strength: 1, Confidence: 1}
	assert.Equal(t, 1.0, c.LinkRisk(max))
}

func TestTypesInCategoryStableOrder(t *testing.T) {
	c := NewClassifier(nil)

	first := c.TypesInCategory(CategorySpecial)
	require.Len(t, first, 7)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.TypesInCategory(CategorySpecial))
	}
}

func TestLoadTableOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	content := "owns_cb_in:\n  category: fund_relations\n  base_weight: 0.7\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := LoadTable(path)
	require.NoError(t, err)
	assert.Len(t, table, 35)
	assert.Equal(t, 0.7, table[types.LinkOwnsCBIn].BaseWeight)
	// Untouched entries keep their defaults.
	assert.Equal(t, 0.30, table[types.LinkOfficerOf].BaseWeight)
}

func TestLoadTableRejectsBadWeight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	content := "owns_cb_in:\n  category: fund_relations\n  base_weight: 1.7\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadTable(path)
	assert.ErrorIs(t, err, types.ErrOutOfRange)
}

func TestLoadTableMissingFile(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 1.0, Clamp01(1.5))
	assert.Equal(t, 0.25, Clamp01(0.25))
}
