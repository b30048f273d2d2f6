// Package taxonomy holds the fixed relationship-type taxonomy and the
// classifier that turns links into per-link risk contributions.
//
// The 35-entry table maps each link type to an immutable
// (category, base weight) pair. The table is injected into consumers as
// configuration rather than read from module globals, so alternate weight
// sets stay testable.
package taxonomy

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/soundprediction/ontoscore/pkg/types"
)

// Category groups link types by exploitation character.
type Category string

const (
	CategoryEmployment Category = "employment_position"
	CategoryOwnership  Category = "ownership_equity"
	CategoryFund       Category = "fund_relations"
	CategorySpecial    Category = "special_relations"
	CategoryRiskSignal Category = "risk_signals"
)

// Entry is one immutable taxonomy row.
type Entry struct {
	Category   Category `yaml:"category"`
	BaseWeight float64  `yaml:"base_weight"`
}

// Table maps every known link type to its entry. Treat as immutable after
// construction.
type Table map[types.LinkType]Entry

// DefaultTable returns the built-in 35-entry taxonomy. Indicative weight
// ranges per category: employment 0.1-0.3, ownership 0.3-0.6, fund 0.3-0.5,
// special 0.6-0.9, risk signals 0.8-1.0.
func DefaultTable() Table {
	return Table{
		// employment / position
		types.LinkEmployeeOf:       {CategoryEmployment, 0.10},
		types.LinkFormerOfficerOf:  {CategoryEmployment, 0.12},
		types.LinkAdvisorTo:        {CategoryEmployment, 0.15},
		types.LinkAuditorOf:        {CategoryEmployment, 0.20},
		types.LinkRepresentativeOf: {CategoryEmployment, 0.25},
		types.LinkDirectorOf:       {CategoryEmployment, 0.28},
		types.LinkOfficerOf:        {CategoryEmployment, 0.30},

		// ownership / equity
		types.LinkAffiliateOf:     {CategoryOwnership, 0.30},
		types.LinkOwnsSharesIn:    {CategoryOwnership, 0.35},
		types.LinkInvestedIn:      {CategoryOwnership, 0.40},
		types.LinkPledgedSharesOf: {CategoryOwnership, 0.42},
		types.LinkSubsidiaryOf:    {CategoryOwnership, 0.45},
		types.LinkBeneficialOwner: {CategoryOwnership, 0.50},
		types.LinkMajorityOwnerOf: {CategoryOwnership, 0.55},
		types.LinkControls:        {CategoryOwnership, 0.60},

		// fund relations
		types.LinkCustodianOf:          {CategoryFund, 0.30},
		types.LinkLimitedPartnerOf:     {CategoryFund, 0.32},
		types.LinkManagesFund:          {CategoryFund, 0.35},
		types.LinkFundInvestedIn:       {CategoryFund, 0.40},
		types.LinkGeneralPartnerOf:     {CategoryFund, 0.42},
		types.LinkSubscribedOfferingOf: {CategoryFund, 0.45},
		types.LinkOwnsCBIn:             {CategoryFund, 0.50},

		// special relations
		types.LinkFamilyRelation:         {CategorySpecial, 0.60},
		types.LinkRelatedPartyTx:         {CategorySpecial, 0.65},
		types.LinkCrossShareholdingWith:  {CategorySpecial, 0.70},
		types.LinkUndisclosedAffiliateOf: {CategorySpecial, 0.75},
		types.LinkNomineeFor:             {CategorySpecial, 0.80},
		types.LinkCircularInvestmentWith: {CategorySpecial, 0.85},
		types.LinkShellCompanyFor:        {CategorySpecial, 0.90},

		// risk signals
		types.LinkFlaggedFor:               {CategoryRiskSignal, 0.80},
		types.LinkInformationAsymmetryWith: {CategoryRiskSignal, 0.85},
		types.LinkPowerAsymmetryOver:       {CategoryRiskSignal, 0.88},
		types.LinkCollusionWith:            {CategoryRiskSignal, 0.90},
		types.LinkSuspiciousTransaction:    {CategoryRiskSignal, 0.95},
		types.LinkExploitedBy:              {CategoryRiskSignal, 1.00},
	}
}

// LoadTable reads a taxonomy override file (yaml map of link type to
// entry). Entries replace the defaults wholesale; the file must cover
// every link type it mentions with a weight in [0,1].
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy file: %w", err)
	}
	raw := map[string]Entry{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse taxonomy file: %w", err)
	}
	table := DefaultTable()
	for name, entry := range raw {
		if entry.BaseWeight < 0 || entry.BaseWeight > 1 {
			return nil, fmt.Errorf("taxonomy entry %s: %w", name, types.ErrOutOfRange)
		}
		table[types.LinkType(name)] = entry
	}
	return table, nil
}

// Classifier answers (category, base weight) lookups and computes
// per-link risk contributions against one immutable table.
type Classifier struct {
	table Table
}

// NewClassifier builds a classifier over the given table, defaulting to
// the built-in taxonomy when table is nil.
func NewClassifier(table Table) *Classifier {
	if table == nil {
		table = DefaultTable()
	}
	return &Classifier{table: table}
}

// Known reports whether the link type belongs to the taxonomy.
func (c *Classifier) Known(lt types.LinkType) bool {
	_, ok := c.table[lt]
	return ok
}

// Classify returns the (category, base weight) pair for a link type.
func (c *Classifier) Classify(lt types.LinkType) (Category, float64, error) {
	entry, ok := c.table[lt]
	if !ok {
		return "", 0, fmt.Errorf("link type %q is not in the taxonomy", lt)
	}
	return entry.Category, entry.BaseWeight, nil
}

// LinkRisk computes the per-link risk contribution:
// clamp01(baseWeight * strength * confidence). Unknown types contribute
// nothing.
func (c *Classifier) LinkRisk(link *types.Link) float64 {
	entry, ok := c.table[link.Type]
	if !ok {
		return 0
	}
	return Clamp01(entry.BaseWeight * link.Strength * link.Confidence)
}

// TypesInCategory returns the link types of one category in stable order.
func (c *Classifier) TypesInCategory(cat Category) []types.LinkType {
	var out []types.LinkType
	for lt, entry := range c.table {
		if entry.Category == cat {
			out = append(out, lt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
