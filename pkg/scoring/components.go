package scoring

import (
	"time"

	"github.com/soundprediction/ontoscore/pkg/patterns"
	"github.com/soundprediction/ontoscore/pkg/taxonomy"
	"github.com/soundprediction/ontoscore/pkg/types"
)

// inputs is the read-only evidence one scoring run computes over: the
// company version, its valid incident links and its pattern matches, all
// as of the same instant.
type inputs struct {
	company    *types.Object
	links      []*types.Link
	patterns   *patterns.Result
	classifier *taxonomy.Classifier
	asOf       time.Time
	cfg        *Config
}

// factorSpec declares one scored input of a component. Factor weights
// within a component sum to 1.
type factorSpec struct {
	name     string
	weight   float64
	curveKey string
	// warning is the human-readable reading of an elevated factor.
	warning string
	raw     func(in *inputs) float64
}

type componentSpec struct {
	name types.ComponentName
	// amplified components have detected pattern multipliers applied to
	// their weighted factor sum.
	amplified bool
	factors   []factorSpec
}

// componentTable declares the five components and their factors. The
// table is data: scoring walks it generically, so factor changes never
// touch the engine.
var componentTable = []componentSpec{
	{
		name: types.ComponentInformationAsymmetry,
		factors: []factorSpec{
			{
				name:     "cb_issuance_12m",
				weight:   0.60,
				curveKey: curveCBIssuance,
				warning:  "convertible bond issuance frequency is elevated",
				raw:      (*inputs).cbIssuanceCount,
			},
			{
				name:     "subscriber_concentration",
				weight:   0.25,
				curveKey: curveShareFraction,
				warning:  "offering subscriptions concentrate on a single counterparty",
				raw:      (*inputs).subscriberConcentration,
			},
			{
				name:     "disclosure_gap",
				weight:   0.15,
				curveKey: curveUnit,
				warning:  "company records carry low extraction confidence",
				raw:      (*inputs).disclosureGap,
			},
		},
	},
	{
		name:      types.ComponentPowerConcentration,
		amplified: true,
		factors: []factorSpec{
			{
				name:     "ownership_concentration",
				weight:   0.45,
				curveKey: curveOwnership,
				warning:  "ownership concentrates on a dominant holder",
				raw:      (*inputs).ownershipConcentration,
			},
			{
				name:     "subscriber_concentration",
				weight:   0.30,
				curveKey: curveShareFraction,
				warning:  "funding depends on a single counterparty",
				raw:      (*inputs).subscriberConcentration,
			},
			{
				name:     "power_signals",
				weight:   0.25,
				curveKey: curveSignalCount,
				warning:  "explicit power-asymmetry signals are attached to this company",
				raw:      (*inputs).powerSignalCount,
			},
		},
	},
	{
		name:      types.ComponentTransactionPattern,
		amplified: true,
		factors: []factorSpec{
			{
				name:     "related_party_transactions",
				weight:   0.50,
				curveKey: curveRelatedParty,
				warning:  "related-party transaction volume is elevated",
				raw:      (*inputs).relatedPartyCount,
			},
			{
				name:     "suspicious_transactions",
				weight:   0.30,
				curveKey: curveSignalCount,
				warning:  "suspicious transactions are attached to this company",
				raw:      (*inputs).suspiciousCount,
			},
			{
				name:     "special_link_risk",
				weight:   0.20,
				curveKey: curveLinkRiskAvg,
				warning:  "special-relation links carry high average risk",
				raw:      (*inputs).specialLinkRiskAvg,
			},
		},
	},
	{
		name: types.ComponentFundRisk,
		factors: []factorSpec{
			{
				name:     "fund_exposure",
				weight:   0.50,
				curveKey: curveLinkRiskSum,
				warning:  "aggregate fund-relation risk is elevated",
				raw:      (*inputs).fundExposure,
			},
			{
				name:     "fund_dependence",
				weight:   0.30,
				curveKey: curveShareFraction,
				warning:  "fund relations concentrate on a single fund",
				raw:      (*inputs).fundDependence,
			},
			{
				name:     "fund_link_count",
				weight:   0.20,
				curveKey: curveSignalCount,
				warning:  "fund relation count is elevated",
				raw:      (*inputs).fundLinkCount,
			},
		},
	},
	{
		name: types.ComponentNetworkRisk,
		factors: []factorSpec{
			{
				name:     "link_risk_density",
				weight:   0.40,
				curveKey: curveLinkRiskAvg,
				warning:  "average link risk across the neighborhood is elevated",
				raw:      (*inputs).linkRiskDensity,
			},
			{
				name:     "pattern_amplification",
				weight:   0.40,
				curveKey: curveAmplification,
				warning:  "risk-amplification patterns detected in the neighborhood",
				raw:      (*inputs).amplificationMass,
			},
			{
				name:     "connectivity",
				weight:   0.20,
				curveKey: curveDegree,
				warning:  "relationship degree is unusually high",
				raw:      (*inputs).degree,
			},
		},
	},
}

// Link types counted as offering subscriptions for issuance and
// concentration factors.
var offeringTypes = map[types.LinkType]struct{}{
	types.LinkOwnsCBIn:             {},
	types.LinkSubscribedOfferingOf: {},
}

func (in *inputs) cbIssuanceCount() float64 {
	since := in.asOf.Add(-in.cfg.IssuanceWindow)
	count := 0
	for _, link := range in.inbound() {
		if _, ok := offeringTypes[link.Type]; !ok {
			continue
		}
		if link.ValidFrom.After(since) && !link.ValidFrom.After(in.asOf) {
			count++
		}
	}
	return float64(count)
}

// subscriberConcentration is the largest fraction of the company's
// offering subscriptions held by a single counterparty.
func (in *inputs) subscriberConcentration() float64 {
	perParty := make(map[string]int)
	total := 0
	for _, link := range in.inbound() {
		if _, ok := offeringTypes[link.Type]; !ok {
			continue
		}
		perParty[link.SourceID]++
		total++
	}
	if total == 0 {
		return 0
	}
	max := 0
	for _, n := range perParty {
		if n > max {
			max = n
		}
	}
	return float64(max) / float64(total)
}

func (in *inputs) disclosureGap() float64 {
	return taxonomy.Clamp01(1 - in.company.Confidence)
}

func (in *inputs) ownershipConcentration() float64 {
	strongest := 0.0
	for _, link := range in.inbound() {
		if in.categoryOf(link) != taxonomy.CategoryOwnership {
			continue
		}
		if link.Strength > strongest {
			strongest = link.Strength
		}
	}
	return strongest
}

func (in *inputs) powerSignalCount() float64 {
	return in.countTypes(types.LinkPowerAsymmetryOver, types.LinkExploitedBy, types.LinkCollusionWith)
}

func (in *inputs) relatedPartyCount() float64 {
	return in.countTypes(types.LinkRelatedPartyTx)
}

func (in *inputs) suspiciousCount() float64 {
	return in.countTypes(types.LinkSuspiciousTransaction)
}

func (in *inputs) specialLinkRiskAvg() float64 {
	sum, n := 0.0, 0
	for _, link := range in.links {
		cat := in.categoryOf(link)
		if cat != taxonomy.CategorySpecial && cat != taxonomy.CategoryRiskSignal {
			continue
		}
		sum += in.classifier.LinkRisk(link)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (in *inputs) fundExposure() float64 {
	sum := 0.0
	for _, link := range in.links {
		if in.categoryOf(link) == taxonomy.CategoryFund {
			sum += in.classifier.LinkRisk(link)
		}
	}
	return sum
}

// fundDependence is the largest fraction of fund-category links routed
// through one counterparty.
func (in *inputs) fundDependence() float64 {
	perParty := make(map[string]int)
	total := 0
	for _, link := range in.links {
		if in.categoryOf(link) != taxonomy.CategoryFund {
			continue
		}
		perParty[link.Other(in.company.ID)]++
		total++
	}
	if total == 0 {
		return 0
	}
	max := 0
	for _, n := range perParty {
		if n > max {
			max = n
		}
	}
	return float64(max) / float64(total)
}

func (in *inputs) fundLinkCount() float64 {
	n := 0
	for _, link := range in.links {
		if in.categoryOf(link) == taxonomy.CategoryFund {
			n++
		}
	}
	return float64(n)
}

func (in *inputs) linkRiskDensity() float64 {
	if len(in.links) == 0 {
		return 0
	}
	sum := 0.0
	for _, link := range in.links {
		sum += in.classifier.LinkRisk(link)
	}
	return sum / float64(len(in.links))
}

// amplificationMass sums (multiplier-1)*confidence over detected
// pattern matches.
func (in *inputs) amplificationMass() float64 {
	if in.patterns == nil {
		return 0
	}
	mass := 0.0
	for _, m := range in.patterns.Matches {
		mass += (m.Multiplier - 1) * m.Confidence
	}
	return mass
}

func (in *inputs) degree() float64 {
	return float64(len(in.links))
}

// amplifier is the multiplier applied to amplified components: the
// strongest confidence-weighted pattern multiplier, at least 1.
func (in *inputs) amplifier() float64 {
	eff := 1.0
	if in.patterns == nil {
		return eff
	}
	for _, m := range in.patterns.Matches {
		if v := 1 + (m.Multiplier-1)*m.Confidence; v > eff {
			eff = v
		}
	}
	return eff
}

func (in *inputs) inbound() []*types.Link {
	out := make([]*types.Link, 0, len(in.links))
	for _, link := range in.links {
		if link.TargetID == in.company.ID {
			out = append(out, link)
		}
	}
	return out
}

func (in *inputs) countTypes(wanted ...types.LinkType) float64 {
	n := 0
	for _, link := range in.links {
		for _, t := range wanted {
			if link.Type == t {
				n++
				break
			}
		}
	}
	return float64(n)
}

func (in *inputs) categoryOf(link *types.Link) taxonomy.Category {
	cat, _, err := in.classifier.Classify(link.Type)
	if err != nil {
		return ""
	}
	return cat
}
