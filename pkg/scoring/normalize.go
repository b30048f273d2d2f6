package scoring

import (
	"fmt"
	"sort"
)

// Breakpoint is one vertex of a piecewise-linear normalization curve.
type Breakpoint struct {
	Raw   float64 `mapstructure:"raw" yaml:"raw"`
	Score float64 `mapstructure:"score" yaml:"score"`
}

// Curve is a monotone piecewise-linear mapping from raw factor values to
// [0,1]. Values outside the breakpoint range clamp to the end scores.
// Breakpoints are configuration, not code: the shipped defaults are
// illustrative and deployments calibrate them against historical outputs.
type Curve []Breakpoint

// Validate checks that the curve is non-empty, sorted, monotone, and maps
// into [0,1].
func (c Curve) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("curve has no breakpoints")
	}
	if !sort.SliceIsSorted(c, func(i, j int) bool { return c[i].Raw < c[j].Raw }) {
		return fmt.Errorf("curve breakpoints not sorted by raw value")
	}
	prev := -1.0
	for _, bp := range c {
		if bp.Score < 0 || bp.Score > 1 {
			return fmt.Errorf("curve score %v outside [0,1]", bp.Score)
		}
		if bp.Score < prev {
			return fmt.Errorf("curve not monotone at raw=%v", bp.Raw)
		}
		prev = bp.Score
	}
	return nil
}

// Normalize maps a raw value through the curve.
func (c Curve) Normalize(raw float64) float64 {
	if len(c) == 0 {
		return 0
	}
	if raw <= c[0].Raw {
		return c[0].Score
	}
	last := c[len(c)-1]
	if raw >= last.Raw {
		return last.Score
	}
	for i := 1; i < len(c); i++ {
		if raw <= c[i].Raw {
			lo, hi := c[i-1], c[i]
			span := hi.Raw - lo.Raw
			if span == 0 {
				return hi.Score
			}
			frac := (raw - lo.Raw) / span
			return lo.Score + frac*(hi.Score-lo.Score)
		}
	}
	return last.Score
}

// Curve keys referenced by the factor table.
const (
	curveCBIssuance    = "cb_issuance"
	curveShareFraction = "share_fraction"
	curveOwnership     = "ownership_concentration"
	curveSignalCount   = "signal_count"
	curveRelatedParty  = "related_party_count"
	curveLinkRiskAvg   = "link_risk_avg"
	curveLinkRiskSum   = "link_risk_sum"
	curveAmplification = "amplification"
	curveDegree        = "degree"
	curveUnit          = "unit"
)

// DefaultCurves returns the illustrative normalization breakpoints.
func DefaultCurves() map[string]Curve {
	return map[string]Curve{
		curveCBIssuance:    {{0, 0}, {10, 0.9}, {15, 1}},
		curveShareFraction: {{0, 0}, {0.5, 0.4}, {1, 1}},
		curveOwnership:     {{0, 0}, {0.2, 0.1}, {0.5, 0.5}, {0.8, 0.9}, {1, 1}},
		curveSignalCount:   {{0, 0}, {1, 0.4}, {3, 0.8}, {5, 1}},
		curveRelatedParty:  {{0, 0}, {5, 0.7}, {10, 1}},
		curveLinkRiskAvg:   {{0, 0}, {0.3, 0.5}, {0.6, 1}},
		curveLinkRiskSum:   {{0, 0}, {2, 0.6}, {5, 1}},
		curveAmplification: {{0, 0}, {0.3, 0.8}, {0.6, 1}},
		curveDegree:        {{0, 0}, {10, 0.6}, {25, 1}},
		curveUnit:          {{0, 0}, {1, 1}},
	}
}
