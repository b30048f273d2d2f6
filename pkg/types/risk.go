package types

import (
	"time"
)

// RiskLevel buckets a total score into the four severity bands.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// RiskLevelFor maps a total score to its level: <0.4 LOW, [0.4,0.6) MEDIUM,
// [0.6,0.8) HIGH, >=0.8 CRITICAL.
func RiskLevelFor(totalScore float64) RiskLevel {
	switch {
	case totalScore >= 0.8:
		return RiskLevelCritical
	case totalScore >= 0.6:
		return RiskLevelHigh
	case totalScore >= 0.4:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// Severity rank, used to detect boundary crossings between snapshots.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLevelCritical:
		return 3
	case RiskLevelHigh:
		return 2
	case RiskLevelMedium:
		return 1
	default:
		return 0
	}
}

// ComponentName names one of the five fixed risk components.
type ComponentName string

const (
	ComponentInformationAsymmetry ComponentName = "information_asymmetry"
	ComponentPowerConcentration   ComponentName = "power_concentration"
	ComponentTransactionPattern   ComponentName = "transaction_pattern"
	ComponentFundRisk             ComponentName = "fund_risk"
	ComponentNetworkRisk          ComponentName = "network_risk"
)

// ComponentOrder is the declaration order used for warning tie-breaks.
var ComponentOrder = []ComponentName{
	ComponentInformationAsymmetry,
	ComponentPowerConcentration,
	ComponentTransactionPattern,
	ComponentFundRisk,
	ComponentNetworkRisk,
}

// Factor is one named input to a component: the raw observed value and its
// normalized [0,1] score under the component's piecewise-linear curve.
type Factor struct {
	Name            string  `json:"name"`
	RawValue        float64 `json:"raw_value"`
	NormalizedScore float64 `json:"normalized_score"`
	Weight          float64 `json:"weight"`
}

// Detail is supplementary, non-scored information attached to a component.
// Degraded marks data that could not be fetched; a missing input is never
// silently substituted with zero.
type Detail struct {
	Value    Value  `json:"value,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Component is one weighted sub-score of the total.
type Component struct {
	Name    ComponentName     `json:"name"`
	Score   float64           `json:"score"`
	Weight  float64           `json:"weight"`
	Factors []Factor          `json:"factors,omitempty"`
	Details map[string]Detail `json:"details,omitempty"`
}

// RiskScoreResult is the full output of scoring one company.
type RiskScoreResult struct {
	CompanyID    string                      `json:"company_id"`
	CompanyName  string                      `json:"company_name"`
	TotalScore   float64                     `json:"total_score"`
	RiskLevel    RiskLevel                   `json:"risk_level"`
	Components   map[ComponentName]Component `json:"components"`
	Warnings     []string                    `json:"warnings,omitempty"`
	Truncated    bool                        `json:"truncated,omitempty"`
	CalculatedAt time.Time                   `json:"calculated_at"`
}

// CompanyOutcome records one company's fate in a batch run.
type CompanyOutcome struct {
	CompanyID string           `json:"company_id"`
	Result    *RiskScoreResult `json:"result,omitempty"`
	Err       string           `json:"error,omitempty"`
}

// BatchScoreResults carries per-company outcomes of a whole-market
// recomputation. One company's failure never aborts its siblings.
type BatchScoreResults struct {
	Outcomes     []CompanyOutcome `json:"outcomes"`
	SuccessCount int              `json:"success_count"`
	FailureCount int              `json:"failure_count"`
	Elapsed      time.Duration    `json:"elapsed"`
}

// Prediction is the payload accepted from the external ML batch-inference
// collaborator. It is surfaced as an independent detail and never blended
// into the rule-based total score.
type Prediction struct {
	CompanyID                string    `json:"company_id"`
	DeteriorationProbability float64   `json:"deterioration_probability"`
	RiskLevel                RiskLevel `json:"risk_level"`
	ModelVersion             string    `json:"model_version"`
}

// GraphView is the nodes+edges payload served to visualization callers.
type GraphView struct {
	Nodes []*Object `json:"nodes"`
	Edges []*Link   `json:"edges"`
}
