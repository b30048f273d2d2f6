package types

import (
	"time"
)

// LinkType names one entry of the fixed 35-entry relationship taxonomy.
// The (category, base weight) pair attached to each entry lives in
// pkg/taxonomy and is immutable; link types are compared as closed enum
// values, never classified by ad hoc string matching.
type LinkType string

// Employment / position relations.
const (
	LinkOfficerOf        LinkType = "officer_of"
	LinkDirectorOf       LinkType = "director_of"
	LinkAuditorOf        LinkType = "auditor_of"
	LinkEmployeeOf       LinkType = "employee_of"
	LinkAdvisorTo        LinkType = "advisor_to"
	LinkFormerOfficerOf  LinkType = "former_officer_of"
	LinkRepresentativeOf LinkType = "representative_of"
)

// Ownership / equity relations.
const (
	LinkOwnsSharesIn     LinkType = "owns_shares_in"
	LinkMajorityOwnerOf  LinkType = "majority_owner_of"
	LinkInvestedIn       LinkType = "invested_in"
	LinkControls         LinkType = "controls"
	LinkSubsidiaryOf     LinkType = "subsidiary_of"
	LinkAffiliateOf      LinkType = "affiliate_of"
	LinkBeneficialOwner  LinkType = "beneficial_owner_of"
	LinkPledgedSharesOf  LinkType = "pledged_shares_of"
)

// Fund relations.
const (
	LinkManagesFund          LinkType = "manages_fund"
	LinkFundInvestedIn       LinkType = "fund_invested_in"
	LinkSubscribedOfferingOf LinkType = "subscribed_offering_of"
	LinkOwnsCBIn             LinkType = "owns_cb_in"
	LinkGeneralPartnerOf     LinkType = "general_partner_of"
	LinkLimitedPartnerOf     LinkType = "limited_partner_of"
	LinkCustodianOf          LinkType = "custodian_of"
)

// Special relations.
const (
	LinkCrossShareholdingWith  LinkType = "cross_shareholding_with"
	LinkCircularInvestmentWith LinkType = "circular_investment_with"
	LinkShellCompanyFor        LinkType = "shell_company_for"
	LinkRelatedPartyTx         LinkType = "related_party_transaction"
	LinkFamilyRelation         LinkType = "family_relation"
	LinkNomineeFor             LinkType = "nominee_for"
	LinkUndisclosedAffiliateOf LinkType = "undisclosed_affiliate_of"
)

// Risk-signal relations.
const (
	LinkExploitedBy              LinkType = "exploited_by"
	LinkCollusionWith            LinkType = "collusion_with"
	LinkSuspiciousTransaction    LinkType = "suspicious_transaction_with"
	LinkInformationAsymmetryWith LinkType = "information_asymmetry_with"
	LinkPowerAsymmetryOver       LinkType = "power_asymmetry_over"
	LinkFlaggedFor               LinkType = "flagged_for"
)

// Direction selects which incident links a neighborhood query returns.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// Link is a versioned, typed, directed relationship between two Objects.
// Strength is how strong the relationship is, Confidence how certain we
// are it exists; both live in [0,1].
type Link struct {
	ID       string   `json:"link_id" mapstructure:"link_id"`
	Type     LinkType `json:"link_type" mapstructure:"link_type"`
	SourceID string   `json:"source_object_id" mapstructure:"source_object_id"`
	TargetID string   `json:"target_object_id" mapstructure:"target_object_id"`

	ValidFrom  time.Time  `json:"valid_from" mapstructure:"valid_from"`
	ValidUntil *time.Time `json:"valid_until,omitempty" mapstructure:"valid_until"`

	Strength   float64 `json:"strength" mapstructure:"strength"`
	Confidence float64 `json:"confidence" mapstructure:"confidence"`

	Properties Properties `json:"properties,omitempty" mapstructure:"properties"`

	CreatedAt time.Time `json:"created_at" mapstructure:"created_at"`
}

// IsValidAt reports whether the link is valid at time t.
func (l *Link) IsValidAt(t time.Time) bool {
	if t.Before(l.ValidFrom) {
		return false
	}
	return l.ValidUntil == nil || t.Before(*l.ValidUntil)
}

// Other returns the endpoint opposite to the given object id.
func (l *Link) Other(objectID string) string {
	if l.SourceID == objectID {
		return l.TargetID
	}
	return l.SourceID
}

// Validate checks the invariants every stored link must hold.
func (l *Link) Validate() error {
	if l.ID == "" {
		return ErrEmptyID
	}
	if l.SourceID == "" || l.TargetID == "" {
		return ErrEmptyEndpoint
	}
	if l.Strength < 0 || l.Strength > 1 {
		return ErrOutOfRange
	}
	if l.Confidence < 0 || l.Confidence > 1 {
		return ErrOutOfRange
	}
	if l.ValidUntil != nil && !l.ValidFrom.Before(*l.ValidUntil) {
		return ErrInvalidInterval
	}
	return nil
}
