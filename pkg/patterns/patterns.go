// Package patterns detects multi-hop risk-amplification patterns in a
// company's graph neighborhood.
//
// Patterns are declared as data (a shape over link types, a hop bound and
// an amplification multiplier) and evaluated by one generic bounded
// traversal, so adding a pattern is configuration rather than new
// traversal code. Detection is deterministic: an unchanged graph yields an
// identical, identically-ordered match set.
package patterns

import (
	"github.com/soundprediction/ontoscore/pkg/types"
)

// Shape is the declarative body of a pattern. Exactly one field is set.
type Shape struct {
	// Cycle matches a directed simple cycle through the origin whose
	// edges all carry one of the listed types.
	Cycle []types.LinkType

	// Pair matches the co-occurrence of both listed link types between
	// the same ordered object pair, with the origin as one endpoint.
	Pair []types.LinkType

	// Bridge matches a BridgeType edge from the origin to a peer where
	// origin and peer are independently AnchorType-linked to a common
	// third object.
	Bridge *BridgeShape
}

// BridgeShape parameterizes the bridge shape.
type BridgeShape struct {
	BridgeType types.LinkType
	AnchorType types.LinkType
}

// Pattern is one entry of the amplification library.
type Pattern struct {
	// ID orders and names the pattern; ties in result ordering break on
	// ascending ID.
	ID string

	// Description is the human-readable reading of a match.
	Description string

	// MaxHops bounds the shape's walk length (cycle shapes only).
	MaxHops int

	// Multiplier amplifies the risk of the matched subgraph; always >1.
	Multiplier float64

	Shape Shape
}

// Match is one detected pattern instance. Confidence is the product of
// the constituent link confidences.
type Match struct {
	PatternID    string   `json:"pattern_id"`
	Confidence   float64  `json:"confidence"`
	Multiplier   float64  `json:"amplification_multiplier"`
	MatchedEdges []string `json:"matched_edges"`

	// key is the canonical identity of the matched edge set, used for
	// deduplication and deterministic ordering.
	key string
}

// Result is the outcome of one detection run. Truncated marks a run that
// hit the visited-node budget and returned a partial match set instead of
// failing.
type Result struct {
	Matches   []Match `json:"matches"`
	Truncated bool    `json:"truncated"`
	Visited   int     `json:"visited"`
}

// DefaultLibrary returns the built-in amplification patterns.
func DefaultLibrary() []Pattern {
	return []Pattern{
		{
			ID:          "cb_related_party_pair",
			Description: "convertible bond holding paired with a related-party transaction between the same two parties",
			MaxHops:     1,
			Multiplier:  1.4,
			Shape:       Shape{Pair: []types.LinkType{types.LinkOwnsCBIn, types.LinkRelatedPartyTx}},
		},
		{
			ID:          "circular_investment",
			Description: "chain of investments returning to its origin",
			MaxHops:     3,
			Multiplier:  1.5,
			Shape:       Shape{Cycle: []types.LinkType{types.LinkInvestedIn, types.LinkOwnsSharesIn, types.LinkFundInvestedIn}},
		},
		{
			ID:          "cross_shareholding",
			Description: "two companies holding each other's shares",
			MaxHops:     2,
			Multiplier:  1.3,
			Shape:       Shape{Cycle: []types.LinkType{types.LinkOwnsSharesIn}},
		},
		{
			ID:          "family_affiliate_bridge",
			Description: "family relation bridging two entities that are affiliates of a common third party",
			MaxHops:     2,
			Multiplier:  1.35,
			Shape:       Shape{Bridge: &BridgeShape{BridgeType: types.LinkFamilyRelation, AnchorType: types.LinkAffiliateOf}},
		},
	}
}
