package ontoscore

import (
	"context"
	"time"

	"github.com/soundprediction/ontoscore/pkg/ingest"
	"github.com/soundprediction/ontoscore/pkg/ontology"
	"github.com/soundprediction/ontoscore/pkg/patterns"
	"github.com/soundprediction/ontoscore/pkg/scoring"
	"github.com/soundprediction/ontoscore/pkg/taxonomy"
	"github.com/soundprediction/ontoscore/pkg/types"
)

// This file defines focused interfaces composed into the main OntoScore
// interface. Consumers should depend on the smallest interface that meets
// their needs.

// OntologyReader provides read-only access to the bitemporal ontology.
type OntologyReader interface {
	// GetObject retrieves the version of an object's identity valid at asOf.
	GetObject(ctx context.Context, objectID string, asOf time.Time) (*types.Object, error)

	// GetObjectByIdentity retrieves the version of an identity valid at asOf.
	GetObjectByIdentity(ctx context.Context, identityKey string, asOf time.Time) (*types.Object, error)

	// GetLinks lists the links touching an object that match the query.
	GetLinks(ctx context.Context, objectID string, q ontology.LinkQuery) ([]*types.Link, error)

	// Neighborhood returns the bounded subgraph around an object.
	Neighborhood(ctx context.Context, objectID string, hops int, asOf time.Time) (*types.GraphView, error)
}

// OntologyWriter provides write access to the bitemporal ontology.
type OntologyWriter interface {
	// UpsertObject writes an object version and returns its id.
	UpsertObject(ctx context.Context, req ontology.UpsertRequest) (string, error)

	// CreateLink records a relationship event.
	CreateLink(ctx context.Context, req ontology.CreateLinkRequest) (*types.Link, error)

	// CloseLink ends a link's validity at asOf.
	CloseLink(ctx context.Context, linkID string, asOf time.Time) error
}

// RelationshipClassifier exposes the relationship taxonomy.
type RelationshipClassifier interface {
	// Classify returns the taxonomy category and base weight of a link type.
	Classify(linkType types.LinkType) (taxonomy.Category, float64, error)

	// LinkRisk returns the effective risk contribution of one link.
	LinkRisk(link *types.Link) float64
}

// RiskAnalyzer provides pattern detection and scoring.
type RiskAnalyzer interface {
	// DetectPatterns evaluates the amplification library around an object.
	DetectPatterns(ctx context.Context, objectID string, asOf time.Time) (*patterns.Result, error)

	// CalculateRiskScore scores one company.
	CalculateRiskScore(ctx context.Context, companyID string, opts ...scoring.ScoreOption) (*types.RiskScoreResult, error)

	// CalculateBatch scores many companies under a bounded worker pool.
	CalculateBatch(ctx context.Context, companyIDs []string, concurrency int, opts ...scoring.ScoreOption) *types.BatchScoreResults

	// ScoreAllCompanies scores every company valid at asOf.
	ScoreAllCompanies(ctx context.Context, asOf time.Time, concurrency int, opts ...scoring.ScoreOption) (*types.BatchScoreResults, error)
}

// BatchIngestor applies extraction batches.
type BatchIngestor interface {
	// ApplyBatch ingests one extraction batch.
	ApplyBatch(ctx context.Context, batch *ingest.Batch) (*ingest.Report, error)
}

// Admin provides maintenance operations.
type Admin interface {
	// CreateIndices creates storage indices where the driver supports them.
	CreateIndices(ctx context.Context) error

	// Close closes all connections and cleans up resources.
	Close(ctx context.Context) error
}

// OntoScore is the main interface for the relationship risk system.
type OntoScore interface {
	OntologyReader
	OntologyWriter
	RelationshipClassifier
	RiskAnalyzer
	BatchIngestor
	Admin
}

// Compile-time check that Client satisfies the composed interface.
var _ OntoScore = (*Client)(nil)
