package ontoscore

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundprediction/ontoscore/pkg/driver"
	"github.com/soundprediction/ontoscore/pkg/ingest"
	"github.com/soundprediction/ontoscore/pkg/ontology"
	"github.com/soundprediction/ontoscore/pkg/patterns"
	"github.com/soundprediction/ontoscore/pkg/scoring"
	"github.com/soundprediction/ontoscore/pkg/taxonomy"
	"github.com/soundprediction/ontoscore/pkg/types"
)

// Config holds configuration for the ontoscore client.
type Config struct {
	// TaxonomyTable overrides the built-in relationship taxonomy.
	TaxonomyTable taxonomy.Table
	// Scoring overrides the default weights and normalization curves.
	Scoring *scoring.Config
	// Detection bounds pattern traversal.
	Detection patterns.Config
	// PatternLibrary overrides the built-in amplification patterns.
	PatternLibrary []patterns.Pattern
	// NeighborhoodTTL enables the neighborhood cache when positive.
	NeighborhoodTTL time.Duration
	// Predictor is the optional external inference collaborator.
	Predictor scoring.PredictionProvider
	// Audit is the optional sink receiving every finished score.
	Audit scoring.AuditSink
	// IngestConcurrency sizes the ingestion worker pool.
	IngestConcurrency int
}

// Client is the main implementation of the OntoScore interface.
type Client struct {
	driver   driver.Driver
	store    *ontology.Store
	detector *patterns.Detector
	engine   *scoring.Engine
	ingestor *ingest.Ingestor
	logger   *slog.Logger
}

// NewClient creates an ontoscore client over the given storage driver.
func NewClient(d driver.Driver, cfg *Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	table := cfg.TaxonomyTable
	if table == nil {
		table = taxonomy.DefaultTable()
	}
	classifier := taxonomy.NewClassifier(table)

	storeOpts := []ontology.Option{ontology.WithLogger(logger)}
	if cfg.NeighborhoodTTL > 0 {
		storeOpts = append(storeOpts, ontology.WithNeighborhoodCache(cfg.NeighborhoodTTL))
	}
	store := ontology.New(d, classifier, storeOpts...)

	detector := patterns.NewDetector(store, cfg.PatternLibrary, cfg.Detection, logger)

	engineOpts := []scoring.EngineOption{scoring.WithLogger(logger)}
	if cfg.Predictor != nil {
		engineOpts = append(engineOpts, scoring.WithPredictor(cfg.Predictor))
	}
	if cfg.Audit != nil {
		engineOpts = append(engineOpts, scoring.WithAuditSink(cfg.Audit))
	}
	engine, err := scoring.NewEngine(store, detector, cfg.Scoring, engineOpts...)
	if err != nil {
		return nil, err
	}

	ingestor := ingest.New(store,
		ingest.WithConcurrency(cfg.IngestConcurrency),
		ingest.WithLogger(logger))

	return &Client{
		driver:   d,
		store:    store,
		detector: detector,
		engine:   engine,
		ingestor: ingestor,
		logger:   logger,
	}, nil
}

// Store returns the underlying ontology store.
func (c *Client) Store() *ontology.Store { return c.store }

// GetObject retrieves the version of an object's identity valid at asOf.
func (c *Client) GetObject(ctx context.Context, objectID string, asOf time.Time) (*types.Object, error) {
	return c.store.GetObject(ctx, objectID, asOf)
}

// GetObjectByIdentity retrieves the version of an identity valid at asOf.
func (c *Client) GetObjectByIdentity(ctx context.Context, identityKey string, asOf time.Time) (*types.Object, error) {
	return c.store.GetObjectByIdentity(ctx, identityKey, asOf)
}

// UpsertObject writes an object version and returns its id.
func (c *Client) UpsertObject(ctx context.Context, req ontology.UpsertRequest) (string, error) {
	return c.store.UpsertObject(ctx, req)
}

// GetLinks lists the links touching an object that match the query.
func (c *Client) GetLinks(ctx context.Context, objectID string, q ontology.LinkQuery) ([]*types.Link, error) {
	var links []*types.Link
	for link, err := range c.store.GetLinks(ctx, objectID, q) {
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, nil
}

// CreateLink records a relationship event.
func (c *Client) CreateLink(ctx context.Context, req ontology.CreateLinkRequest) (*types.Link, error) {
	return c.store.CreateLink(ctx, req)
}

// CloseLink ends a link's validity at asOf.
func (c *Client) CloseLink(ctx context.Context, linkID string, asOf time.Time) error {
	return c.store.CloseLink(ctx, linkID, asOf)
}

// Neighborhood returns the bounded subgraph around an object.
func (c *Client) Neighborhood(ctx context.Context, objectID string, hops int, asOf time.Time) (*types.GraphView, error) {
	return c.store.Neighborhood(ctx, objectID, hops, asOf)
}

// Classify returns the taxonomy category and base weight of a link type.
func (c *Client) Classify(linkType types.LinkType) (taxonomy.Category, float64, error) {
	return c.store.Classifier().Classify(linkType)
}

// LinkRisk returns the effective risk contribution of one link.
func (c *Client) LinkRisk(link *types.Link) float64 {
	return c.store.Classifier().LinkRisk(link)
}

// DetectPatterns evaluates the amplification library around an object.
func (c *Client) DetectPatterns(ctx context.Context, objectID string, asOf time.Time) (*patterns.Result, error) {
	return c.detector.DetectPatterns(ctx, objectID, asOf)
}

// CalculateRiskScore scores one company.
func (c *Client) CalculateRiskScore(ctx context.Context, companyID string, opts ...scoring.ScoreOption) (*types.RiskScoreResult, error) {
	return c.engine.CalculateRiskScore(ctx, companyID, opts...)
}

// CalculateBatch scores many companies under a bounded worker pool.
func (c *Client) CalculateBatch(ctx context.Context, companyIDs []string, concurrency int, opts ...scoring.ScoreOption) *types.BatchScoreResults {
	return c.engine.CalculateBatch(ctx, companyIDs, concurrency, opts...)
}

// ScoreAllCompanies scores every company valid at asOf.
func (c *Client) ScoreAllCompanies(ctx context.Context, asOf time.Time, concurrency int, opts ...scoring.ScoreOption) (*types.BatchScoreResults, error) {
	return c.engine.ScoreAllCompanies(ctx, asOf, concurrency, opts...)
}

// ApplyBatch ingests one extraction batch.
func (c *Client) ApplyBatch(ctx context.Context, batch *ingest.Batch) (*ingest.Report, error) {
	return c.ingestor.Apply(ctx, batch)
}

// CreateIndices creates storage indices where the driver supports them.
func (c *Client) CreateIndices(ctx context.Context) error {
	type indexer interface {
		CreateIndices(ctx context.Context) error
	}
	if ix, ok := c.driver.(indexer); ok {
		return ix.CreateIndices(ctx)
	}
	return nil
}

// Close closes the storage driver.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close()
}
