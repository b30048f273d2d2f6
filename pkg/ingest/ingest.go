// Package ingest applies batches of extracted objects and links to the
// ontology store.
//
// A batch is the unit handed over by the upstream disclosure-extraction
// pipeline. Application is two-phase (objects, then links) so links can
// reference identities created in the same batch, and per-record: one bad
// record is reported, not fatal.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/soundprediction/ontoscore/pkg/ontology"
	"github.com/soundprediction/ontoscore/pkg/types"
	"github.com/soundprediction/ontoscore/pkg/utils"
)

// ObjectRecord is one extracted entity.
type ObjectRecord struct {
	Type            types.ObjectType `json:"type"`
	IdentityKey     string           `json:"identity_key"`
	Properties      types.Properties `json:"properties,omitempty"`
	SourceDocuments []string         `json:"source_documents,omitempty"`
	Confidence      float64          `json:"confidence"`
}

// LinkRecord is one extracted relationship. Endpoints are named by
// identity key; the ingestor resolves them to current object versions.
type LinkRecord struct {
	Type            types.LinkType   `json:"type"`
	SourceKey       string           `json:"source_key"`
	TargetKey       string           `json:"target_key"`
	Strength        float64          `json:"strength"`
	Confidence      float64          `json:"confidence"`
	Properties      types.Properties `json:"properties,omitempty"`
	SourceDocuments []string         `json:"source_documents,omitempty"`
	// ValidFrom defaults to application time.
	ValidFrom time.Time `json:"valid_from,omitempty"`
}

// Batch is one handover from the extraction pipeline.
type Batch struct {
	Objects []ObjectRecord `json:"objects,omitempty"`
	Links   []LinkRecord   `json:"links,omitempty"`
}

// RecordError attributes one failure to its record.
type RecordError struct {
	Stage string `json:"stage"` // "object" or "link"
	Index int    `json:"index"`
	Key   string `json:"key"`
	Err   string `json:"error"`
}

// Report summarizes one batch application.
type Report struct {
	ObjectsApplied int           `json:"objects_applied"`
	LinksApplied   int           `json:"links_applied"`
	LinksSkipped   int           `json:"links_skipped"`
	Errors         []RecordError `json:"errors,omitempty"`
	Elapsed        time.Duration `json:"elapsed"`
}

// Ingestor applies batches under a bounded worker pool.
type Ingestor struct {
	store       *ontology.Store
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithConcurrency sets the worker pool size.
func WithConcurrency(n int) Option {
	return func(i *Ingestor) { i.concurrency = n }
}

// WithLogger sets the ingestor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingestor) { i.logger = logger }
}

// New creates an Ingestor over the store.
func New(store *ontology.Store, opts ...Option) *Ingestor {
	ing := &Ingestor{
		store:       store,
		concurrency: utils.DefaultConcurrency,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Apply writes the batch to the store: all objects first, then all links.
// Re-applying the same batch is idempotent: unchanged objects are no-ops
// and duplicate open links are counted as skipped, not failed.
func (ing *Ingestor) Apply(ctx context.Context, batch *Batch) (*Report, error) {
	start := ing.now()
	report := &Report{}

	resolved := ing.applyObjects(ctx, batch.Objects, report)
	ing.applyLinks(ctx, batch.Links, resolved, report)

	report.Elapsed = ing.now().Sub(start)
	ing.logger.Info("batch applied",
		"objects", report.ObjectsApplied,
		"links", report.LinksApplied,
		"skipped", report.LinksSkipped,
		"errors", len(report.Errors),
		"elapsed", report.Elapsed)
	return report, nil
}

// applyObjects upserts the object records and returns identity key to
// object id for same-batch link resolution.
func (ing *Ingestor) applyObjects(ctx context.Context, records []ObjectRecord, report *Report) map[string]string {
	resolved := make(map[string]string, len(records))
	if len(records) == 0 {
		return resolved
	}

	pool := utils.NewWorkerPool(ing.concurrency, func(ctx context.Context, record ObjectRecord) (string, error) {
		return ing.store.UpsertObject(ctx, ontology.UpsertRequest{
			Type:            record.Type,
			IdentityKey:     record.IdentityKey,
			Properties:      record.Properties,
			SourceDocuments: record.SourceDocuments,
			Confidence:      record.Confidence,
		})
	})
	ids, errs := pool.ProcessItems(ctx, records)

	for i, record := range records {
		if errs[i] != nil {
			report.Errors = append(report.Errors, RecordError{
				Stage: "object", Index: i, Key: record.IdentityKey, Err: errs[i].Error(),
			})
			continue
		}
		resolved[record.IdentityKey] = ids[i]
		report.ObjectsApplied++
	}
	return resolved
}

func (ing *Ingestor) applyLinks(ctx context.Context, records []LinkRecord, resolved map[string]string, report *Report) {
	if len(records) == 0 {
		return
	}

	type linkOutcome struct {
		link    *types.Link
		skipped bool
	}
	pool := utils.NewWorkerPool(ing.concurrency, func(ctx context.Context, record LinkRecord) (linkOutcome, error) {
		sourceID, err := ing.resolve(ctx, resolved, record.SourceKey, record.ValidFrom)
		if err != nil {
			return linkOutcome{}, err
		}
		targetID, err := ing.resolve(ctx, resolved, record.TargetKey, record.ValidFrom)
		if err != nil {
			return linkOutcome{}, err
		}
		link, err := ing.store.CreateLink(ctx, ontology.CreateLinkRequest{
			Type:       record.Type,
			SourceID:   sourceID,
			TargetID:   targetID,
			Strength:   record.Strength,
			Confidence: record.Confidence,
			Properties: record.Properties,
			ValidFrom:  record.ValidFrom,
		})
		if err != nil {
			if errors.Is(err, &types.ConflictError{}) {
				// Already recorded by an earlier application of this batch.
				return linkOutcome{skipped: true}, nil
			}
			return linkOutcome{}, err
		}
		return linkOutcome{link: link}, nil
	})
	outcomes, errs := pool.ProcessItems(ctx, records)

	for i, record := range records {
		switch {
		case errs[i] != nil:
			report.Errors = append(report.Errors, RecordError{
				Stage: "link", Index: i,
				Key: fmt.Sprintf("%s -%s-> %s", record.SourceKey, record.Type, record.TargetKey),
				Err: errs[i].Error(),
			})
		case outcomes[i].skipped:
			report.LinksSkipped++
		default:
			report.LinksApplied++
		}
	}
}

// resolve maps an identity key to the object version current at asOf,
// preferring identities written by this batch.
func (ing *Ingestor) resolve(ctx context.Context, resolved map[string]string, key string, asOf time.Time) (string, error) {
	if id, ok := resolved[key]; ok {
		return id, nil
	}
	obj, err := ing.store.GetObjectByIdentity(ctx, key, asOf)
	if err != nil {
		return "", err
	}
	return obj.ID, nil
}

// LoadBatch reads a batch from a JSON file.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	return &batch, nil
}
