// Package ontology implements the bitemporal Object/Link graph store on
// top of the persistence driver contract.
//
// Identity history is append-only: UpsertObject never mutates a closed
// version, it closes the open head and appends the next version under a
// per-identity lock with compare-and-swap on the chain version. Reads are
// point-in-time ("as of" a timestamp) and side-effect free.
package ontology

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/ontoscore/pkg/driver"
	"github.com/soundprediction/ontoscore/pkg/taxonomy"
	"github.com/soundprediction/ontoscore/pkg/types"
)

// casRetryLimit bounds how often an upsert retries after losing a
// compare-and-swap race to a writer on another process.
const casRetryLimit = 3

// Store is the ontology store. All exported methods are safe for
// concurrent use.
type Store struct {
	driver     driver.Driver
	classifier *taxonomy.Classifier
	logger     *slog.Logger
	locks      keyedMutex
	cache      *neighborhoodCache
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithNeighborhoodCache enables the short-TTL neighborhood cache.
func WithNeighborhoodCache(ttl time.Duration) Option {
	return func(s *Store) { s.cache = newNeighborhoodCache(ttl) }
}

// New creates a Store over the given driver and taxonomy classifier.
func New(d driver.Driver, classifier *taxonomy.Classifier, opts ...Option) *Store {
	s := &Store{
		driver:     d,
		classifier: classifier,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.classifier == nil {
		s.classifier = taxonomy.NewClassifier(nil)
	}
	return s
}

// Driver exposes the underlying persistence driver.
func (s *Store) Driver() driver.Driver { return s.driver }

// Classifier exposes the taxonomy classifier the store validates against.
func (s *Store) Classifier() *taxonomy.Classifier { return s.classifier }

// GetObject returns the version of the object's identity that is valid at
// asOf. The id may reference any version row of the chain; a zero asOf
// means now.
func (s *Store) GetObject(ctx context.Context, id string, asOf time.Time) (*types.Object, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	row, err := s.driver.GetObject(ctx, id)
	if err != nil {
		return nil, err
	}
	if row.IsValidAt(asOf) {
		return row, nil
	}
	chain, err := s.driver.GetChain(ctx, row.IdentityKey)
	if err != nil {
		return nil, err
	}
	for _, version := range chain {
		if version.IsValidAt(asOf) {
			return version, nil
		}
	}
	return nil, types.NewObjectNotFoundError(id)
}

// GetObjectByIdentity returns the identity's version valid at asOf.
func (s *Store) GetObjectByIdentity(ctx context.Context, identityKey string, asOf time.Time) (*types.Object, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	chain, err := s.driver.GetChain(ctx, identityKey)
	if err != nil {
		return nil, err
	}
	for _, version := range chain {
		if version.IsValidAt(asOf) {
			return version, nil
		}
	}
	return nil, types.NewObjectNotFoundError(identityKey)
}

// UpsertRequest carries the inputs of one upsert.
type UpsertRequest struct {
	Type            types.ObjectType
	IdentityKey     string
	Properties      types.Properties
	SourceDocuments []string
	Confidence      float64
	// Schema optionally validates the property bag before writing.
	Schema types.PropertySchema
}

// UpsertObject creates version 1 for a new identity, appends version+1
// when properties or confidence changed, and is a no-op for an unchanged
// identity. It returns the object id of the resulting current version.
func (s *Store) UpsertObject(ctx context.Context, req UpsertRequest) (string, error) {
	if req.IdentityKey == "" {
		return "", types.ErrEmptyIdentityKey
	}
	if req.Type == "" {
		return "", types.ErrEmptyObjectType
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return "", types.ErrOutOfRange
	}
	if req.Schema != nil {
		if err := req.Schema.Validate(req.Properties); err != nil {
			return "", err
		}
	}

	unlock := s.locks.lock(req.IdentityKey)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt <= casRetryLimit; attempt++ {
		id, err := s.tryUpsert(ctx, req)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, &types.ConflictError{}) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("upsert %s: retries exhausted: %w", req.IdentityKey, lastErr)
}

func (s *Store) tryUpsert(ctx context.Context, req UpsertRequest) (string, error) {
	chain, err := s.driver.GetChain(ctx, req.IdentityKey)
	if err != nil {
		return "", err
	}

	now := s.now()
	next := &types.Object{
		ID:              uuid.NewString(),
		Type:            req.Type,
		IdentityKey:     req.IdentityKey,
		Version:         1,
		ValidFrom:       now,
		SourceDocuments: append([]string(nil), req.SourceDocuments...),
		Confidence:      req.Confidence,
		Properties:      req.Properties.Clone(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	expected := 0
	if len(chain) > 0 {
		current := chain[len(chain)-1]
		if current.ValidUntil == nil &&
			current.Properties.Equal(req.Properties) &&
			current.Confidence == req.Confidence {
			// Unchanged: idempotent no-op.
			return current.ID, nil
		}
		expected = current.Version
		next.Version = current.Version + 1
	}

	if err := s.driver.TransitionVersion(ctx, req.IdentityKey, expected, now, next); err != nil {
		return "", err
	}

	s.invalidate(append(chainIDs(chain), next.ID)...)
	s.logger.Debug("upserted object",
		"identity_key", req.IdentityKey, "version", next.Version, "object_id", next.ID)
	return next.ID, nil
}

// LinkQuery filters a GetLinks traversal.
type LinkQuery struct {
	Types     []types.LinkType
	Direction types.Direction
	AsOf      time.Time
}

// GetLinks returns a lazy, finite, restartable sequence of the links valid
// at AsOf that touch the object, filtered by type and direction. Iterating
// again re-reads the driver. Errors surface through the second element;
// iteration stops after the first error.
func (s *Store) GetLinks(ctx context.Context, objectID string, q LinkQuery) iter.Seq2[*types.Link, error] {
	direction := q.Direction
	if direction == "" {
		direction = types.DirectionBoth
	}
	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = s.now()
	}

	var typeSet map[types.LinkType]struct{}
	if len(q.Types) > 0 {
		typeSet = make(map[types.LinkType]struct{}, len(q.Types))
		for _, t := range q.Types {
			typeSet[t] = struct{}{}
		}
	}

	return func(yield func(*types.Link, error) bool) {
		links, err := s.driver.LinksTouching(ctx, objectID)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, link := range links {
			if !link.IsValidAt(asOf) {
				continue
			}
			if typeSet != nil {
				if _, ok := typeSet[link.Type]; !ok {
					continue
				}
			}
			switch direction {
			case types.DirectionOut:
				if link.SourceID != objectID {
					continue
				}
			case types.DirectionIn:
				if link.TargetID != objectID {
					continue
				}
			}
			if !yield(link, nil) {
				return
			}
		}
	}
}

// CreateLinkRequest carries the inputs of one link creation.
type CreateLinkRequest struct {
	Type       types.LinkType
	SourceID   string
	TargetID   string
	Strength   float64
	Confidence float64
	Properties types.Properties
	// ValidFrom defaults to now.
	ValidFrom time.Time
}

// CreateLink records a relationship event. Both endpoints must be valid
// objects at the link's valid_from; an identical open
// (type, source, target, valid_from) tuple is a Conflict.
func (s *Store) CreateLink(ctx context.Context, req CreateLinkRequest) (*types.Link, error) {
	if !s.classifier.Known(req.Type) {
		return nil, fmt.Errorf("link type %q is not in the taxonomy", req.Type)
	}
	if req.Strength < 0 || req.Strength > 1 || req.Confidence < 0 || req.Confidence > 1 {
		return nil, types.ErrOutOfRange
	}

	validFrom := req.ValidFrom
	if validFrom.IsZero() {
		validFrom = s.now()
	}

	for _, endpoint := range []string{req.SourceID, req.TargetID} {
		obj, err := s.driver.GetObject(ctx, endpoint)
		if err != nil {
			if errors.Is(err, &types.NotFoundError{}) {
				return nil, &types.InvalidReferenceError{ObjectID: endpoint, Reason: "object does not exist"}
			}
			return nil, err
		}
		if !obj.IsValidAt(validFrom) {
			return nil, &types.InvalidReferenceError{ObjectID: endpoint, Reason: "object not valid at link valid_from"}
		}
	}

	// Serialize duplicate checks per source so two racing creations of the
	// same tuple cannot both pass.
	unlock := s.locks.lock(req.SourceID)
	defer unlock()

	existing, err := s.driver.LinksTouching(ctx, req.SourceID)
	if err != nil {
		return nil, err
	}
	for _, link := range existing {
		if link.Type == req.Type && link.SourceID == req.SourceID &&
			link.TargetID == req.TargetID && link.ValidUntil == nil &&
			link.ValidFrom.Equal(validFrom) {
			return nil, &types.ConflictError{
				Key:     link.ID,
				Message: "identical open link already exists",
			}
		}
	}

	link := &types.Link{
		ID:         uuid.NewString(),
		Type:       req.Type,
		SourceID:   req.SourceID,
		TargetID:   req.TargetID,
		ValidFrom:  validFrom,
		Strength:   req.Strength,
		Confidence: req.Confidence,
		Properties: req.Properties.Clone(),
		CreatedAt:  s.now(),
	}
	if err := s.driver.PutLink(ctx, link); err != nil {
		return nil, err
	}

	s.invalidate(req.SourceID, req.TargetID)
	s.logger.Debug("created link", "link_id", link.ID, "link_type", link.Type,
		"source", link.SourceID, "target", link.TargetID)
	return link, nil
}

// CloseLink ends a relationship at asOf (defaults to now). The close
// instant must fall after the link's valid_from.
func (s *Store) CloseLink(ctx context.Context, linkID string, asOf time.Time) error {
	if asOf.IsZero() {
		asOf = s.now()
	}
	link, err := s.driver.GetLink(ctx, linkID)
	if err != nil {
		return err
	}
	if !asOf.After(link.ValidFrom) {
		return types.ErrInvalidInterval
	}
	if err := s.driver.CloseLink(ctx, linkID, asOf); err != nil {
		return err
	}
	s.invalidate(link.SourceID, link.TargetID)
	return nil
}

// Neighborhood returns the objects and valid links within the given hop
// count of the origin, in deterministic order. Results may be served from
// the short-TTL cache; every mutation touching a member invalidates it.
func (s *Store) Neighborhood(ctx context.Context, objectID string, hops int, asOf time.Time) (*types.GraphView, error) {
	if hops < 1 {
		hops = 1
	}
	if asOf.IsZero() {
		asOf = s.now()
	}

	if s.cache != nil {
		if view, ok := s.cache.get(objectID, hops, asOf); ok {
			return view, nil
		}
	}

	origin, err := s.GetObject(ctx, objectID, asOf)
	if err != nil {
		return nil, err
	}

	visited := map[string]*types.Object{origin.ID: origin}
	edges := map[string]*types.Link{}
	frontier := []string{origin.ID}

	for depth := 0; depth < hops && len(frontier) > 0; depth++ {
		sort.Strings(frontier)
		var next []string
		for _, id := range frontier {
			for link, err := range s.GetLinks(ctx, id, LinkQuery{AsOf: asOf}) {
				if err != nil {
					return nil, err
				}
				edges[link.ID] = link
				other := link.Other(id)
				if _, seen := visited[other]; seen {
					continue
				}
				obj, err := s.GetObject(ctx, other, asOf)
				if err != nil {
					if errors.Is(err, &types.NotFoundError{}) {
						continue
					}
					return nil, err
				}
				visited[other] = obj
				next = append(next, other)
			}
		}
		frontier = next
	}

	view := &types.GraphView{
		Nodes: make([]*types.Object, 0, len(visited)),
		Edges: make([]*types.Link, 0, len(edges)),
	}
	for _, obj := range visited {
		view.Nodes = append(view.Nodes, obj)
	}
	for _, link := range edges {
		view.Edges = append(view.Edges, link)
	}
	sort.Slice(view.Nodes, func(i, j int) bool { return view.Nodes[i].ID < view.Nodes[j].ID })
	sort.Slice(view.Edges, func(i, j int) bool { return view.Edges[i].ID < view.Edges[j].ID })

	if s.cache != nil {
		s.cache.put(objectID, hops, asOf, view)
	}
	return view, nil
}

// ScanObjects lists all objects of a type valid at asOf.
func (s *Store) ScanObjects(ctx context.Context, objectType types.ObjectType, asOf time.Time) ([]*types.Object, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	return s.driver.ScanObjects(ctx, objectType, asOf)
}

func (s *Store) invalidate(objectIDs ...string) {
	if s.cache == nil {
		return
	}
	s.cache.invalidate(objectIDs...)
}

func chainIDs(chain []*types.Object) []string {
	out := make([]string, 0, len(chain))
	for _, obj := range chain {
		out = append(out, obj.ID)
	}
	return out
}

// keyedMutex serializes writers per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*lockEntry)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
