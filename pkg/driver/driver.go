package driver

import (
	"context"
	"time"

	"github.com/soundprediction/ontoscore/pkg/types"
)

// Provider identifies the backing persistence engine.
type Provider string

const (
	ProviderMemory Provider = "memory"
	ProviderBadger Provider = "badger"
	ProviderNeo4j  Provider = "neo4j"
)

// Driver is the persistence contract the ontology store requires: point-in-
// time reads, type-range scans, and atomic single-identity version
// transitions via compare-and-swap on the chain's current version.
type Driver interface {
	// GetObject retrieves one version row by its globally unique object id.
	GetObject(ctx context.Context, objectID string) (*types.Object, error)

	// GetChain retrieves every version of an identity in ascending version
	// order. An unknown identity yields an empty slice, not an error.
	GetChain(ctx context.Context, identityKey string) ([]*types.Object, error)

	// TransitionVersion atomically advances an identity chain.
	// expectedVersion == 0 creates version 1 and fails Conflict if the
	// chain already exists. Otherwise the currently open version must carry
	// expectedVersion; it is closed at closeAt and next is appended.
	// A stale expectedVersion fails Conflict.
	TransitionVersion(ctx context.Context, identityKey string, expectedVersion int, closeAt time.Time, next *types.Object) error

	// ScanObjects returns all versions of the given type valid at asOf.
	ScanObjects(ctx context.Context, objectType types.ObjectType, asOf time.Time) ([]*types.Object, error)

	// GetLink retrieves a link by id.
	GetLink(ctx context.Context, linkID string) (*types.Link, error)

	// PutLink stores a new link row.
	PutLink(ctx context.Context, link *types.Link) error

	// CloseLink sets the link's valid_until.
	CloseLink(ctx context.Context, linkID string, asOf time.Time) error

	// LinksTouching returns every link row incident to the object,
	// regardless of validity or direction.
	LinksTouching(ctx context.Context, objectID string) ([]*types.Link, error)

	// ScanLinks returns all links of the given type valid at asOf.
	ScanLinks(ctx context.Context, linkType types.LinkType, asOf time.Time) ([]*types.Link, error)

	// Provider reports the backing engine.
	Provider() Provider

	// Close releases resources held by the driver.
	Close() error
}
