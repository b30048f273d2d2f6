package driver

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/soundprediction/ontoscore/pkg/types"
)

// MemoryDriver is the in-process Driver used for tests and embedded
// deployments. All methods are safe for concurrent use; version
// transitions take the write lock, making the compare-and-swap atomic.
type MemoryDriver struct {
	mu      sync.RWMutex
	objects map[string]*types.Object   // object_id -> version row
	chains  map[string][]string        // identity_key -> object ids, ascending version
	byType  map[types.ObjectType][]string
	links   map[string]*types.Link     // link_id -> link
	touch   map[string][]string        // object_id -> incident link ids
	byLType map[types.LinkType][]string
}

// NewMemoryDriver creates an empty in-memory driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		objects: make(map[string]*types.Object),
		chains:  make(map[string][]string),
		byType:  make(map[types.ObjectType][]string),
		links:   make(map[string]*types.Link),
		touch:   make(map[string][]string),
		byLType: make(map[types.LinkType][]string),
	}
}

func (m *MemoryDriver) Provider() Provider { return ProviderMemory }

func (m *MemoryDriver) Close() error { return nil }

func (m *MemoryDriver) GetObject(ctx context.Context, objectID string) (*types.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[objectID]
	if !ok {
		return nil, types.NewObjectNotFoundError(objectID)
	}
	cp := *obj
	return &cp, nil
}

func (m *MemoryDriver) GetChain(ctx context.Context, identityKey string) ([]*types.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.chains[identityKey]
	out := make([]*types.Object, 0, len(ids))
	for _, id := range ids {
		cp := *m.objects[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryDriver) TransitionVersion(ctx context.Context, identityKey string, expectedVersion int, closeAt time.Time, next *types.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.chains[identityKey]
	if expectedVersion == 0 {
		if len(ids) > 0 {
			return &types.ConflictError{Key: identityKey, Message: "chain already exists"}
		}
	} else {
		if len(ids) == 0 {
			return &types.ConflictError{Key: identityKey, Message: "chain does not exist"}
		}
		current := m.objects[ids[len(ids)-1]]
		if current.Version != expectedVersion || current.ValidUntil != nil {
			return &types.ConflictError{Key: identityKey, Message: "version mismatch"}
		}
		closed := *current
		until := closeAt
		closed.ValidUntil = &until
		closed.UpdatedAt = closeAt
		m.objects[closed.ID] = &closed
	}

	cp := *next
	m.objects[cp.ID] = &cp
	m.chains[identityKey] = append(ids, cp.ID)
	m.byType[cp.Type] = append(m.byType[cp.Type], cp.ID)
	return nil
}

func (m *MemoryDriver) ScanObjects(ctx context.Context, objectType types.ObjectType, asOf time.Time) ([]*types.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*types.Object
	for _, id := range m.byType[objectType] {
		obj := m.objects[id]
		if obj.IsValidAt(asOf) {
			cp := *obj
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryDriver) GetLink(ctx context.Context, linkID string) (*types.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, ok := m.links[linkID]
	if !ok {
		return nil, types.NewLinkNotFoundError(linkID)
	}
	cp := *link
	return &cp, nil
}

func (m *MemoryDriver) PutLink(ctx context.Context, link *types.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[link.ID]; exists {
		return &types.ConflictError{Key: link.ID, Message: "link id already exists"}
	}
	cp := *link
	m.links[cp.ID] = &cp
	m.touch[cp.SourceID] = append(m.touch[cp.SourceID], cp.ID)
	if cp.TargetID != cp.SourceID {
		m.touch[cp.TargetID] = append(m.touch[cp.TargetID], cp.ID)
	}
	m.byLType[cp.Type] = append(m.byLType[cp.Type], cp.ID)
	return nil
}

func (m *MemoryDriver) CloseLink(ctx context.Context, linkID string, asOf time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[linkID]
	if !ok {
		return types.NewLinkNotFoundError(linkID)
	}
	cp := *link
	until := asOf
	cp.ValidUntil = &until
	m.links[linkID] = &cp
	return nil
}

func (m *MemoryDriver) LinksTouching(ctx context.Context, objectID string) ([]*types.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.touch[objectID]
	out := make([]*types.Link, 0, len(ids))
	for _, id := range ids {
		cp := *m.links[id]
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryDriver) ScanLinks(ctx context.Context, linkType types.LinkType, asOf time.Time) ([]*types.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*types.Link
	for _, id := range m.byLType[linkType] {
		link := m.links[id]
		if link.IsValidAt(asOf) {
			cp := *link
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
