package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/soundprediction/ontoscore/pkg/types"
)

// key prefixes: one keyspace per record kind plus secondary indexes.
const (
	prefixObject    = "o:" // o:<object_id> -> object json
	prefixChain     = "c:" // c:<identity_key>:<version %010d> -> object_id
	prefixObjType   = "t:" // t:<object_type>:<object_id> -> nil
	prefixLink      = "l:" // l:<link_id> -> link json
	prefixIncident  = "e:" // e:<object_id>:<link_id> -> nil
	prefixLinkType  = "y:" // y:<link_type>:<link_id> -> nil
)

// BadgerDriver is an embedded persistent Driver on top of dgraph-io/badger.
// Badger transactions make the version transition atomic; concurrent
// transitions on one identity surface as Conflict via badger's own
// optimistic conflict detection.
type BadgerDriver struct {
	db *badger.DB
}

// NewBadgerDriver opens (or creates) a badger database at path. An empty
// path opens an in-memory database, useful for tests.
func NewBadgerDriver(path string) (*BadgerDriver, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &BadgerDriver{db: db}, nil
}

func (b *BadgerDriver) Provider() Provider { return ProviderBadger }

func (b *BadgerDriver) Close() error { return b.db.Close() }

func chainKey(identityKey string, version int) []byte {
	return []byte(fmt.Sprintf("%s%s:%010d", prefixChain, identityKey, version))
}

func getJSON[T any](txn *badger.Txn, key []byte) (*T, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	var out T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &out)
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func (b *BadgerDriver) GetObject(ctx context.Context, objectID string) (*types.Object, error) {
	var obj *types.Object
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		obj, err = getJSON[types.Object](txn, []byte(prefixObject+objectID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, types.NewObjectNotFoundError(objectID)
	}
	if err != nil {
		return nil, fmt.Errorf("badger get object: %w", err)
	}
	return obj, nil
}

func (b *BadgerDriver) GetChain(ctx context.Context, identityKey string) ([]*types.Object, error) {
	var out []*types.Object
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixChain + identityKey + ":")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var objectID string
			if err := it.Item().Value(func(val []byte) error {
				objectID = string(val)
				return nil
			}); err != nil {
				return err
			}
			obj, err := getJSON[types.Object](txn, []byte(prefixObject+objectID))
			if err != nil {
				return err
			}
			out = append(out, obj)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger get chain: %w", err)
	}
	return out, nil
}

func (b *BadgerDriver) TransitionVersion(ctx context.Context, identityKey string, expectedVersion int, closeAt time.Time, next *types.Object) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		if expectedVersion == 0 {
			// Chain must not exist yet.
			it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefixChain + identityKey + ":")})
			exists := false
			for it.Rewind(); it.Valid(); {
				exists = true
				break
			}
			it.Close()
			if exists {
				return &types.ConflictError{Key: identityKey, Message: "chain already exists"}
			}
		} else {
			currentID, err := txn.Get(chainKey(identityKey, expectedVersion))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return &types.ConflictError{Key: identityKey, Message: "version mismatch"}
			}
			if err != nil {
				return err
			}
			// The expected version must still be the open head.
			if _, err := txn.Get(chainKey(identityKey, expectedVersion+1)); err == nil {
				return &types.ConflictError{Key: identityKey, Message: "version mismatch"}
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			var objectID string
			if err := currentID.Value(func(val []byte) error {
				objectID = string(val)
				return nil
			}); err != nil {
				return err
			}
			current, err := getJSON[types.Object](txn, []byte(prefixObject+objectID))
			if err != nil {
				return err
			}
			if current.ValidUntil != nil {
				return &types.ConflictError{Key: identityKey, Message: "current version already closed"}
			}
			until := closeAt
			current.ValidUntil = &until
			current.UpdatedAt = closeAt
			if err := setJSON(txn, []byte(prefixObject+current.ID), current); err != nil {
				return err
			}
		}

		if err := setJSON(txn, []byte(prefixObject+next.ID), next); err != nil {
			return err
		}
		if err := txn.Set(chainKey(identityKey, next.Version), []byte(next.ID)); err != nil {
			return err
		}
		return txn.Set([]byte(prefixObjType+string(next.Type)+":"+next.ID), nil)
	})
	if errors.Is(err, badger.ErrConflict) {
		return &types.ConflictError{Key: identityKey, Message: "concurrent transition"}
	}
	return err
}

func (b *BadgerDriver) ScanObjects(ctx context.Context, objectType types.ObjectType, asOf time.Time) ([]*types.Object, error) {
	var out []*types.Object
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixObjType + string(objectType) + ":")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			objectID := string(it.Item().Key()[len(prefix):])
			obj, err := getJSON[types.Object](txn, []byte(prefixObject+objectID))
			if err != nil {
				return err
			}
			if obj.IsValidAt(asOf) {
				out = append(out, obj)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger scan objects: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *BadgerDriver) GetLink(ctx context.Context, linkID string) (*types.Link, error) {
	var link *types.Link
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		link, err = getJSON[types.Link](txn, []byte(prefixLink+linkID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, types.NewLinkNotFoundError(linkID)
	}
	if err != nil {
		return nil, fmt.Errorf("badger get link: %w", err)
	}
	return link, nil
}

func (b *BadgerDriver) PutLink(ctx context.Context, link *types.Link) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(prefixLink + link.ID)); err == nil {
			return &types.ConflictError{Key: link.ID, Message: "link id already exists"}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := setJSON(txn, []byte(prefixLink+link.ID), link); err != nil {
			return err
		}
		if err := txn.Set([]byte(prefixIncident+link.SourceID+":"+link.ID), nil); err != nil {
			return err
		}
		if link.TargetID != link.SourceID {
			if err := txn.Set([]byte(prefixIncident+link.TargetID+":"+link.ID), nil); err != nil {
				return err
			}
		}
		return txn.Set([]byte(prefixLinkType+string(link.Type)+":"+link.ID), nil)
	})
}

func (b *BadgerDriver) CloseLink(ctx context.Context, linkID string, asOf time.Time) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		link, err := getJSON[types.Link](txn, []byte(prefixLink+linkID))
		if err != nil {
			return err
		}
		until := asOf
		link.ValidUntil = &until
		return setJSON(txn, []byte(prefixLink+linkID), link)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return types.NewLinkNotFoundError(linkID)
	}
	return err
}

func (b *BadgerDriver) LinksTouching(ctx context.Context, objectID string) ([]*types.Link, error) {
	var out []*types.Link
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixIncident + objectID + ":")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			linkID := string(it.Item().Key()[len(prefix):])
			link, err := getJSON[types.Link](txn, []byte(prefixLink+linkID))
			if err != nil {
				return err
			}
			out = append(out, link)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger links touching: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *BadgerDriver) ScanLinks(ctx context.Context, linkType types.LinkType, asOf time.Time) ([]*types.Link, error) {
	var out []*types.Link
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixLinkType + string(linkType) + ":")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			linkID := string(it.Item().Key()[len(prefix):])
			link, err := getJSON[types.Link](txn, []byte(prefixLink+linkID))
			if err != nil {
				return err
			}
			if link.IsValidAt(asOf) {
				out = append(out, link)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger scan links: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
