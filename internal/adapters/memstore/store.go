// Package memstore is an in-memory document store for local collections and
// tests. Documents are copied on the way in and out.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/docgate/internal/core/docops"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

type collection struct {
	docs  map[string]domain.Document
	order []string
	// unique maps index name to field path.
	unique map[string]string
}

type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

var _ ports.DocumentStore = (*Store)(nil)

func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) NewID() string { return uuid.NewString() }

func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]domain.Document), unique: make(map[string]string)}
		s.collections[name] = c
	}
	return c
}

func (s *Store) Insert(_ context.Context, name string, doc domain.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(name)
	d := docops.CloneDocument(doc)
	if d == nil {
		d = domain.Document{}
	}
	id, err := c.assignID(d, s.NewID)
	if err != nil {
		return "", err
	}
	if err := c.checkUnique(name, d, ""); err != nil {
		return "", err
	}
	c.put(id, d)
	return id, nil
}

func (c *collection) assignID(d domain.Document, newID func() string) (string, error) {
	raw, ok := d[domain.IDField]
	if !ok || raw == nil {
		id := newID()
		d[domain.IDField] = id
		return id, nil
	}
	id, ok := raw.(string)
	if !ok {
		id = fmt.Sprint(raw)
	}
	if _, exists := c.docs[id]; exists {
		return "", &domain.DuplicateKeyError{Index: "_id_", Value: id}
	}
	return id, nil
}

func (c *collection) put(id string, d domain.Document) {
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = d
}

// checkUnique fails when d shares a unique value with any document but self.
func (c *collection) checkUnique(name string, d domain.Document, self string) error {
	indexes := make([]string, 0, len(c.unique))
	for idx := range c.unique {
		indexes = append(indexes, idx)
	}
	sort.Strings(indexes)
	for _, idx := range indexes {
		v, ok := docops.Get(d, c.unique[idx])
		if !ok || v == nil {
			continue
		}
		for _, id := range c.order {
			if id == self {
				continue
			}
			if other, ok := docops.Get(c.docs[id], c.unique[idx]); ok && docops.Equal(other, v) {
				return &domain.DuplicateKeyError{Collection: name, Index: idx, Value: v}
			}
		}
	}
	return nil
}

func (c *collection) match(selector domain.Document, limit int) []string {
	var ids []string
	for _, id := range c.order {
		if docops.Matches(c.docs[id], selector) {
			ids = append(ids, id)
			if limit > 0 && len(ids) == limit {
				break
			}
		}
	}
	return ids
}

func (s *Store) Update(_ context.Context, name string, selector, modifier domain.Document, opts ports.UpdateOptions) (ports.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(name)

	limit := 1
	if opts.Multi {
		limit = 0
	}
	ids := c.match(selector, limit)

	if len(ids) == 0 {
		if !opts.Upsert {
			return ports.UpdateResult{}, nil
		}
		d := docops.FlattenSelector(selector)
		if err := docops.Apply(d, modifier, true); err != nil {
			return ports.UpdateResult{}, err
		}
		id, err := c.assignID(d, s.NewID)
		if err != nil {
			return ports.UpdateResult{}, err
		}
		if err := c.checkUnique(name, d, ""); err != nil {
			return ports.UpdateResult{}, err
		}
		c.put(id, d)
		return ports.UpdateResult{Matched: 1, InsertedID: id}, nil
	}

	updated := make(map[string]domain.Document, len(ids))
	for _, id := range ids {
		d := docops.CloneDocument(c.docs[id])
		if err := docops.Apply(d, docops.CloneDocument(modifier), false); err != nil {
			return ports.UpdateResult{}, err
		}
		if err := c.checkUnique(name, d, id); err != nil {
			return ports.UpdateResult{}, err
		}
		updated[id] = d
	}
	for id, d := range updated {
		c.docs[id] = d
	}
	return ports.UpdateResult{Matched: int64(len(ids))}, nil
}

func (s *Store) Remove(_ context.Context, name string, selector domain.Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(name)
	ids := c.match(selector, 0)
	if len(ids) == 0 {
		return 0, nil
	}
	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
		delete(c.docs, id)
	}
	kept := c.order[:0]
	for _, id := range c.order {
		if !gone[id] {
			kept = append(kept, id)
		}
	}
	c.order = kept
	return int64(len(ids)), nil
}

func (s *Store) Find(_ context.Context, name string, selector domain.Document, limit int) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, nil
	}
	ids := c.match(selector, limit)
	out := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, docops.CloneDocument(c.docs[id]))
	}
	return out, nil
}

func (s *Store) EnsureUniqueIndex(_ context.Context, name, index, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(name)
	if existing, ok := c.unique[index]; ok && existing == field {
		return nil
	}
	seen := make([]any, 0, len(c.order))
	for _, id := range c.order {
		v, ok := docops.Get(c.docs[id], field)
		if !ok || v == nil {
			continue
		}
		for _, prev := range seen {
			if docops.Equal(prev, v) {
				return &domain.DuplicateKeyError{Collection: name, Index: index, Value: v}
			}
		}
		seen = append(seen, v)
	}
	c.unique[index] = field
	return nil
}
