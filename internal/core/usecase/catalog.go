package usecase

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

// Catalog owns the collections of one deployment by name.
type Catalog struct {
	adapters AdapterList
	store    ports.DocumentStore
	audit    ports.AuditRepository
	log      *zap.Logger

	mu          sync.RWMutex
	collections map[string]*Collection
}

func NewCatalog(adapters AdapterList, store ports.DocumentStore, audit ports.AuditRepository, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{
		adapters:    adapters,
		store:       store,
		audit:       audit,
		log:         log,
		collections: make(map[string]*Collection),
	}
}

// Define creates the collection described by cfg.
func (c *Catalog) Define(cfg CollectionConfig) (*Collection, error) {
	if cfg.Name == "" {
		return nil, domain.ErrConfiguration.New("collection name is required")
	}
	if cfg.Local && cfg.ClientSide {
		return nil, domain.ErrConfiguration.New("collection %q cannot be both local and client side", cfg.Name)
	}
	if cfg.Store == nil && c.store == nil {
		return nil, domain.ErrConfiguration.New("collection %q has no storage engine", cfg.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.collections[cfg.Name]; ok {
		return nil, domain.ErrConfiguration.New("collection %q already defined", cfg.Name)
	}
	coll := NewCollection(cfg, c.adapters, c.store, c.audit, c.log)
	c.collections[cfg.Name] = coll
	return coll, nil
}

func (c *Catalog) Collection(name string) (*Collection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coll, ok := c.collections[name]
	return coll, ok
}

func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.collections))
	for name := range c.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
