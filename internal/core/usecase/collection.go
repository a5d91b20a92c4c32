package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

// CollectionConfig describes where a collection runs.
type CollectionConfig struct {
	Name string
	// Local collections are in-memory; every mutation on them is privileged.
	Local bool
	// ClientSide collections sit on the untrusted side of a boundary and
	// forward writes to an authoritative server.
	ClientSide bool
	// DisableCollectionNames drops "in <collection> <kind>" from messages.
	DisableCollectionNames bool
	// CleanDefaults replace ports.DefaultCleanOptions for this collection.
	CleanDefaults *ports.CleanOptions
	// Store overrides the catalog's storage engine.
	Store ports.DocumentStore
}

// MutationResult is what a successful write reports.
type MutationResult struct {
	// ID is the inserted document's id. Upserts that inserted set it too.
	ID       string
	Affected int64
}

// Collection is a named set of documents behind the mutation pipeline.
type Collection struct {
	cfg      CollectionConfig
	registry *SchemaRegistry
	store    ports.DocumentStore
	audit    ports.AuditRepository
	log      *zap.Logger
}

func NewCollection(cfg CollectionConfig, adapters AdapterList, store ports.DocumentStore, audit ports.AuditRepository, log *zap.Logger) *Collection {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Store != nil {
		store = cfg.Store
	}
	log = log.With(zap.String("collection", cfg.Name))
	return &Collection{
		cfg:      cfg,
		registry: NewSchemaRegistry(adapters, log),
		store:    store,
		audit:    audit,
		log:      log,
	}
}

func (c *Collection) Name() string { return c.cfg.Name }

func (c *Collection) Config() CollectionConfig { return c.cfg }

func (c *Collection) Registry() *SchemaRegistry { return c.registry }

// AttachSchema adds a schema and makes sure the storage engine enforces its
// unique fields.
func (c *Collection) AttachSchema(ctx context.Context, definition any, opts AttachOptions) error {
	schema, first, err := c.registry.Attach(definition, opts)
	if err != nil {
		return err
	}
	if first {
		c.log.Info("collection initialised",
			zap.String("adapter", schema.Adapter()),
			zap.Bool("local", c.cfg.Local),
			zap.Bool("client_side", c.cfg.ClientSide))
	}
	if c.cfg.ClientSide {
		return nil
	}
	for _, s := range c.registry.Schemas() {
		for _, key := range s.UniqueKeys() {
			if err := c.store.EnsureUniqueIndex(ctx, c.cfg.Name, domain.UniqueIndexPrefix+key, key); err != nil {
				return domain.ErrStorage.Wrap(err)
			}
		}
	}
	return nil
}

func (c *Collection) ResolveSchema(doc domain.Document, opts *domain.MutationOptions, selector any) (ports.Schema, error) {
	return c.registry.Resolve(doc, opts, domain.NormalizeSelector(selector))
}

func (c *Collection) Insert(ctx context.Context, doc domain.Document, opts *domain.MutationOptions) (string, error) {
	res, err := c.Mutate(ctx, domain.MutationRequest{Kind: domain.Insert, Doc: doc, Options: opts})
	return res.ID, err
}

func (c *Collection) Update(ctx context.Context, selector any, modifier domain.Document, opts *domain.MutationOptions) (int64, error) {
	res, err := c.Mutate(ctx, domain.MutationRequest{Kind: domain.Update, Selector: selector, Modifier: modifier, Options: opts})
	return res.Affected, err
}

func (c *Collection) Upsert(ctx context.Context, selector any, modifier domain.Document, opts *domain.MutationOptions) (MutationResult, error) {
	return c.Mutate(ctx, domain.MutationRequest{Kind: domain.Upsert, Selector: selector, Modifier: modifier, Options: opts})
}

// Remove deletes matching documents. Removal is not schema checked.
func (c *Collection) Remove(ctx context.Context, selector any) (int64, error) {
	n, err := c.store.Remove(ctx, c.cfg.Name, domain.NormalizeSelector(selector))
	if err != nil {
		return 0, c.storageError(err)
	}
	c.record(ctx, domain.Remove, domain.SelectorID(selector), n)
	return n, nil
}

func (c *Collection) Find(ctx context.Context, selector any, limit int) ([]domain.Document, error) {
	docs, err := c.store.Find(ctx, c.cfg.Name, domain.NormalizeSelector(selector), limit)
	if err != nil {
		return nil, c.storageError(err)
	}
	return docs, nil
}

func (c *Collection) FindOne(ctx context.Context, selector any) (domain.Document, error) {
	docs, err := c.Find(ctx, selector, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrNotFound
	}
	return docs[0], nil
}

// Mutate admits req through the gates that apply to the caller in ctx and
// hands the result to the storage engine.
func (c *Collection) Mutate(ctx context.Context, req domain.MutationRequest) (MutationResult, error) {
	if req.Kind == domain.Remove {
		n, err := c.Remove(ctx, req.Selector)
		return MutationResult{Affected: n}, err
	}
	admitted, err := c.admit(ctx, req)
	if err != nil {
		return MutationResult{}, err
	}
	return c.commit(ctx, admitted)
}

// Callback receives the outcome of MutateAsync.
type Callback func(MutationResult, error)

// MutateAsync validates req on the calling goroutine and performs the
// storage write in the background, reporting through cb. Validation
// failures reach cb before MutateAsync returns. With a nil cb it behaves
// like Mutate and the error is returned instead.
func (c *Collection) MutateAsync(ctx context.Context, req domain.MutationRequest, cb Callback) error {
	if cb == nil {
		_, err := c.Mutate(ctx, req)
		return err
	}
	if req.Kind == domain.Remove {
		go func() { cb(c.Mutate(ctx, req)) }()
		return nil
	}
	admitted, err := c.admit(ctx, req)
	if err != nil {
		cb(MutationResult{}, err)
		return nil
	}
	go func() { cb(c.commit(ctx, admitted)) }()
	return nil
}

func (c *Collection) commit(ctx context.Context, a admitted) (MutationResult, error) {
	req := a.req
	var res MutationResult
	switch req.Kind {
	case domain.Insert:
		id, err := c.store.Insert(ctx, c.cfg.Name, req.Doc)
		if err != nil {
			return res, c.translate(err, a)
		}
		res = MutationResult{ID: id, Affected: 1}
	default:
		opts := ports.UpdateOptions{Upsert: req.IsUpsert()}
		if req.Options != nil {
			opts.Multi = req.Options.Multi
		}
		out, err := c.store.Update(ctx, c.cfg.Name, domain.NormalizeSelector(req.Selector), req.Modifier, opts)
		if err != nil {
			return res, c.translate(err, a)
		}
		res = MutationResult{ID: out.InsertedID, Affected: out.Matched}
	}
	docID := res.ID
	if docID == "" {
		docID = domain.SelectorID(req.Selector)
	}
	c.record(ctx, req.Kind, docID, res.Affected)
	return res, nil
}

func (c *Collection) record(ctx context.Context, kind domain.MutationKind, docID string, affected int64) {
	if c.audit == nil {
		return
	}
	id := domain.IdentityFrom(ctx)
	err := c.audit.Log(ctx, domain.AuditEvent{
		Collection: c.cfg.Name,
		DocumentID: docID,
		Action:     kind.String(),
		Actor:      id.UserID,
		Trusted:    id.Trusted,
		Affected:   affected,
		At:         time.Now().UTC(),
	})
	if err != nil {
		c.log.Warn("audit log failed", zap.Error(err))
	}
}

func (c *Collection) storageError(err error) error {
	var be *domain.BoundaryError
	if errors.As(err, &be) || domain.ErrStorage.Has(err) {
		return err
	}
	c.log.Error("storage failure", zap.Error(err))
	return domain.ErrStorage.Wrap(err)
}
