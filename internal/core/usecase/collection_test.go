package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/atvirokodosprendimai/docgate/internal/adapters/jsonschema"
	"github.com/atvirokodosprendimai/docgate/internal/adapters/memstore"
	"github.com/atvirokodosprendimai/docgate/internal/adapters/simpleschema"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
)

func ptr[T any](v T) *T { return &v }

func testAdapters() AdapterList {
	return AdapterList{simpleschema.NewAdapter(), jsonschema.NewAdapter()}
}

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (a *recordingAudit) Log(_ context.Context, e domain.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func (a *recordingAudit) all() []domain.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.AuditEvent(nil), a.events...)
}

func newCollection(t *testing.T, cfg CollectionConfig, def any) (*Collection, *memstore.Store, *recordingAudit) {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "books"
	}
	store := memstore.New()
	audit := &recordingAudit{}
	coll := NewCollection(cfg, testAdapters(), store, audit, zaptest.NewLogger(t))
	if def != nil {
		require.NoError(t, coll.AttachSchema(context.Background(), def, AttachOptions{}))
	}
	return coll, store, audit
}

func trusted() context.Context {
	return domain.TrustedContext(context.Background(), "server")
}

func untrusted(user string) context.Context {
	return domain.WithIdentity(context.Background(), domain.Identity{UserID: user})
}

func fieldKinds(list []domain.FieldError) map[string]domain.ErrorKind {
	out := make(map[string]domain.ErrorKind, len(list))
	for _, fe := range list {
		out[fe.Name] = fe.Type
	}
	return out
}

func requireValidationError(t *testing.T, err error) *domain.ValidationError {
	t.Helper()
	require.Error(t, err)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr
}

func TestScenarioRequiredField(t *testing.T) {
	coll, _, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title":  {Type: simpleschema.String},
		"copies": {Type: simpleschema.Number, Min: ptr(0.0)},
	})

	_, err := coll.Insert(trusted(), domain.Document{"title": "X"}, nil)
	verr := requireValidationError(t, err)
	require.Len(t, verr.InvalidKeys, 1)
	require.Equal(t, "copies", verr.InvalidKeys[0].Name)
	require.Equal(t, domain.KindRequired, verr.InvalidKeys[0].Type)
	require.Equal(t, "Copies is required in books insert", verr.Message)
}

func TestScenarioUniqueField(t *testing.T) {
	coll, _, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title": {Type: simpleschema.String},
		"isbn":  {Type: simpleschema.String, Unique: true},
	})
	ctx := trusted()

	_, err := coll.Insert(ctx, domain.Document{"title": "A", "isbn": "z"}, nil)
	require.NoError(t, err)

	_, err = coll.Insert(ctx, domain.Document{"title": "B", "isbn": "z"}, nil)
	verr := requireValidationError(t, err)
	require.Equal(t, string(domain.KindNotUnique), verr.Code)
	require.Equal(t, []domain.FieldError{{
		Name:    "isbn",
		Type:    domain.KindNotUnique,
		Value:   "z",
		Message: "Isbn must be unique",
	}}, verr.InvalidKeys)
	require.Equal(t, verr.InvalidKeys, verr.Context.ValidationErrors())
}

func TestScenarioSelectorDefaults(t *testing.T) {
	coll, store, _ := newCollection(t, CollectionConfig{}, nil)
	ctx := context.Background()
	require.NoError(t, coll.AttachSchema(ctx, simpleschema.Definition{
		"title": {Type: simpleschema.String},
		"type":  {Type: simpleschema.String},
		"price": {Type: simpleschema.Number, DefaultValue: 1.0},
	}, AttachOptions{Selector: map[string]any{"type": "simple"}}))
	require.NoError(t, coll.AttachSchema(ctx, simpleschema.Definition{
		"title": {Type: simpleschema.String},
		"type":  {Type: simpleschema.String},
		"price": {Type: simpleschema.Number, DefaultValue: 5.0},
	}, AttachOptions{Selector: map[string]any{"type": "variant"}}))

	id, err := coll.Insert(trusted(), domain.Document{"title": "p", "type": "variant"}, nil)
	require.NoError(t, err)

	docs, err := store.Find(ctx, "books", domain.Document{domain.IDField: id}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.EqualValues(t, 5, docs[0]["price"])
}

func TestScenarioDenyUpdate(t *testing.T) {
	coll, _, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title":  {Type: simpleschema.String},
		"copies": {Type: simpleschema.Number, DenyUpdate: true},
	})
	ctx := trusted()

	id, err := coll.Insert(ctx, domain.Document{"title": "t", "copies": 1}, nil)
	require.NoError(t, err)

	_, err = coll.Update(ctx, id, domain.Document{"$set": map[string]any{"copies": 2}}, nil)
	verr := requireValidationError(t, err)
	require.Equal(t, domain.KindUpdateNotAllowed, fieldKinds(verr.InvalidKeys)["copies"])
	require.Contains(t, verr.Message, "in books update")
}

func TestScenarioUpsertFoldsSelector(t *testing.T) {
	coll, store, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title":  {Type: simpleschema.String},
		"copies": {Type: simpleschema.Number},
	})
	ctx := trusted()

	res, err := coll.Upsert(ctx, map[string]any{"title": "t"}, domain.Document{"$set": map[string]any{"copies": 1}}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.ID)
	require.EqualValues(t, 1, res.Affected)

	docs, err := store.Find(ctx, "books", domain.Document{domain.IDField: res.ID}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "t", docs[0]["title"])
	require.EqualValues(t, 1, docs[0]["copies"])
}

func TestUpsertFoldingFlattensConjunction(t *testing.T) {
	coll, _, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title":  {Type: simpleschema.String},
		"shelf":  {Type: simpleschema.String},
		"copies": {Type: simpleschema.Number},
	})
	selector := map[string]any{"$and": []any{
		map[string]any{"title": "t"},
		map[string]any{"shelf": map[string]any{"$eq": "a"}},
	}}
	_, err := coll.Upsert(trusted(), selector, domain.Document{"$set": map[string]any{"copies": 1}}, nil)
	require.NoError(t, err)
}

func TestUpsertRunsAutoValuesOnce(t *testing.T) {
	var calls int
	coll, _, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title": {Type: simpleschema.String},
		"seq": {Type: simpleschema.Number, Optional: true, AutoValue: func(c *simpleschema.AutoValueCall) (any, bool) {
			calls++
			return simpleschema.OnOperator(domain.OpSetOnInsert, calls), true
		}},
	})

	_, err := coll.Upsert(trusted(), map[string]any{"title": "t"}, domain.Document{"$set": map[string]any{"title": "t"}}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	_, err = coll.Upsert(untrusted("u1"), map[string]any{"title": "u"}, domain.Document{"$set": map[string]any{"title": "u"}}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestInsertDoesNotModifyCallerDocument(t *testing.T) {
	coll, _, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title":     {Type: simpleschema.String},
		"createdBy": {Type: simpleschema.String, Optional: true, AutoValueName: "createdBy"},
	})
	doc := domain.Document{"title": "  padded  "}

	_, err := coll.Insert(trusted(), doc, nil)
	require.NoError(t, err)
	require.Equal(t, domain.Document{"title": "  padded  "}, doc)
}

func TestInsertStripsAndRestoresUndeclaredID(t *testing.T) {
	coll, store, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title": {Type: simpleschema.String},
	})

	id, err := coll.Insert(trusted(), domain.Document{domain.IDField: "abc", "title": "t"}, nil)
	require.NoError(t, err)
	require.Equal(t, "abc", id)

	docs, err := store.Find(context.Background(), "books", domain.Document{domain.IDField: "abc"}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestInsertGeneratesDeclaredID(t *testing.T) {
	coll, _, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		domain.IDField: {Type: simpleschema.String},
		"title":        {Type: simpleschema.String},
	})

	id, err := coll.Insert(trusted(), domain.Document{"title": "t"}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := coll.FindOne(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, doc[domain.IDField])
}

func TestNothingLeftToValidate(t *testing.T) {
	coll, _, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title": {Type: simpleschema.String},
	})

	_, err := coll.Insert(trusted(), domain.Document{"unknown": 1}, nil)
	require.Error(t, err)
	require.True(t, domain.ErrConfiguration.Has(err))
	require.Contains(t, err.Error(), "nothing left to validate")
}

func TestPickAndOmitAreExclusive(t *testing.T) {
	coll, _, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title":  {Type: simpleschema.String},
		"copies": {Type: simpleschema.Number},
	})

	_, err := coll.Insert(trusted(), domain.Document{"title": "t"}, &domain.MutationOptions{Pick: []string{"title"}, Omit: []string{"copies"}})
	require.True(t, domain.ErrConfiguration.Has(err))

	_, err = coll.Insert(trusted(), domain.Document{"title": "t"}, &domain.MutationOptions{Pick: []string{"title"}})
	require.NoError(t, err)
}

func TestNamedValidationContextKeepsErrors(t *testing.T) {
	coll, _, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title": {Type: simpleschema.String},
	})

	_, err := coll.Insert(trusted(), domain.Document{"title": 3.5}, &domain.MutationOptions{
		ValidationContextName: "form",
		AutoConvert:           domain.Bool(false),
	})
	requireValidationError(t, err)

	schema, err := coll.ResolveSchema(nil, nil, nil)
	require.NoError(t, err)
	vc := schema.NamedContext("form")
	require.False(t, vc.IsValid())
	require.Equal(t, domain.KindExpectedType, fieldKinds(vc.ValidationErrors())["title"])
	require.True(t, schema.NamedContext("").IsValid())
}

func TestDisableCollectionNames(t *testing.T) {
	coll, _, _ := newCollection(t, CollectionConfig{DisableCollectionNames: true}, simpleschema.Definition{
		"title": {Type: simpleschema.String},
	})
	_, err := coll.Insert(trusted(), domain.Document{}, nil)
	verr := requireValidationError(t, err)
	require.Equal(t, "Title is required", verr.Message)
}

func TestTrustedValidateFalseSkipsValidation(t *testing.T) {
	coll, _, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title":  {Type: simpleschema.String},
		"copies": {Type: simpleschema.Number},
	})
	_, err := coll.Insert(trusted(), domain.Document{"title": "t"}, &domain.MutationOptions{Validate: domain.Bool(false)})
	require.NoError(t, err)
}

func TestUntrustedValidateFalseIsRechecked(t *testing.T) {
	coll, _, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title":  {Type: simpleschema.String},
		"copies": {Type: simpleschema.Number},
	})

	for _, opts := range []*domain.MutationOptions{
		{Validate: domain.Bool(false)},
		{Bypass: true},
	} {
		_, err := coll.Insert(untrusted("u1"), domain.Document{"title": "t"}, opts)
		require.Error(t, err)
		require.True(t, domain.ErrAuthorization.Has(err))

		var be *domain.BoundaryError
		require.True(t, errors.As(err, &be))
		require.Equal(t, domain.ReasonInvalid, be.Reason)
		list, err := domain.DecodeFieldErrors(be.Details)
		require.NoError(t, err)
		require.Equal(t, domain.KindRequired, fieldKinds(list)["copies"])
	}
}

func TestUntrustedInsertGetsAutoValues(t *testing.T) {
	frozen := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	coll, store, audit := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title":     {Type: simpleschema.String},
		"createdBy": {Type: simpleschema.String, AutoValueName: "createdBy"},
		"stamp": {Type: simpleschema.Date, AutoValue: func(c *simpleschema.AutoValueCall) (any, bool) {
			return frozen, true
		}},
	})

	id, err := coll.Insert(untrusted("u1"), domain.Document{"title": "t", "createdBy": "forged"}, nil)
	require.NoError(t, err)

	docs, err := store.Find(context.Background(), "books", domain.Document{domain.IDField: id}, 1)
	require.NoError(t, err)
	require.Equal(t, "u1", docs[0]["createdBy"])
	require.Equal(t, frozen, docs[0]["stamp"])

	events := audit.all()
	require.Len(t, events, 1)
	require.Equal(t, "insert", events[0].Action)
	require.Equal(t, "u1", events[0].Actor)
	require.False(t, events[0].Trusted)
}

func TestUntrustedOptionsCannotSteerAuthoritativeCheck(t *testing.T) {
	def := simpleschema.Definition{
		"title":  {Type: simpleschema.String},
		"copies": {Type: simpleschema.Number},
		"secret": {Type: simpleschema.String, Optional: true, Custom: func(c *simpleschema.CustomCall) domain.ErrorKind {
			if c.IsSet && c.Extended.UserID != "admin" {
				return domain.KindNotAllowed
			}
			return ""
		}},
	}
	forged := map[string]any{"userId": "admin", "isFromTrustedCode": true}

	tests := []struct {
		name string
		doc  domain.Document
		opts *domain.MutationOptions
		key  string
		kind domain.ErrorKind
	}{
		{"omit", domain.Document{"title": "X"}, &domain.MutationOptions{Omit: []string{"copies"}}, "copies", domain.KindRequired},
		{"pick", domain.Document{"title": "X"}, &domain.MutationOptions{Pick: []string{"title"}}, "copies", domain.KindRequired},
		{"named context", domain.Document{"title": "X"}, &domain.MutationOptions{ValidationContextName: "lenient"}, "copies", domain.KindRequired},
		{"extended custom context", domain.Document{"title": "X", "copies": 1, "secret": "s"}, &domain.MutationOptions{ExtendedCustomContext: forged}, "secret", domain.KindNotAllowed},
		{"extended auto-value context", domain.Document{"title": "X", "copies": 1, "secret": "s"}, &domain.MutationOptions{ExtendAutoValueContext: forged}, "secret", domain.KindNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coll, store, _ := newCollection(t, CollectionConfig{}, def)

			_, err := coll.Insert(untrusted("u1"), tt.doc, tt.opts)
			require.True(t, domain.ErrAuthorization.Has(err), "got %v", err)
			var be *domain.BoundaryError
			require.True(t, errors.As(err, &be))
			list, err := domain.DecodeFieldErrors(be.Details)
			require.NoError(t, err)
			require.Equal(t, tt.kind, fieldKinds(list)[tt.key])

			docs, err := store.Find(context.Background(), "books", domain.Document{}, 0)
			require.NoError(t, err)
			require.Empty(t, docs)
		})
	}
}

func TestUntrustedAutoValuesUseServerIdentity(t *testing.T) {
	coll, store, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		domain.IDField: {Type: simpleschema.String},
		"title":        {Type: simpleschema.String},
		"createdBy":    {Type: simpleschema.String, AutoValueName: "createdBy"},
		"owner": {Type: simpleschema.String, AutoValue: func(c *simpleschema.AutoValueCall) (any, bool) {
			return c.DocID, c.IsInsert
		}},
	})

	id, err := coll.Insert(untrusted("u1"), domain.Document{"title": "t"}, &domain.MutationOptions{
		ExtendAutoValueContext: map[string]any{"userId": "admin", "isFromTrustedCode": true, "docId": "forged"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	docs, err := store.Find(context.Background(), "books", domain.Document{domain.IDField: id}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "u1", docs[0]["createdBy"])
	require.Equal(t, id, docs[0]["owner"])
}

func TestClientSideDoesNotForwardAutoValues(t *testing.T) {
	remote := memstore.New()
	coll, _, _ := newCollection(t, CollectionConfig{ClientSide: true, Store: remote}, simpleschema.Definition{
		"title": {Type: simpleschema.String},
		"stamp": {Type: simpleschema.String, AutoValue: func(c *simpleschema.AutoValueCall) (any, bool) {
			return "client-computed", c.IsInsert
		}},
	})

	for _, opts := range []*domain.MutationOptions{nil, {GetAutoValues: domain.Bool(true)}} {
		id, err := coll.Insert(context.Background(), domain.Document{"title": "t"}, opts)
		require.NoError(t, err)

		docs, err := remote.Find(context.Background(), "books", domain.Document{domain.IDField: id}, 1)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		require.NotContains(t, docs[0], "stamp")
		require.Equal(t, "t", docs[0]["title"])
	}
}

func TestUntrustedUnknownKeysAreRejected(t *testing.T) {
	coll, _, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title": {Type: simpleschema.String},
	})

	_, err := coll.Insert(untrusted("u1"), domain.Document{"title": "t", "role": "admin"}, nil)
	require.True(t, domain.ErrAuthorization.Has(err))

	_, err = coll.Insert(trusted(), domain.Document{"title": "t", "role": "admin"}, nil)
	require.NoError(t, err)
}

func TestLocalCollectionIsPrivileged(t *testing.T) {
	coll, _, _ := newCollection(t, CollectionConfig{Local: true}, simpleschema.Definition{
		"title":  {Type: simpleschema.String},
		"copies": {Type: simpleschema.Number},
	})

	_, err := coll.Insert(context.Background(), domain.Document{"title": "t"}, &domain.MutationOptions{Bypass: true})
	require.NoError(t, err)

	_, err = coll.Insert(context.Background(), domain.Document{"title": "t"}, nil)
	requireValidationError(t, err)
}

func TestRemoveIsAudited(t *testing.T) {
	coll, _, audit := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title": {Type: simpleschema.String},
	})
	ctx := trusted()
	id, err := coll.Insert(ctx, domain.Document{"title": "t"}, nil)
	require.NoError(t, err)

	n, err := coll.Remove(ctx, id)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = coll.FindOne(ctx, id)
	require.ErrorIs(t, err, domain.ErrNotFound)

	events := audit.all()
	require.Len(t, events, 2)
	require.Equal(t, "remove", events[1].Action)
	require.Equal(t, id, events[1].DocumentID)
}

func TestMutateAsync(t *testing.T) {
	coll, _, _ := newCollection(t, CollectionConfig{}, simpleschema.Definition{
		"title": {Type: simpleschema.String},
	})
	ctx := trusted()

	var failed error
	err := coll.MutateAsync(ctx, domain.MutationRequest{Kind: domain.Insert, Doc: domain.Document{}}, func(_ MutationResult, err error) {
		failed = err
	})
	require.NoError(t, err)
	requireValidationError(t, failed)

	type outcome struct {
		res MutationResult
		err error
	}
	done := make(chan outcome, 1)
	err = coll.MutateAsync(ctx, domain.MutationRequest{Kind: domain.Insert, Doc: domain.Document{"title": "t"}}, func(res MutationResult, err error) {
		done <- outcome{res, err}
	})
	require.NoError(t, err)
	select {
	case out := <-done:
		require.NoError(t, out.err)
		require.NotEmpty(t, out.res.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("callback never ran")
	}

	err = coll.MutateAsync(ctx, domain.MutationRequest{Kind: domain.Insert, Doc: domain.Document{}}, nil)
	requireValidationError(t, err)
}

// boundaryStore rejects every write the way a remote authoritative side
// does.
type boundaryStore struct {
	*memstore.Store
	err error
}

func (s boundaryStore) Insert(context.Context, string, domain.Document) (string, error) {
	return "", s.err
}

func (s boundaryStore) Update(context.Context, string, domain.Document, domain.Document, ports.UpdateOptions) (ports.UpdateResult, error) {
	return ports.UpdateResult{}, s.err
}

func TestClientSideRehydratesAuthoritativeErrors(t *testing.T) {
	authoritative := []domain.FieldError{
		{Name: "title", Type: domain.KindMaxString, Value: "long title"},
		{Name: "author.name", Type: domain.KindRequired},
	}
	store := boundaryStore{Store: memstore.New(), err: domain.NewInvalidBoundaryError(authoritative)}
	coll, _, _ := newCollection(t, CollectionConfig{ClientSide: true, Store: store}, simpleschema.Definition{
		"title":       {Type: simpleschema.String},
		"author":      {Type: simpleschema.Object, Optional: true},
		"author.name": {Type: simpleschema.String},
	})

	_, err := coll.Insert(context.Background(), domain.Document{"title": "long title"}, nil)
	verr := requireValidationError(t, err)
	require.Len(t, verr.InvalidKeys, len(authoritative))
	for i, fe := range verr.InvalidKeys {
		require.Equal(t, authoritative[i].Name, fe.Name)
		require.Equal(t, authoritative[i].Type, fe.Type)
		require.Equal(t, authoritative[i].Value, fe.Value)
		require.NotEmpty(t, fe.Message)
	}
	require.Equal(t, verr.InvalidKeys, verr.Context.ValidationErrors())
}

func TestClientSideTranslatesRemoteDuplicateKey(t *testing.T) {
	dup := &domain.DuplicateKeyError{Collection: "books", Index: "c2_isbn", Value: "z"}
	store := boundaryStore{Store: memstore.New(), err: &domain.BoundaryError{Status: 409, Reason: dup.Error()}}
	coll, _, _ := newCollection(t, CollectionConfig{ClientSide: true, Store: store}, simpleschema.Definition{
		"isbn": {Type: simpleschema.String, Unique: true},
	})

	_, err := coll.Insert(context.Background(), domain.Document{"isbn": "z"}, nil)
	verr := requireValidationError(t, err)
	require.Equal(t, []domain.FieldError{{Name: "isbn", Type: domain.KindNotUnique, Value: "z", Message: "Isbn must be unique"}}, verr.InvalidKeys)
}

func TestStorageFailuresAreClassified(t *testing.T) {
	store := boundaryStore{Store: memstore.New(), err: errors.New("disk full")}
	coll, _, _ := newCollection(t, CollectionConfig{Store: store}, simpleschema.Definition{
		"title": {Type: simpleschema.String},
	})

	_, err := coll.Insert(trusted(), domain.Document{"title": "t"}, nil)
	require.True(t, domain.ErrStorage.Has(err))
}

func TestJSONSchemaCollection(t *testing.T) {
	coll, _, _ := newCollection(t, CollectionConfig{}, `{
		"type": "object",
		"properties": {
			"sku": {"type": "string", "unique": true},
			"price": {"type": "number", "minimum": 0, "default": 5}
		},
		"required": ["sku"]
	}`)
	ctx := trusted()

	id, err := coll.Insert(ctx, domain.Document{"sku": "a"}, nil)
	require.NoError(t, err)
	doc, err := coll.FindOne(ctx, id)
	require.NoError(t, err)
	require.EqualValues(t, 5, doc["price"])

	_, err = coll.Insert(ctx, domain.Document{"sku": "a"}, nil)
	verr := requireValidationError(t, err)
	require.Equal(t, domain.KindNotUnique, fieldKinds(verr.InvalidKeys)["sku"])

	_, err = coll.Update(ctx, id, domain.Document{"$set": map[string]any{"price": -1}}, nil)
	verr = requireValidationError(t, err)
	require.Equal(t, domain.KindMinNumber, fieldKinds(verr.InvalidKeys)["price"])
}
