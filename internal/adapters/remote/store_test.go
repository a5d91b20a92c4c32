package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/atvirokodosprendimai/docgate/internal/adapters/httpapi"
	"github.com/atvirokodosprendimai/docgate/internal/adapters/memstore"
	"github.com/atvirokodosprendimai/docgate/internal/adapters/simpleschema"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
	"github.com/atvirokodosprendimai/docgate/internal/core/usecase"
)

const token = "client-token"

type keyRepo struct{}

func (keyRepo) FindByTokenHash(_ context.Context, hash string) (domain.APIKey, error) {
	if hash != usecase.HashToken(token) {
		return domain.APIKey{}, domain.ErrNotFound
	}
	return domain.APIKey{TokenHash: hash, Name: "client", Active: true}, nil
}

func (keyRepo) Upsert(context.Context, domain.APIKey) error { return nil }

func (keyRepo) SetActive(context.Context, string, bool) error { return nil }

func ptr[T any](v T) *T { return &v }

// serverSchema is stricter than what the client knows about copies.
var serverSchema = simpleschema.Definition{
	"title":  {Type: simpleschema.String},
	"isbn":   {Type: simpleschema.String, Unique: true},
	"copies": {Type: simpleschema.Number, Min: ptr(0.0)},
}

var clientSchema = simpleschema.Definition{
	"title":  {Type: simpleschema.String},
	"isbn":   {Type: simpleschema.String, Unique: true},
	"copies": {Type: simpleschema.Number},
}

func adapters() usecase.AdapterList {
	return usecase.AdapterList{simpleschema.NewAdapter()}
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := zaptest.NewLogger(t)
	catalog := usecase.NewCatalog(adapters(), memstore.New(), nil, log)
	books, err := catalog.Define(usecase.CollectionConfig{Name: "books"})
	require.NoError(t, err)
	require.NoError(t, books.AttachSchema(context.Background(), serverSchema, usecase.AttachOptions{}))

	srv := httptest.NewServer(httpapi.NewHandler(catalog, nil, usecase.NewAuthService(keyRepo{}), log).Router())
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server, apiKey string) (*usecase.Collection, *Store) {
	t.Helper()
	store := New(srv.URL, apiKey, WithHTTPClient(srv.Client()))
	coll := usecase.NewCollection(usecase.CollectionConfig{Name: "books", ClientSide: true, Store: store}, adapters(), nil, nil, zaptest.NewLogger(t))
	require.NoError(t, coll.AttachSchema(context.Background(), clientSchema, usecase.AttachOptions{}))
	return coll, store
}

func requireKinds(t *testing.T, err error) map[string]domain.ErrorKind {
	t.Helper()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	out := map[string]domain.ErrorKind{}
	for _, fe := range verr.InvalidKeys {
		require.NotEmpty(t, fe.Message)
		out[fe.Name] = fe.Type
	}
	return out
}

func TestClientSideInsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	coll, store := newClient(t, newServer(t), token)

	id, err := coll.Insert(ctx, domain.Document{"title": " Dune ", "isbn": "1", "copies": "2"}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	docs, err := store.Find(ctx, "books", domain.Document{domain.IDField: id}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "Dune", docs[0]["title"])
	require.Equal(t, 2.0, docs[0]["copies"])

	n, err := coll.Update(ctx, id, domain.Document{"$set": map[string]any{"copies": 5}}, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = coll.Remove(ctx, id)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestClientSideRehydratesServerRejection(t *testing.T) {
	coll, _ := newClient(t, newServer(t), token)

	_, err := coll.Insert(context.Background(), domain.Document{"title": "A", "isbn": "1", "copies": -1}, nil)
	require.Equal(t, map[string]domain.ErrorKind{"copies": domain.KindMinNumber}, requireKinds(t, err))
}

func TestClientSideDuplicateKey(t *testing.T) {
	ctx := context.Background()
	coll, _ := newClient(t, newServer(t), token)

	_, err := coll.Insert(ctx, domain.Document{"title": "A", "isbn": "z", "copies": 1}, nil)
	require.NoError(t, err)
	_, err = coll.Insert(ctx, domain.Document{"title": "B", "isbn": "z", "copies": 1}, nil)
	require.Equal(t, map[string]domain.ErrorKind{"isbn": domain.KindNotUnique}, requireKinds(t, err))
}

func TestUnauthorizedIsBoundaryError(t *testing.T) {
	_, store := newClient(t, newServer(t), "wrong")

	_, err := store.Insert(context.Background(), "books", domain.Document{"title": "A"})
	var be *domain.BoundaryError
	require.ErrorAs(t, err, &be)
	require.Equal(t, http.StatusUnauthorized, be.Status)
	require.Equal(t, "UNAUTHORIZED", be.Reason)
}

func TestTransportFailureIsStorageError(t *testing.T) {
	srv := newServer(t)
	store := New(srv.URL, token)
	srv.Close()

	_, err := store.Update(context.Background(), "books", domain.Document{"title": "A"}, domain.Document{"$set": map[string]any{"copies": 1}}, ports.UpdateOptions{})
	require.True(t, domain.ErrStorage.Has(err))
}

func TestBoundaryErrorFallsBackToStatusText(t *testing.T) {
	be := boundaryError(http.StatusBadGateway, []byte("upstream down\n"))
	require.Equal(t, http.StatusBadGateway, be.Status)
	require.Equal(t, "Bad Gateway", be.Reason)
	require.Equal(t, "upstream down", be.Details)
}
