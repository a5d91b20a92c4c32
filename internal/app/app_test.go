package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/atvirokodosprendimai/docgate/internal/adapters/events"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

const schemaYAML = `
collections:
  books:
    schemas:
      - fields:
          title: {type: string}
  scratch:
    local: true
    schemas:
      - fields:
          note: {type: string}
`

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schemas.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(schemaYAML), 0o600))
	return Config{
		DBPath:          filepath.Join(dir, "docgate.sqlite"),
		SchemaFile:      schemaPath,
		BootstrapAPIKey: "boot",
	}
}

func TestOpenRestoresStoredSchemas(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	log := zaptest.NewLogger(t)

	rt, err := Open(ctx, cfg, log)
	require.NoError(t, err)

	key, err := rt.Auth.Authenticate(ctx, "boot")
	require.NoError(t, err)
	require.Equal(t, "default", key.TenantID)
	require.Equal(t, "bootstrap", key.Name)
	require.True(t, key.Admin)
	require.EqualValues(t, 2, rt.SchemaVersion)

	require.NoError(t, rt.Schemas.Put(ctx, domain.StoredSchema{
		Collection: "books",
		Adapter:    "simpleschema",
		Definition: []byte(`{"pages":{"type":"number"}}`),
	}))
	books, ok := rt.Catalog.Collection("books")
	require.True(t, ok)
	trusted := domain.TrustedContext(ctx, "server")
	id, err := books.Insert(trusted, domain.Document{"title": "A", "pages": 10}, nil)
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	rt, err = Open(ctx, cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	books, _ = rt.Catalog.Collection("books")
	_, err = books.Insert(trusted, domain.Document{"title": "B"}, nil)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr, "pages must still be required after restart")

	doc, err := books.FindOne(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 10.0, doc["pages"])

	logged, err := rt.Audit.List(ctx, "books", 10)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	require.Equal(t, "insert", logged[0].Action)
}

func TestLocalCollectionsStayInMemory(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	rt, err := Open(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	scratch, _ := rt.Catalog.Collection("scratch")
	_, err = scratch.Insert(ctx, domain.Document{"note": "n"}, nil)
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	rt, err = Open(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	scratch, _ = rt.Catalog.Collection("scratch")
	docs, err := scratch.Find(ctx, nil, 0)
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestAuditSinks(t *testing.T) {
	log := zaptest.NewLogger(t)
	repo := events.Fanout(nil)

	require.Equal(t, repo, auditSinks(Config{}, repo, log))

	sinks, ok := auditSinks(Config{LogMutations: true, WebhookURL: "http://localhost:9"}, repo, log).(events.Fanout)
	require.True(t, ok)
	require.Len(t, sinks, 3)
}
