package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/atvirokodosprendimai/docgate/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
	"github.com/atvirokodosprendimai/docgate/migrations"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *gormsqlite.DB {
	t.Helper()
	db, err := gormsqlite.Open(filepath.Join(t.TempDir(), "docs.sqlite"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	wdb, err := db.WriteSQLDB()
	require.NoError(t, err)
	require.NoError(t, migrations.Up(context.Background(), wdb, zaptest.NewLogger(t)))
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "migrate.sqlite")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
		_ = os.Remove(dbPath)
	})

	if err := migrations.Up(ctx, db, nil); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := migrations.Up(ctx, db, nil); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	v, err := migrations.Version(ctx, db)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 2 {
		t.Fatalf("version = %d, want 2", v)
	}
}

func TestDocumentStoreInsertAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(openTestDB(t))
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	id, err := store.Insert(ctx, "books", domain.Document{"title": "a", "at": at, "tags": []any{"x"}})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = store.Insert(ctx, "books", domain.Document{domain.IDField: "fixed", "title": "b"})
	require.NoError(t, err)
	_, err = store.Insert(ctx, "books", domain.Document{domain.IDField: "fixed", "title": "c"})
	var dup *domain.DuplicateKeyError
	require.ErrorAs(t, err, &dup)

	docs, err := store.Find(ctx, "books", domain.Document{}, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, id, docs[0][domain.IDField])
	require.True(t, at.Equal(docs[0]["at"].(time.Time)))
	require.Equal(t, []any{"x"}, docs[0]["tags"])

	docs, err = store.Find(ctx, "books", domain.Document{"title": "b"}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "fixed", docs[0][domain.IDField])

	docs, err = store.Find(ctx, "other", domain.Document{}, 0)
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestDocumentStoreUniqueIndex(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(openTestDB(t))
	require.NoError(t, store.EnsureUniqueIndex(ctx, "books", "c2_isbn", "isbn"))
	require.NoError(t, store.EnsureUniqueIndex(ctx, "books", "c2_isbn", "isbn"))

	first, err := store.Insert(ctx, "books", domain.Document{"isbn": "z"})
	require.NoError(t, err)

	_, err = store.Insert(ctx, "books", domain.Document{"isbn": "z"})
	require.EqualError(t, err, `E11000 duplicate key error collection: books index: c2_isbn dup key: { : "z" }`)

	second, err := store.Insert(ctx, "books", domain.Document{"isbn": "y"})
	require.NoError(t, err)

	_, err = store.Update(ctx, "books", domain.Document{domain.IDField: second}, domain.Document{"$set": map[string]any{"isbn": "z"}}, ports.UpdateOptions{})
	require.Error(t, err)
	docs, err := store.Find(ctx, "books", domain.Document{domain.IDField: second}, 1)
	require.NoError(t, err)
	require.Equal(t, "y", docs[0]["isbn"])

	// Changing the first document's value releases "z".
	_, err = store.Update(ctx, "books", domain.Document{domain.IDField: first}, domain.Document{"$set": map[string]any{"isbn": "w"}}, ports.UpdateOptions{})
	require.NoError(t, err)
	_, err = store.Insert(ctx, "books", domain.Document{"isbn": "z"})
	require.NoError(t, err)

	n, err := store.Remove(ctx, "books", domain.Document{"isbn": "w"})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	_, err = store.Insert(ctx, "books", domain.Document{"isbn": "w"})
	require.NoError(t, err)
}

func TestDocumentStoreUniqueAcrossNumericKinds(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(openTestDB(t))
	require.NoError(t, store.EnsureUniqueIndex(ctx, "books", "c2_code", "code"))

	_, err := store.Insert(ctx, "books", domain.Document{"code": 7})
	require.NoError(t, err)
	_, err = store.Insert(ctx, "books", domain.Document{"code": 7.0})
	require.Error(t, err)
	_, err = store.Insert(ctx, "books", domain.Document{"code": "7"})
	require.NoError(t, err)
}

func TestEnsureUniqueIndexRejectsExistingDuplicates(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(openTestDB(t))

	for i := 0; i < 2; i++ {
		_, err := store.Insert(ctx, "books", domain.Document{"isbn": "z"})
		require.NoError(t, err)
	}
	require.Error(t, store.EnsureUniqueIndex(ctx, "books", "c2_isbn", "isbn"))

	_, err := store.Insert(ctx, "books", domain.Document{"isbn": "z"})
	require.NoError(t, err, "failed index must not be registered")
}

func TestDocumentStoreUpdateAndUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(openTestDB(t))

	for _, title := range []string{"a", "b"} {
		_, err := store.Insert(ctx, "books", domain.Document{"title": title, "shelf": "s1", "n": 1})
		require.NoError(t, err)
	}

	res, err := store.Update(ctx, "books", domain.Document{"shelf": "s1"}, domain.Document{"$inc": map[string]any{"n": 1}}, ports.UpdateOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Matched)

	res, err = store.Update(ctx, "books", domain.Document{"shelf": "s1"}, domain.Document{"$inc": map[string]any{"n": 1}}, ports.UpdateOptions{Multi: true})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Matched)

	docs, err := store.Find(ctx, "books", domain.Document{"title": "a"}, 1)
	require.NoError(t, err)
	require.Equal(t, 3.0, docs[0]["n"])

	res, err = store.Update(ctx, "books", domain.Document{"title": "none"}, domain.Document{"$set": map[string]any{"n": 1}}, ports.UpdateOptions{})
	require.NoError(t, err)
	require.Zero(t, res.Matched)

	res, err = store.Update(ctx, "books", domain.Document{"title": "c"}, domain.Document{
		"$set":         map[string]any{"n": 9},
		"$setOnInsert": map[string]any{"created": true},
	}, ports.UpdateOptions{Upsert: true})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Matched)
	require.NotEmpty(t, res.InsertedID)

	docs, err = store.Find(ctx, "books", domain.Document{domain.IDField: res.InsertedID}, 1)
	require.NoError(t, err)
	require.Equal(t, "c", docs[0]["title"])
	require.Equal(t, true, docs[0]["created"])
}

func TestSchemaRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSchemaRepository(openTestDB(t))

	variant := domain.StoredSchema{Collection: "books", Adapter: "simpleschema", Selector: map[string]any{"type": "variant"}, Definition: []byte(`{"price":{"type":"number"}}`)}
	base := domain.StoredSchema{Collection: "books", Adapter: "simpleschema", Definition: []byte(`{"title":{"type":"string"}}`)}
	require.NoError(t, repo.Upsert(ctx, variant))
	require.NoError(t, repo.Upsert(ctx, base))
	require.NoError(t, repo.Upsert(ctx, domain.StoredSchema{Collection: "films", Adapter: "jsonschema", Definition: []byte(`{"type":"object"}`)}))

	base.Replace = true
	require.NoError(t, repo.Upsert(ctx, base))

	stored, err := repo.List(ctx, "books")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Empty(t, stored[0].Selector)
	require.True(t, stored[0].Replace)
	require.Equal(t, map[string]any{"type": "variant"}, stored[1].Selector)
	require.JSONEq(t, `{"price":{"type":"number"}}`, string(stored[1].Definition))

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	deleted, err := repo.Delete(ctx, "books", map[string]any{"type": "variant"})
	require.NoError(t, err)
	require.True(t, deleted)
	deleted, err = repo.Delete(ctx, "books", map[string]any{"type": "variant"})
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestAuditRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAuditRepository(openTestDB(t))

	require.NoError(t, repo.Log(ctx, domain.AuditEvent{Collection: "books", DocumentID: "1", Action: "insert", Actor: "u1", Affected: 1}))
	require.NoError(t, repo.Log(ctx, domain.AuditEvent{Collection: "books", DocumentID: "1", Action: "update", Actor: "server", Trusted: true, Affected: 1}))
	require.NoError(t, repo.Log(ctx, domain.AuditEvent{Collection: "films", DocumentID: "2", Action: "remove", Actor: "u2"}))

	events, err := repo.List(ctx, "books", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "update", events[0].Action)
	require.True(t, events[0].Trusted)
	require.False(t, events[0].At.IsZero())
}

func TestAPIKeyRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAPIKeyRepository(openTestDB(t))

	_, err := repo.FindByTokenHash(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.Upsert(ctx, domain.APIKey{TokenHash: "h", TenantID: "t", Name: "ci", Active: true, Admin: true}))
	key, err := repo.FindByTokenHash(ctx, "h")
	require.NoError(t, err)
	require.Equal(t, "ci", key.Name)
	require.True(t, key.Active)
	require.True(t, key.Admin)
	require.False(t, key.CreatedAt.IsZero())

	require.NoError(t, repo.SetActive(ctx, "h", false))
	key, err = repo.FindByTokenHash(ctx, "h")
	require.NoError(t, err)
	require.False(t, key.Active)
	require.ErrorIs(t, repo.SetActive(ctx, "missing", false), domain.ErrNotFound)
}
