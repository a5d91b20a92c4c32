package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/docgate/internal/adapters/events"
	"github.com/atvirokodosprendimai/docgate/internal/adapters/httpapi"
	"github.com/atvirokodosprendimai/docgate/internal/adapters/jsonschema"
	"github.com/atvirokodosprendimai/docgate/internal/adapters/memstore"
	"github.com/atvirokodosprendimai/docgate/internal/adapters/schemafile"
	"github.com/atvirokodosprendimai/docgate/internal/adapters/simpleschema"
	sqliteadapter "github.com/atvirokodosprendimai/docgate/internal/adapters/sqlite"
	"github.com/atvirokodosprendimai/docgate/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
	"github.com/atvirokodosprendimai/docgate/internal/core/ports"
	"github.com/atvirokodosprendimai/docgate/internal/core/usecase"
	"github.com/atvirokodosprendimai/docgate/migrations"
)

type Config struct {
	Addr                   string
	DBPath                 string
	SchemaFile             string
	DisableCollectionNames bool
	BootstrapAPIKey        string
	BootstrapTenant        string
	BootstrapKeyName       string
	WebhookURL             string
	WebhookSecret          string
	LogMutations           bool
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DefaultAdapters is the adapter list every collection detects schemas
// with, reference adapter first.
func DefaultAdapters() usecase.AdapterList {
	return usecase.AdapterList{simpleschema.NewAdapter(), jsonschema.NewAdapter()}
}

// Runtime is the wired core without a transport.
type Runtime struct {
	Catalog *usecase.Catalog
	Schemas *usecase.SchemaService
	Auth    *usecase.AuthService
	Audit   ports.AuditLog

	// SchemaVersion is the newest database migration applied.
	SchemaVersion int64

	closer io.Closer
}

func (rt *Runtime) Close() error {
	return rt.closer.Close()
}

// Open migrates the database, defines the collections of the schema file
// and replays stored schemas.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := gormsqlite.Open(cfg.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migrateCtx, writeSQLDB, log); err != nil {
		_ = db.Close()
		return nil, err
	}

	version, err := migrations.Version(migrateCtx, writeSQLDB)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	store := sqliteadapter.NewDocumentStore(db)
	apiKeyRepo := sqliteadapter.NewAPIKeyRepository(db)
	auditRepo := sqliteadapter.NewAuditRepository(db)
	schemaRepo := sqliteadapter.NewSchemaRepository(db)

	catalog := usecase.NewCatalog(DefaultAdapters(), store, auditSinks(cfg, auditRepo, log), log)
	schemas := usecase.NewSchemaService(schemaRepo, catalog, schemafile.Decoder{}, log)
	rt := &Runtime{
		Catalog:       catalog,
		Schemas:       schemas,
		Auth:          usecase.NewAuthService(apiKeyRepo),
		Audit:         auditRepo,
		SchemaVersion: version,
		closer:        resourceCloser{closers: []io.Closer{db}},
	}

	if cfg.SchemaFile != "" {
		file, err := schemafile.Load(cfg.SchemaFile)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if cfg.DisableCollectionNames {
			for name, c := range file.Collections {
				c.DisableCollectionNames = true
				file.Collections[name] = c
			}
		}
		newLocal := func() ports.DocumentStore { return memstore.New() }
		if err := file.Apply(ctx, catalog, newLocal); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema file: %w", err)
		}
		log.Info("schema file applied", zap.String("path", cfg.SchemaFile), zap.Strings("collections", file.Names()))
	}

	restored, err := schemas.Restore(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if restored > 0 {
		log.Info("stored schemas restored", zap.Int("count", restored))
	}

	if cfg.BootstrapAPIKey != "" {
		tenant := cfg.BootstrapTenant
		if tenant == "" {
			tenant = "default"
		}
		name := cfg.BootstrapKeyName
		if name == "" {
			name = "bootstrap"
		}

		bootstrapCtx, bootstrapCancel := context.WithTimeout(ctx, 5*time.Second)
		err := apiKeyRepo.Upsert(bootstrapCtx, domain.APIKey{
			TokenHash: usecase.HashToken(cfg.BootstrapAPIKey),
			TenantID:  tenant,
			Name:      name,
			Active:    true,
			Admin:     true,
			CreatedAt: time.Now().UTC(),
		})
		bootstrapCancel()
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap api key: %w", err)
		}
	}

	return rt, nil
}

// auditSinks puts the notifiers enabled in cfg behind the audit table.
func auditSinks(cfg Config, repo ports.AuditRepository, log *zap.Logger) ports.AuditRepository {
	sinks := events.Fanout{repo}
	if cfg.LogMutations {
		sinks = append(sinks, events.NewLogNotifier(log))
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, events.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookSecret, 0))
	}
	if len(sinks) == 1 {
		return repo
	}
	return sinks
}

func NewServer(ctx context.Context, cfg Config, log *zap.Logger) (*http.Server, io.Closer, error) {
	rt, err := Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	handler := httpapi.NewHandler(rt.Catalog, rt.Schemas, rt.Auth, log)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, rt, nil
}
