package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atvirokodosprendimai/docgate/internal/app"
	"github.com/atvirokodosprendimai/docgate/internal/core/domain"
)

func main() {
	cmd := &cli.Command{
		Name:  "docgate",
		Usage: "Schema-validated document API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				Sources: cli.EnvVars("DOCGATE_ADDR"),
				Usage:   "HTTP listen address",
			},
			&cli.StringFlag{
				Name:    "db-path",
				Value:   "./docgate.sqlite",
				Sources: cli.EnvVars("DOCGATE_DB_PATH"),
				Usage:   "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "schema-file",
				Sources: cli.EnvVars("DOCGATE_SCHEMA_FILE"),
				Usage:   "YAML file declaring collections and their schemas",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars("DOCGATE_LOG_LEVEL"),
				Usage:   "debug, info, warn or error",
			},
			&cli.BoolFlag{
				Name:    "disable-collection-names",
				Sources: cli.EnvVars("DOCGATE_DISABLE_COLLECTION_NAMES"),
				Usage:   "Leave the collection name out of validation messages",
			},
			&cli.StringFlag{
				Name:    "bootstrap-api-key",
				Sources: cli.EnvVars("DOCGATE_BOOTSTRAP_API_KEY"),
				Usage:   "Optional API key to upsert at startup",
			},
			&cli.StringFlag{
				Name:    "bootstrap-tenant",
				Value:   "default",
				Sources: cli.EnvVars("DOCGATE_BOOTSTRAP_TENANT"),
				Usage:   "Tenant for bootstrap API key",
			},
			&cli.StringFlag{
				Name:    "bootstrap-key-name",
				Value:   "bootstrap",
				Sources: cli.EnvVars("DOCGATE_BOOTSTRAP_KEY_NAME"),
				Usage:   "Name for bootstrap API key",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("DOCGATE_WEBHOOK_URL"),
				Usage:   "POST every committed mutation to this URL",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("DOCGATE_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 secret for webhook signatures",
			},
			&cli.BoolFlag{
				Name:    "log-mutations",
				Sources: cli.EnvVars("DOCGATE_LOG_MUTATIONS"),
				Usage:   "Log every committed mutation",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "check",
				Usage:  "Load the schema file and stored schemas, then report each collection",
				Action: check,
			},
			{
				Name:  "schema",
				Usage: "Manage stored schemas",
				Commands: []*cli.Command{
					{
						Name:      "put",
						Usage:     "Attach and store a schema definition read from a JSON file",
						ArgsUsage: "<collection> <definition.json>",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "adapter", Value: "jsonschema", Usage: "simpleschema or jsonschema"},
							&cli.StringFlag{Name: "selector", Usage: `JSON selector, e.g. {"type":"variant"}`},
							&cli.BoolFlag{Name: "replace", Usage: "Replace instead of extend"},
						},
						Action: schemaPut,
					},
					{
						Name:      "list",
						Usage:     "List stored schemas",
						ArgsUsage: "[collection]",
						Action:    schemaList,
					},
				},
			},
			{
				Name:      "audit",
				Usage:     "Print the newest audit events of a collection",
				ArgsUsage: "<collection>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20},
				},
				Action: audit,
			},
			{
				Name:  "keys",
				Usage: "Manage API keys",
				Commands: []*cli.Command{
					{
						Name:      "create",
						Usage:     "Issue an API key and print its token once",
						ArgsUsage: "<name>",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "tenant", Value: "default"},
							&cli.BoolFlag{Name: "admin", Usage: "Allow managing stored schemas"},
						},
						Action: keysCreate,
					},
					{
						Name:      "revoke",
						Usage:     "Deactivate the API key behind a token",
						ArgsUsage: "<token>",
						Action:    keysRevoke,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func config(c *cli.Command) app.Config {
	return app.Config{
		Addr:                   c.String("addr"),
		DBPath:                 c.String("db-path"),
		SchemaFile:             c.String("schema-file"),
		DisableCollectionNames: c.Bool("disable-collection-names"),
		BootstrapAPIKey:        c.String("bootstrap-api-key"),
		BootstrapTenant:        c.String("bootstrap-tenant"),
		BootstrapKeyName:       c.String("bootstrap-key-name"),
		WebhookURL:             c.String("webhook-url"),
		WebhookSecret:          c.String("webhook-secret"),
		LogMutations:           c.Bool("log-mutations"),
	}
}

func newLogger(c *cli.Command) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.String("log-level"))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func serve(ctx context.Context, c *cli.Command) error {
	log, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cfg := config(c)
	server, closer, err := app.NewServer(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			log.Warn("close resources", zap.Error(closeErr))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case sig := <-sigCh:
		log.Info("received signal", zap.Stringer("signal", sig))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func open(ctx context.Context, c *cli.Command) (*app.Runtime, *zap.Logger, error) {
	log, err := newLogger(c)
	if err != nil {
		return nil, nil, err
	}
	rt, err := app.Open(ctx, config(c), log)
	if err != nil {
		return nil, nil, err
	}
	return rt, log, nil
}

func check(ctx context.Context, c *cli.Command) error {
	rt, log, err := open(ctx, c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer rt.Close()

	fmt.Fprintf(c.Root().Writer, "database schema version %d\n", rt.SchemaVersion)
	for _, name := range rt.Catalog.Names() {
		coll, _ := rt.Catalog.Collection(name)
		reg := coll.Registry()
		adapter := "none"
		if a := reg.Adapter(); a != nil {
			adapter = a.Name()
		}
		cfg := coll.Config()
		fmt.Fprintf(c.Root().Writer, "%s\tadapter=%s\tschemas=%d\tlocal=%t\tclient_side=%t\n",
			name, adapter, reg.Len(), cfg.Local, cfg.ClientSide)
	}
	return nil
}

func schemaPut(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("usage: schema put <collection> <definition.json>")
	}
	raw, err := os.ReadFile(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("read definition: %w", err)
	}
	var selector map[string]any
	if s := c.String("selector"); s != "" {
		if err := json.Unmarshal([]byte(s), &selector); err != nil {
			return fmt.Errorf("selector: %w", err)
		}
	}

	rt, log, err := open(ctx, c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer rt.Close()

	return rt.Schemas.Put(ctx, domain.StoredSchema{
		Collection: c.Args().Get(0),
		Adapter:    c.String("adapter"),
		Selector:   selector,
		Definition: raw,
		Replace:    c.Bool("replace"),
	})
}

func schemaList(ctx context.Context, c *cli.Command) error {
	rt, log, err := open(ctx, c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer rt.Close()

	stored, err := rt.Schemas.List(ctx, c.Args().First())
	if err != nil {
		return err
	}
	for _, s := range stored {
		selector, _ := json.Marshal(s.Selector)
		fmt.Fprintf(c.Root().Writer, "%s\t%s\tselector=%s\treplace=%t\t%s\n",
			s.Collection, s.Adapter, selector, s.Replace, s.Definition)
	}
	return nil
}

func audit(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("usage: audit <collection>")
	}
	rt, log, err := open(ctx, c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer rt.Close()

	events, err := rt.Audit.List(ctx, c.Args().First(), int(c.Int("limit")))
	if err != nil {
		return err
	}
	for _, e := range events {
		fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\tactor=%s\ttrusted=%t\taffected=%d\n",
			e.At.Format(time.RFC3339), e.Action, e.DocumentID, e.Actor, e.Trusted, e.Affected)
	}
	return nil
}

func keysCreate(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("usage: keys create <name>")
	}
	rt, log, err := open(ctx, c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer rt.Close()

	token, err := rt.Auth.Issue(ctx, c.String("tenant"), c.Args().First(), c.Bool("admin"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.Root().Writer, token)
	return nil
}

func keysRevoke(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("usage: keys revoke <token>")
	}
	rt, log, err := open(ctx, c)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer rt.Close()

	return rt.Auth.Revoke(ctx, c.Args().First())
}
