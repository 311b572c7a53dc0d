// Package main is the entrypoint for the semgate gateway server. The
// gateway accepts semantic queries, authenticates callers, compiles
// requests against the catalog, and executes them on the bound engine
// with row-level security and a shared result cache.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/semgate-labs/semgate/internal/adapters"
	"github.com/semgate-labs/semgate/internal/adapters/bigquery"
	"github.com/semgate-labs/semgate/internal/adapters/clickhouse"
	"github.com/semgate-labs/semgate/internal/adapters/databricks"
	"github.com/semgate-labs/semgate/internal/adapters/duckdb"
	"github.com/semgate-labs/semgate/internal/adapters/mysql"
	"github.com/semgate-labs/semgate/internal/adapters/oracle"
	"github.com/semgate-labs/semgate/internal/adapters/postgres"
	"github.com/semgate-labs/semgate/internal/adapters/snowflake"
	"github.com/semgate-labs/semgate/internal/adapters/sqlite"
	"github.com/semgate-labs/semgate/internal/adapters/sqlserver"
	"github.com/semgate-labs/semgate/internal/adapters/trino"
	"github.com/semgate-labs/semgate/internal/auth"
	"github.com/semgate-labs/semgate/internal/cache"
	"github.com/semgate-labs/semgate/internal/catalog"
	"github.com/semgate-labs/semgate/internal/config"
	"github.com/semgate-labs/semgate/internal/gateway"
	"github.com/semgate-labs/semgate/internal/observability"
	"github.com/semgate-labs/semgate/internal/pipeline"

	_ "github.com/lib/pq" // postgres driver for the stats sink
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "Config file path")
		addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
		keys       = flag.String("keys", "", "Static API keys as key=tenant:role, comma-separated")
		showVer    = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showVer {
		fmt.Printf("semgate-gateway %s (commit: %s, built: %s)\n", version, commit, date)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	listen := *addr
	if listen == "" {
		listen = fmt.Sprintf(":%d", cfg.Server.Port)
	}

	keySpec := *keys
	if keySpec == "" {
		keySpec = os.Getenv("SEMGATE_KEYS")
	}
	authenticator, err := buildAuthenticator(keySpec)
	if err != nil {
		return err
	}

	cat := catalog.NewStaticCatalog()
	if cfg.Catalog.Path != "" {
		if err := cat.LoadFile(cfg.Catalog.Path); err != nil {
			return fmt.Errorf("loading catalog %s: %w", cfg.Catalog.Path, err)
		}
		log.Printf("Loaded catalog from %s", cfg.Catalog.Path)
	}

	registry := buildRegistry(cat)
	registry.SetHealthPolicy(cfg.Guards.HealthTimeout, adapters.DefaultRetryConfig())

	flight := buildFlight(cfg.Cache)
	if flight == nil {
		log.Println("Result cache disabled")
	}

	stats, statsDB, err := buildStats(cfg.Stats)
	if err != nil {
		return err
	}
	if statsDB != nil {
		defer statsDB.Close()
	}

	pl := pipeline.New(cat, registry, flight, stats, pipeline.Guards{
		MaxDimensions:  cfg.Guards.MaxDimensions,
		MaxMetrics:     cfg.Guards.MaxMetrics,
		MaxFilterDepth: cfg.Guards.MaxFilterDepth,
		MaxRows:        cfg.Guards.MaxRows,
		GlobalTimeout:  cfg.Guards.GlobalTimeout,
	}, cfg.Cache.DefaultTTL)

	gw, err := gateway.New(authenticator, pl, stats, version)
	if err != nil {
		return err
	}

	readTimeout, _ := time.ParseDuration(cfg.Server.ReadTimeout)
	writeTimeout, _ := time.ParseDuration(cfg.Server.WriteTimeout)
	server := &http.Server{
		Addr:         listen,
		Handler:      gw,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down gateway...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
		if err := registry.CloseAll(); err != nil {
			log.Printf("Adapter close error: %v", err)
		}
		close(done)
	}()

	log.Printf("semgate gateway starting on %s", listen)
	log.Printf("Version: %s, Commit: %s", version, commit)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	log.Println("Gateway stopped")
	return nil
}

// buildAuthenticator parses key=tenant:role entries into a static
// authenticator.
func buildAuthenticator(spec string) (auth.Authenticator, error) {
	authenticator := auth.NewStaticKeyAuthenticator()
	if spec == "" {
		return authenticator, nil
	}

	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, ident, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid key entry %q: want key=tenant:role", entry)
		}
		tenant, role, ok := strings.Cut(ident, ":")
		if !ok {
			role = string(auth.RoleUser)
		}
		tc := auth.TenantContext{Tenant: tenant, Role: auth.Role(role), KeyID: key}
		if err := tc.Validate(); err != nil {
			return nil, fmt.Errorf("invalid key entry %q: %w", entry, err)
		}
		authenticator.RegisterKey(key, tc)
	}
	return authenticator, nil
}

// buildRegistry installs every supported engine factory.
func buildRegistry(sources catalog.SourceProvider) *adapters.Registry {
	registry := adapters.NewRegistry(sources)

	for _, engine := range []string{"postgres", "redshift", "timescaledb", "cockroachdb"} {
		registry.RegisterFactory(engine, postgres.Factory(engine))
	}
	registry.RegisterFactory("mysql", mysql.NewFromSource)
	registry.RegisterFactory("mariadb", mysql.NewFromSource)
	registry.RegisterFactory("sqlite", sqlite.NewFromSource)
	registry.RegisterFactory("duckdb", duckdb.NewFromSource)
	registry.RegisterFactory("snowflake", snowflake.NewFromSource)
	registry.RegisterFactory("bigquery", bigquery.NewFromSource)
	registry.RegisterFactory("databricks", databricks.NewFromSource)
	registry.RegisterFactory("clickhouse", clickhouse.NewFromSource)
	registry.RegisterFactory("trino", trino.NewFromSource)
	registry.RegisterFactory("sqlserver", sqlserver.NewFromSource)
	registry.RegisterFactory("oracle", oracle.NewFromSource)

	return registry
}

// buildFlight wires the cache layer: Redis when configured, in-memory
// otherwise, nil when disabled.
func buildFlight(cfg config.CacheConfig) *cache.Flight {
	if !cfg.Enabled {
		return nil
	}

	var store cache.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store = cache.NewRedisStore(client)
		log.Printf("Result cache backed by redis at %s", cfg.RedisAddr)
	} else {
		store = cache.NewMemoryStore()
		log.Println("Result cache backed by process memory")
	}

	return cache.NewFlight(store, cache.Options{
		LockTTL:       cfg.LockTTL,
		WaitTimeout:   cfg.WaitTimeout,
		PollInterval:  cfg.PollInterval,
		Fallback:      cache.FallbackMode(cfg.Fallback),
		MaxValueBytes: cfg.MaxValueBytes,
	})
}

// buildStats wires the stat sink. The returned DB, if any, must be
// closed by the caller on shutdown.
func buildStats(cfg config.StatsConfig) (observability.StatsEmitter, *sql.DB, error) {
	switch cfg.Sink {
	case "", "stdout":
		return observability.NewJSONEmitter(os.Stdout), nil, nil
	case "none":
		return observability.NewNoopEmitter(), nil, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("stats sink: %w", err)
		}
		emitter, err := observability.NewPersistentEmitterWithWriter(db, os.Stdout)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return emitter, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown stats sink %q", cfg.Sink)
	}
}
