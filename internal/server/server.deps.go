// FilePath: internal/server/server.deps.go
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/mailguard/ingest/internal/auth"
	"github.com/mailguard/ingest/internal/classifier"
	"github.com/mailguard/ingest/internal/config"
	"github.com/mailguard/ingest/internal/correlator"
	"github.com/mailguard/ingest/internal/database"
	"github.com/mailguard/ingest/internal/identity"
	"github.com/mailguard/ingest/internal/ingestservice"
	"github.com/mailguard/ingest/internal/notify"
	"github.com/mailguard/ingest/internal/ratelimit"
	"github.com/mailguard/ingest/internal/repository"
	"github.com/mailguard/ingest/internal/repository/files"
	"github.com/mailguard/ingest/internal/repository/memory"
	"github.com/mailguard/ingest/internal/repository/postgres"
	"github.com/mailguard/ingest/internal/repository/s3store"
	"github.com/mailguard/ingest/internal/repository/timescale"
	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"
)

const rateLimitPrefix = "mailguard:rl:"

// dependencies are the external resources selected by configuration
type dependencies struct {
	store     *repository.Store
	blobs     repository.BlobStore
	limiter   ratelimit.Limiter
	provider  notify.IdentityProvider
	transport notify.Transport
	closers   []func() error
}

// Close releases connections in reverse order of acquisition
func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			nuts.L.Warnf("[Server] Error closing dependency: %v", err)
		}
	}
	d.closers = nil
}

func buildDependencies(ctx context.Context, cfg *config.Config) (*dependencies, error) {
	deps := &dependencies{}

	if err := deps.initStore(ctx, cfg); err != nil {
		deps.Close()
		return nil, err
	}
	if err := deps.initBlobStore(ctx, cfg.BlobStore); err != nil {
		deps.Close()
		return nil, err
	}
	if err := deps.initLimiter(ctx, cfg.Redis); err != nil {
		deps.Close()
		return nil, err
	}
	deps.initNotification(cfg)
	return deps, nil
}

func (d *dependencies) initStore(ctx context.Context, cfg *config.Config) error {
	if cfg.Database.Driver == "memory" {
		nuts.L.Warnf("[Server] Using the in-process store; data is lost on restart")
		d.store = memory.NewDB().Store()
		return nil
	}

	appDB, err := initAppDB(ctx, cfg.Database.AppDB)
	if err != nil {
		return err
	}
	d.closers = append(d.closers, appDB.Close)

	if err := postgres.EnsureSchema(ctx, appDB); err != nil {
		return err
	}

	healthDB, hypertable := appDB, false
	if cfg.Database.TimescaleDB.Host != "" {
		tsdb, err := initTimescaleDB(ctx, cfg.Database.TimescaleDB)
		if err != nil {
			return err
		}
		d.closers = append(d.closers, tsdb.Close)
		healthDB, hypertable = tsdb, true
	}

	health, err := timescale.NewHealthRepository(ctx, healthDB, hypertable, cfg.Ingestion.HealthRetention)
	if err != nil {
		return fmt.Errorf("failed to initialize health repository: %w", err)
	}

	d.store = postgres.NewStore(appDB, health)
	return nil
}

func (d *dependencies) initBlobStore(ctx context.Context, cfg config.BlobStoreConfig) error {
	switch cfg.Driver {
	case "s3":
		blobs, err := s3store.NewS3Repository(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize s3 blob store: %w", err)
		}
		d.blobs = blobs
	default:
		blobs, err := files.NewFileRepository(cfg.BasePath)
		if err != nil {
			return fmt.Errorf("failed to initialize file blob store: %w", err)
		}
		d.blobs = blobs
	}
	return nil
}

func (d *dependencies) initLimiter(ctx context.Context, cfg config.RedisConfig) error {
	if cfg.Host == "" {
		nuts.L.Infof("[Server] No redis configured; rate limits are per process")
		d.limiter = ratelimit.NewMemoryLimiter()
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	d.closers = append(d.closers, client.Close)

	nuts.L.Infof("[Server] Rate limits shared through redis at %s:%d", cfg.Host, cfg.Port)
	d.limiter = ratelimit.NewRedisLimiter(client, rateLimitPrefix)
	return nil
}

func (d *dependencies) initNotification(cfg *config.Config) {
	var transport notify.Transport = notify.LogTransport{}
	if cfg.Notification.Transport == "smtp" {
		transport = notify.NewSMTPTransport(cfg.Notification)
	}
	d.transport = notify.NewBreakerTransport(
		transport,
		cfg.Notification.Transport,
		cfg.Notification.BreakerFailures,
		cfg.Notification.BreakerOpenFor,
	)

	if cfg.Keycloak.URL != "" {
		d.provider = notify.NewKeycloakProvider(cfg.Keycloak)
		return
	}
	d.provider = notify.StaticProvider(cfg.Notification.StaticRecipients)
}

func newIngestService(cfg *config.Config, deps *dependencies, gate *auth.Gate, notifier ingestservice.Notifier) (*ingestservice.IngestService, error) {
	timeout := cfg.Ingestion.OperationTimeout
	return ingestservice.New(ingestservice.Components{
		Store:         deps.store,
		Blobs:         deps.blobs,
		Gate:          gate,
		Reconciler:    identity.NewReconciler(deps.store.Devices, timeout),
		Classifier:    classifier.New(classifier.StatusBaseline{Status: deps.store.Status}, cfg.Ingestion.WeightThreshold, timeout),
		Correlator:    correlator.New(deps.store.Events, deps.store.Images, cfg.Ingestion.CorrelationWindow, timeout),
		Notifier:      notifier,
		Ingestion:     cfg.Ingestion,
		PublicBaseURL: cfg.Server.PublicBaseURL,
		BootstrapKey:  cfg.Auth.BootstrapAdminKey,
	})
}

func initTimescaleDB(ctx context.Context, cfg config.PostgresConfig) (database.DB, error) {
	db, err := database.NewTimescaleDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TimescaleDB: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping TimescaleDB: %w", err)
	}
	return db, nil
}

func initAppDB(ctx context.Context, cfg config.PostgresConfig) (database.DB, error) {
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AppDB: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping AppDB: %w", err)
	}
	return db, nil
}
