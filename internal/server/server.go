// FilePath: internal/server/server.go
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mailguard/ingest/api"
	"github.com/mailguard/ingest/internal/auth"
	"github.com/mailguard/ingest/internal/cleanup"
	"github.com/mailguard/ingest/internal/config"
	"github.com/mailguard/ingest/internal/ingestservice"
	"github.com/mailguard/ingest/internal/monitoring"
	"github.com/mailguard/ingest/internal/notify"
	"github.com/thejerf/suture/v4"
	nuts "github.com/vaudience/go-nuts"
)

// offline transitions in a single sweep that warrant a warning
const offlineAlertThreshold = 50

// Server owns the process lifecycle: dependencies, HTTP listener and background workers
type Server struct {
	config     *config.Config
	srv        *http.Server
	deps       *dependencies
	service    *ingestservice.IngestService
	dispatcher *notify.Dispatcher
	sweeper    *cleanup.CleanupService
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	return &Server{config: cfg}
}

// Start wires all components and blocks until SIGINT or SIGTERM
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.initialize(ctx); err != nil {
		return err
	}
	defer s.deps.Close()

	supervisor := suture.New("mailguard", suture.Spec{
		EventHook: func(e suture.Event) {
			nuts.L.Warnf("[Supervisor] %s", e)
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   5 * time.Second,
		Timeout:          s.config.Server.ShutdownTimeout,
	})
	supervisor.Add(newHTTPService(s.srv, s.config.Server.ShutdownTimeout))
	supervisor.Add(s.dispatcher)
	supervisor.Add(s.sweeper)

	nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
	err := supervisor.Serve(ctx)
	if err != nil && !stderrors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor stopped: %w", err)
	}

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

func (s *Server) initialize(ctx context.Context) error {
	monitoring.Register()

	deps, err := buildDependencies(ctx, s.config)
	if err != nil {
		return err
	}
	s.deps = deps

	gate := auth.NewGate(deps.store.Credentials, deps.limiter, s.config.Auth, s.config.Ingestion.OperationTimeout)

	s.dispatcher = notify.NewDispatcher(deps.store, deps.provider, deps.transport, notify.Options{
		Workers:       s.config.Notification.Workers,
		QueueSize:     s.config.Notification.QueueSize,
		MaxAttempts:   s.config.Notification.MaxAttempts,
		Backoff:       s.config.Notification.Backoff,
		ImageGrace:    s.config.Notification.ImageGrace,
		Timeout:       s.config.Ingestion.OperationTimeout,
		PublicBaseURL: s.config.Server.PublicBaseURL,
	})

	s.service, err = newIngestService(s.config, deps, gate, s.dispatcher)
	if err != nil {
		deps.Close()
		return err
	}
	if err := s.service.EnsureBootstrapKey(ctx); err != nil {
		deps.Close()
		return fmt.Errorf("failed to install bootstrap admin key: %w", err)
	}

	s.sweeper = cleanup.New(
		deps.store.Status,
		deps.store.Health,
		s.config.Ingestion.OfflineAfter,
		s.config.Ingestion.HealthRetention,
		s.config.Ingestion.SweepInterval,
		s.config.Ingestion.OperationTimeout,
	)
	if p, ok := deps.limiter.(cleanup.Pruner); ok {
		s.sweeper.AddPruner("rate limit", p)
	}
	s.setupCleanupHandlers()

	router := api.NewRouter(s.service, gate, api.Options{
		MetricsPath:  s.config.Monitoring.MetricsPath,
		MaxImageSize: s.config.Ingestion.MaxImageSize,
		Version:      nuts.GetVersion(),
	})
	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      router.Handler(os.Stdout),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}
	return nil
}

func (s *Server) setupCleanupHandlers() {
	s.sweeper.OnCleanup(cleanup.EventDevicesOffline, func(count int64) {
		if count >= offlineAlertThreshold {
			nuts.L.Warnf("[Server] %d devices went offline in one sweep", count)
		}
	})
	s.sweeper.OnCleanup(cleanup.EventHealthPruned, func(count int64) {
		nuts.L.Debugf("[Server] Health retention removed %d samples", count)
	})
}
