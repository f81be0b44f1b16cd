package ingestservice

import (
	"context"
	"time"

	"github.com/mailguard/ingest/internal/auth"
	"github.com/mailguard/ingest/internal/classifier"
	"github.com/mailguard/ingest/internal/config"
	"github.com/mailguard/ingest/internal/correlator"
	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/identity"
	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/repository"
)

// Notifier accepts notification jobs for persisted canonical events
type Notifier interface {
	Schedule(job models.NotificationJob)
	Enqueue(job models.NotificationJob) bool
}

// Components are the collaborators of the ingestion service
type Components struct {
	Store         *repository.Store
	Blobs         repository.BlobStore
	Gate          *auth.Gate
	Reconciler    *identity.Reconciler
	Classifier    *classifier.Classifier
	Correlator    *correlator.Correlator
	Notifier      Notifier
	Ingestion     config.IngestionConfig
	PublicBaseURL string
	BootstrapKey  string
}

// IngestService runs the device ingestion flows
type IngestService struct {
	store         *repository.Store
	blobs         repository.BlobStore
	gate          *auth.Gate
	reconciler    *identity.Reconciler
	classifier    *classifier.Classifier
	correlator    *correlator.Correlator
	notifier      Notifier
	writer        *Writer
	cfg           config.IngestionConfig
	publicBaseURL string
	bootstrapKey  string
	now           func() time.Time
}

// New creates a new IngestService instance
func New(c Components) (*IngestService, error) {
	svc := &IngestService{
		store:         c.Store,
		blobs:         c.Blobs,
		gate:          c.Gate,
		reconciler:    c.Reconciler,
		classifier:    c.Classifier,
		correlator:    c.Correlator,
		notifier:      c.Notifier,
		cfg:           c.Ingestion,
		publicBaseURL: c.PublicBaseURL,
		bootstrapKey:  c.BootstrapKey,
		now:           time.Now,
	}
	if err := svc.Validate(); err != nil {
		return nil, err
	}
	if svc.cfg.OperationTimeout <= 0 {
		svc.cfg.OperationTimeout = 5 * time.Second
	}
	if svc.cfg.MaxImageSize <= 0 {
		svc.cfg.MaxImageSize = 10 << 20
	}
	svc.writer = NewWriter(c.Store, svc.cfg.OperationTimeout)
	return svc, nil
}

// Validate checks if all required collaborators are initialized
func (s *IngestService) Validate() error {
	if s.store == nil {
		return ErrMissingComponent("store")
	}
	for name, missing := range map[string]bool{
		"credentials": s.store.Credentials == nil,
		"devices":     s.store.Devices == nil,
		"status":      s.store.Status == nil,
		"health":      s.store.Health == nil,
		"events":      s.store.Events == nil,
		"images":      s.store.Images == nil,
		"preferences": s.store.Preferences == nil,
		"blobs":       s.blobs == nil,
		"gate":        s.gate == nil,
		"reconciler":  s.reconciler == nil,
		"classifier":  s.classifier == nil,
		"correlator":  s.correlator == nil,
		"notifier":    s.notifier == nil,
	} {
		if missing {
			return ErrMissingComponent(name)
		}
	}
	return nil
}

func ErrMissingComponent(name string) error {
	return errors.NewInternalError("missing component: "+name, nil)
}

func (s *IngestService) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()
	return fn(ctx)
}

// occurredAt prefers the device timestamp and falls back to receipt time
func (s *IngestService) occurredAt(ts *time.Time) time.Time {
	if ts != nil && !ts.IsZero() {
		return ts.UTC()
	}
	return s.now().UTC()
}

func (s *IngestService) lowBattery(level *int) bool {
	return level != nil && *level <= s.cfg.LowBatteryFloor
}
