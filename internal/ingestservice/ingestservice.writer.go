package ingestservice

import (
	"context"
	"time"

	"github.com/mailguard/ingest/internal/classifier"
	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/monitoring"
	"github.com/mailguard/ingest/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// Writer persists classified events and the status snapshot.
// Events are append-only; status writes are last-writer-wins.
type Writer struct {
	events  repository.EventRepository
	status  repository.StatusRepository
	health  repository.HealthRepository
	timeout time.Duration
	now     func() time.Time
}

func NewWriter(store *repository.Store, timeout time.Duration) *Writer {
	return &Writer{
		events:  store.Events,
		status:  store.Status,
		health:  store.Health,
		timeout: timeout,
		now:     time.Now,
	}
}

// AppendEvent stores the event in the canonical domain when the serial is linked to a
// dashboard device, and in the orphan domain otherwise
func (w *Writer) AppendEvent(ctx context.Context, rec *models.Reconciliation, serial string, decision *classifier.Decision, weight *float64, occurredAt time.Time) (models.EventRef, error) {
	defer monitoring.ObserveSince("event_write", time.Now())
	now := w.now().UTC()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if rec.Dashboard != nil {
		event := &models.CanonicalEvent{
			ID:              nuts.NID("evt", 12),
			DeviceID:        rec.Dashboard.ID,
			Serial:          serial,
			AccountID:       rec.Dashboard.AccountID,
			Kind:            decision.Kind,
			DetectionMethod: decision.Method,
			Weight:          weight,
			OccurredAt:      occurredAt,
			CreatedAt:       now,
		}
		if err := w.events.CreateCanonical(ctx, event); err != nil {
			nuts.L.Errorf("[Writer] Failed to store %s event for %s: %v", decision.Kind, serial, err)
			return models.EventRef{}, errors.NewInternalError("failed to record event", err)
		}
		nuts.L.Debugf("[Writer] Stored event %s (%s) for device %s", event.ID, event.Kind, event.DeviceID)
		return event.Ref(), nil
	}

	event := &models.OrphanEvent{
		ID:              nuts.NID("oev", 12),
		Serial:          serial,
		Kind:            decision.Kind,
		DetectionMethod: decision.Method,
		Weight:          weight,
		ClaimStatus:     rec.Status,
		OccurredAt:      occurredAt,
		CreatedAt:       now,
	}
	if err := w.events.CreateOrphan(ctx, event); err != nil {
		nuts.L.Errorf("[Writer] Failed to store %s orphan event for %s: %v", decision.Kind, serial, err)
		return models.EventRef{}, errors.NewInternalError("failed to record event", err)
	}
	nuts.L.Debugf("[Writer] Stored orphan event %s (%s, %s) for %s", event.ID, event.Kind, event.ClaimStatus, serial)
	return event.Ref(), nil
}

// UpdateStatus applies a report to the status snapshot. Failures are logged and counted, never returned.
func (w *Writer) UpdateStatus(ctx context.Context, update *models.StatusUpdate) *models.DeviceStatus {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if update.SeenAt.IsZero() {
		update.SeenAt = w.now().UTC()
	}
	status, err := w.status.Upsert(ctx, update)
	if err != nil {
		monitoring.SecondaryFailuresTotal.WithLabelValues("status").Inc()
		nuts.L.Warnf("[Writer] Failed to update status of %s: %v", update.Serial, err)
		return nil
	}
	return status
}

// RecordHealth historizes the health readings of a report, if it carries any
func (w *Writer) RecordHealth(ctx context.Context, update *models.StatusUpdate, deviceID *string) {
	if update.BatteryLevel == nil && update.SignalStrength == nil && update.Temperature == nil && update.Weight == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	sample := &models.HealthSample{
		ID:             nuts.NID("hs", 12),
		Serial:         update.Serial,
		DeviceID:       deviceID,
		BatteryLevel:   update.BatteryLevel,
		SignalStrength: update.SignalStrength,
		Temperature:    update.Temperature,
		Weight:         update.Weight,
		RecordedAt:     update.MeasuredAt,
	}
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = update.SeenAt
	}
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = w.now().UTC()
	}
	if err := w.health.Insert(ctx, sample); err != nil {
		monitoring.SecondaryFailuresTotal.WithLabelValues("health").Inc()
		nuts.L.Warnf("[Writer] Failed to store health sample of %s: %v", update.Serial, err)
	}
}
