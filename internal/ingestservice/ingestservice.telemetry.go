package ingestservice

import (
	"context"
	"time"

	"github.com/mailguard/ingest/internal/auth"
	"github.com/mailguard/ingest/internal/classifier"
	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/monitoring"
	nuts "github.com/vaudience/go-nuts"
)

// IngestTelemetry classifies one telemetry report, appends the event and runs the
// best-effort side effects. Only a failed event write fails the request.
func (s *IngestService) IngestTelemetry(ctx context.Context, p *models.Principal, req *models.TelemetryReportRequest) (*models.TelemetryReportResponse, error) {
	defer monitoring.ObserveSince("telemetry", time.Now())

	if err := auth.CheckSerial(p, req.Serial); err != nil {
		return nil, err
	}

	decision, err := s.classifier.Classify(ctx, classifier.Input{
		Serial:     req.Serial,
		ReedSensor: req.EventData.ReedSensor,
		Label:      req.EventData.EventType,
		MethodHint: req.EventData.DetectionMethod,
		Weight:     req.EventData.WeightValue,
		Threshold:  req.EventData.WeightThreshold,
	})
	if err != nil {
		return nil, err
	}

	rec, err := s.reconciler.Reconcile(ctx, req.Serial)
	if err != nil {
		return nil, err
	}

	occurredAt := s.occurredAt(req.Timestamp)
	ref, err := s.writer.AppendEvent(ctx, rec, req.Serial, decision, req.EventData.WeightValue, occurredAt)
	if err != nil {
		return nil, err
	}
	monitoring.TelemetryEventsTotal.WithLabelValues(string(decision.Kind), string(decision.Method), string(rec.Status)).Inc()

	update := &models.StatusUpdate{
		Serial:          req.Serial,
		FirmwareVersion: req.FirmwareVersion,
		BatteryLevel:    req.BatteryLevel,
		SignalStrength:  req.SignalStrength,
		Temperature:     req.Temperature,
		Weight:          req.EventData.WeightValue,
		SeenAt:          s.now().UTC(),
	}
	s.writer.UpdateStatus(ctx, update)
	s.writer.RecordHealth(ctx, update, rec.DeviceID())

	warning := s.lowBattery(req.BatteryLevel)
	if warning {
		monitoring.LowBatteryTotal.Inc()
		nuts.L.Warnf("[Ingest] Low battery on %s: %d%%", req.Serial, *req.BatteryLevel)
	}

	var imageID *string
	if decision.Kind == models.EventKindDelivery {
		attached, err := s.correlator.AttachPending(ctx, ref)
		if err != nil {
			monitoring.SecondaryFailuresTotal.WithLabelValues("correlation").Inc()
			nuts.L.Warnf("[Ingest] Failed to correlate pending images with event %s: %v", ref.ID, err)
		}
		if len(attached) > 0 {
			id := attached[0].ID
			imageID = &id
			nuts.L.Infof("[Ingest] Attached %d earlier image(s) to delivery %s", len(attached), ref.ID)
		}
	}

	if rec.Status == models.ClaimStatusClaimedDevice && rec.Dashboard != nil {
		s.notifier.Schedule(models.NotificationJob{
			EventID:    ref.ID,
			DeviceID:   rec.Dashboard.ID,
			Serial:     req.Serial,
			AccountID:  rec.Dashboard.AccountID,
			Kind:       decision.Kind,
			OccurredAt: occurredAt,
			ImageID:    imageID,
		})
	}

	nuts.L.Infof("[Ingest] %s: %s via %s (%s)", req.Serial, decision.Kind, decision.Method, rec.Status)
	return &models.TelemetryReportResponse{
		EventID:         ref.ID,
		EventKind:       decision.Kind,
		DetectionMethod: decision.Method,
		DeviceID:        rec.DeviceID(),
		Serial:          req.Serial,
		Status:          rec.Status,
		WeightData:      decision.WeightData,
		BatteryWarning:  warning,
		OccurredAt:      occurredAt,
	}, nil
}

// ReportStatus records a health-only report without classifying an event
func (s *IngestService) ReportStatus(ctx context.Context, p *models.Principal, req *models.StatusReportRequest) (*models.StatusReportResponse, error) {
	defer monitoring.ObserveSince("status_report", time.Now())

	if err := auth.CheckSerial(p, req.Serial); err != nil {
		return nil, err
	}

	rec, err := s.reconciler.Reconcile(ctx, req.Serial)
	if err != nil {
		return nil, err
	}

	update := &models.StatusUpdate{
		Serial:          req.Serial,
		FirmwareVersion: req.FirmwareVersion,
		BatteryLevel:    req.BatteryLevel,
		SignalStrength:  req.SignalStrength,
		Temperature:     req.Temperature,
		Weight:          req.WeightValue,
		SeenAt:          s.now().UTC(),
		MeasuredAt:      s.occurredAt(req.Timestamp),
	}
	status := s.writer.UpdateStatus(ctx, update)
	s.writer.RecordHealth(ctx, update, rec.DeviceID())

	warning := s.lowBattery(req.BatteryLevel)
	if warning {
		monitoring.LowBatteryTotal.Inc()
		nuts.L.Warnf("[Ingest] Low battery on %s: %d%%", req.Serial, *req.BatteryLevel)
	}

	return &models.StatusReportResponse{Serial: req.Serial, Status: status, BatteryWarning: warning}, nil
}

// Activate registers or reactivates a device that announces itself
func (s *IngestService) Activate(ctx context.Context, p *models.Principal, req *models.ActivationRequest) (*models.ActivationResponse, error) {
	if err := auth.CheckSerial(p, req.Serial); err != nil {
		return nil, err
	}

	rec, err := s.reconciler.Reconcile(ctx, req.Serial)
	if err != nil {
		return nil, err
	}

	s.writer.UpdateStatus(ctx, &models.StatusUpdate{
		Serial:          req.Serial,
		DeviceType:      req.DeviceType,
		FirmwareVersion: req.FirmwareVersion,
		SeenAt:          s.now().UTC(),
	})

	if rec.Created {
		nuts.L.Infof("[Ingest] Activated new device %s", req.Serial)
	}
	return &models.ActivationResponse{
		Serial:      req.Serial,
		IsValid:     rec.Identity.IsValid,
		IsClaimed:   rec.Claimed,
		ClaimStatus: rec.Status,
		Registered:  rec.Created,
		DeviceID:    rec.DeviceID(),
	}, nil
}
