package ingestservice

import (
	"context"

	"github.com/itsatony/struccy"
	"github.com/mailguard/ingest/internal/auth"
	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/validation"
	nuts "github.com/vaudience/go-nuts"
)

const defaultEventLimit = 20

// DeviceStatus returns validity, claim state and the last health snapshot of a serial.
// Owner fields are only visible to admin credentials.
func (s *IngestService) DeviceStatus(ctx context.Context, p *models.Principal, serial string) (*models.DeviceStatusView, error) {
	if err := validation.RequireSerial(serial); err != nil {
		return nil, err
	}
	if err := auth.CheckSerial(p, serial); err != nil {
		return nil, err
	}

	rec, err := s.lookup(ctx, serial)
	if err != nil {
		return nil, err
	}
	status, err := s.status(ctx, serial)
	if err != nil {
		return nil, err
	}

	view := &models.DeviceStatusView{
		Serial:           serial,
		IsValid:          rec.Identity.IsValid,
		IsClaimed:        rec.Claimed,
		ClaimStatus:      rec.Status,
		DeviceModel:      rec.Identity.Model,
		ManufacturedDate: rec.Identity.ManufacturedDate,
		ClaimedBy:        rec.AccountID,
		ClaimedAt:        rec.Identity.ClaimedAt,
		DeviceID:         rec.DeviceID(),
		Status:           status,
	}

	roles := p.Roles()
	filteredMap, err := struccy.StructToMapFieldsWithReadXS(view, roles)
	if err != nil {
		return nil, errors.NewInternalError("failed to filter device status fields", err)
	}
	filtered := &models.DeviceStatusView{}
	if _, err := struccy.MergeMapStringFieldsToStruct(filtered, filteredMap, roles); err != nil {
		return nil, errors.NewInternalError("failed to map filtered fields to device status", err)
	}
	return filtered, nil
}

// RecentEvents returns the claimed and orphan event history of a serial, newest first
func (s *IngestService) RecentEvents(ctx context.Context, p *models.Principal, q *models.EventsQuery) (*models.RecentEventsResponse, error) {
	serial := q.Value()
	if err := validation.RequireSerial(serial); err != nil {
		return nil, err
	}
	if err := auth.CheckSerial(p, serial); err != nil {
		return nil, err
	}
	if _, err := s.lookup(ctx, serial); err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}

	var events []models.EventRef
	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		events, err = s.store.Events.Find(ctx, models.EventQuery{Serial: serial, Limit: limit})
		return err
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to load events", err)
	}
	if events == nil {
		events = []models.EventRef{}
	}

	status, err := s.status(ctx, serial)
	if err != nil {
		return nil, err
	}
	return &models.RecentEventsResponse{Serial: serial, Events: events, Status: status}, nil
}

// lookup resolves a serial without registering it; unknown serials are NotFound
func (s *IngestService) lookup(ctx context.Context, serial string) (*models.Reconciliation, error) {
	rec, err := s.reconciler.Lookup(ctx, serial)
	if err == nil {
		return rec, nil
	}
	if errors.IsNotFound(err) {
		return nil, errors.NewNotFoundError("serial number not found", err).
			WithDetails(map[string]string{"serial_number": serial})
	}
	nuts.L.Errorf("[Ingest] Failed to look up %s: %v", serial, err)
	return nil, errors.NewInternalError("failed to look up serial number", err)
}

// status returns the snapshot of a serial, or nil if it never reported
func (s *IngestService) status(ctx context.Context, serial string) (*models.DeviceStatus, error) {
	var status *models.DeviceStatus
	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		status, err = s.store.Status.Get(ctx, serial)
		return err
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.NewInternalError("failed to load device status", err)
	}
	return status, nil
}
