package ingestservice

import (
	"context"

	"github.com/mailguard/ingest/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// SeedSerial provisions a serial number explicitly; created is false when it already existed
func (s *IngestService) SeedSerial(ctx context.Context, req *models.SeedSerialRequest) (*models.DeviceIdentity, bool, error) {
	identity := &models.DeviceIdentity{
		Serial: req.Serial,
		Model:  req.DeviceModel,
	}
	if req.ManufacturedDate != nil {
		identity.ManufacturedDate = req.ManufacturedDate.UTC()
	}

	created, err := s.reconciler.Seed(ctx, identity)
	if err != nil {
		return nil, false, err
	}
	if !created {
		rec, err := s.lookup(ctx, req.Serial)
		if err != nil {
			return nil, false, err
		}
		return rec.Identity, false, nil
	}

	nuts.L.Infof("[Admin] Seeded serial %s (%s)", identity.Serial, identity.Model)
	return identity, true, nil
}

// IssueKey creates a credential and returns its plaintext once
func (s *IngestService) IssueKey(ctx context.Context, req *models.IssueKeyRequest) (*models.IssuedCredential, error) {
	return s.gate.Issue(ctx, req.Type, req.DeviceSerial, req.Name)
}

// EnsureBootstrapKey stores the configured bootstrap admin key, if any
func (s *IngestService) EnsureBootstrapKey(ctx context.Context) error {
	if s.bootstrapKey == "" {
		return nil
	}
	if err := s.gate.EnsureKey(ctx, s.bootstrapKey, models.CredentialClassAdmin, "bootstrap"); err != nil {
		return err
	}
	nuts.L.Infof("[Admin] Bootstrap admin key ensured")
	return nil
}
