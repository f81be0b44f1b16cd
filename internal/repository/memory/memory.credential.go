// FilePath: internal/repository/memory/memory.credential.go
package memory

import (
	"context"
	"time"

	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
)

type CredentialRepo struct {
	db *DB
}

func (r *CredentialRepo) Create(ctx context.Context, cred *models.Credential) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.credentials {
		if existing.KeyHash == cred.KeyHash {
			return nil
		}
	}
	c := *cred
	r.db.credentials[c.ID] = &c
	r.db.writes.Add(1)
	return nil
}

func (r *CredentialRepo) FindActive(ctx context.Context, keyHash string, class models.CredentialClass) (*models.Credential, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, c := range r.db.credentials {
		if c.KeyHash == keyHash && c.Class == class && c.IsActive {
			out := *c
			return &out, nil
		}
	}
	return nil, errors.NewNotFoundError("api key not found", nil)
}

func (r *CredentialRepo) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.credentials[id]
	if !ok {
		return errors.NewNotFoundError("api key not found", nil)
	}
	c.LastUsedAt = &at
	return nil
}
