// FilePath: internal/repository/postgres/postgres.credential.go
package postgres

import (
	"context"
	"time"

	"github.com/mailguard/ingest/internal/database"
	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
)

type CredentialRepo struct {
	PostgresBaseRepo
}

func NewCredentialRepository(db database.DB) *CredentialRepo {
	return &CredentialRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *CredentialRepo) Create(ctx context.Context, cred *models.Credential) error {
	query := `
		INSERT INTO api_keys (
			id, key_hash, type, device_serial, name, is_active, last_used_at, created_at
		) VALUES (
			:id, :key_hash, :type, :device_serial, :name, :is_active, :last_used_at, :created_at
		)
		ON CONFLICT (key_hash) DO NOTHING`

	if _, err := r.db.GetDB().NamedExecContext(ctx, query, cred); err != nil {
		return dbError("failed to create api key", err)
	}
	return nil
}

func (r *CredentialRepo) FindActive(ctx context.Context, keyHash string, class models.CredentialClass) (*models.Credential, error) {
	cred := &models.Credential{}
	query := `SELECT * FROM api_keys WHERE key_hash = $1 AND type = $2 AND is_active = TRUE`

	err := r.db.GetDB().GetContext(ctx, cred, query, keyHash, class)
	if err != nil {
		if isNoRows(err) {
			return nil, errors.NewNotFoundError("api key not found", err)
		}
		return nil, dbError("failed to verify api key", err)
	}
	return cred, nil
}

func (r *CredentialRepo) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`
	result, err := r.db.GetDB().ExecContext(ctx, query, at, id)
	if err != nil {
		return dbError("failed to update api key usage", err)
	}
	rows, err := affected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NewNotFoundError("api key not found", nil)
	}
	return nil
}
