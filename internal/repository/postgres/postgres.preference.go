// FilePath: internal/repository/postgres/postgres.preference.go
package postgres

import (
	"context"

	"github.com/mailguard/ingest/internal/database"
	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
)

type PreferenceRepo struct {
	PostgresBaseRepo
}

func NewPreferenceRepository(db database.DB) *PreferenceRepo {
	return &PreferenceRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *PreferenceRepo) Get(ctx context.Context, accountID string) (*models.NotificationPreference, error) {
	pref := &models.NotificationPreference{}
	query := `SELECT * FROM notification_preferences WHERE account_id = $1`

	err := r.db.GetDB().GetContext(ctx, pref, query, accountID)
	if err != nil {
		if isNoRows(err) {
			return nil, errors.NewNotFoundError("notification preferences not found", err)
		}
		return nil, dbError("failed to get notification preferences", err)
	}
	return pref, nil
}
