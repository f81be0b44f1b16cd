// FilePath: internal/repository/postgres/postgres.image.go
package postgres

import (
	"context"
	"time"

	"github.com/mailguard/ingest/internal/database"
	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
)

const defaultImageLimit = 20

type ImageRepo struct {
	PostgresBaseRepo
}

func NewImageRepository(db database.DB) *ImageRepo {
	return &ImageRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *ImageRepo) Create(ctx context.Context, image *models.CapturedImage) error {
	query := `
		INSERT INTO images (
			id, serial_number, device_id, event_type, blob_key, content_type, size,
			captured_at, event_id, event_source, match_strategy, created_at
		) VALUES (
			:id, :serial_number, :device_id, :event_type, :blob_key, :content_type, :size,
			:captured_at, :event_id, :event_source, :match_strategy, :created_at
		)`

	if _, err := r.db.GetDB().NamedExecContext(ctx, query, image); err != nil {
		return dbError("failed to create image", err)
	}
	return nil
}

func (r *ImageRepo) Get(ctx context.Context, id string) (*models.CapturedImage, error) {
	image := &models.CapturedImage{}
	query := `SELECT * FROM images WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, image, query, id)
	if err != nil {
		if isNoRows(err) {
			return nil, errors.NewNotFoundError("image not found", err)
		}
		return nil, dbError("failed to get image", err)
	}
	return image, nil
}

func (r *ImageRepo) List(ctx context.Context, q models.ImageQuery) ([]*models.CapturedImage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultImageLimit
	}
	images := []*models.CapturedImage{}
	query := `
		SELECT * FROM images
		WHERE serial_number = $1 AND ($2 = '' OR event_type = $2)
		ORDER BY captured_at DESC
		LIMIT $3`

	if err := r.db.GetDB().SelectContext(ctx, &images, query, q.Serial, string(q.Kind), limit); err != nil {
		return nil, dbError("failed to list images", err)
	}
	return images, nil
}

func (r *ImageRepo) ListUnmatched(ctx context.Context, serial string, from, to time.Time) ([]*models.CapturedImage, error) {
	images := []*models.CapturedImage{}
	query := `
		SELECT * FROM images
		WHERE serial_number = $1 AND event_id IS NULL AND captured_at BETWEEN $2 AND $3
		ORDER BY captured_at DESC`

	if err := r.db.GetDB().SelectContext(ctx, &images, query, serial, from, to); err != nil {
		return nil, dbError("failed to list unmatched images", err)
	}
	return images, nil
}

func (r *ImageRepo) GetByEvent(ctx context.Context, eventID string) (*models.CapturedImage, error) {
	image := &models.CapturedImage{}
	query := `SELECT * FROM images WHERE event_id = $1 ORDER BY captured_at DESC LIMIT 1`

	err := r.db.GetDB().GetContext(ctx, image, query, eventID)
	if err != nil {
		if isNoRows(err) {
			return nil, errors.NewNotFoundError("no image for event", err)
		}
		return nil, dbError("failed to get image for event", err)
	}
	return image, nil
}

func (r *ImageRepo) AttachEvent(ctx context.Context, imageID string, event models.EventRef, strategy string) (bool, error) {
	query := `
		UPDATE images SET
			event_id = $1,
			event_source = $2,
			match_strategy = $3,
			device_id = COALESCE(device_id, $4)
		WHERE id = $5 AND event_id IS NULL`

	result, err := r.db.GetDB().ExecContext(ctx, query, event.ID, event.Source, strategy, event.DeviceID, imageID)
	if err != nil {
		return false, dbError("failed to attach image to event", err)
	}
	rows, err := affected(result)
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
