// FilePath: internal/repository/postgres/postgres.event.go
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailguard/ingest/internal/database"
	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
)

const defaultEventLimit = 500

type EventRepo struct {
	PostgresBaseRepo
}

func NewEventRepository(db database.DB) *EventRepo {
	return &EventRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *EventRepo) CreateCanonical(ctx context.Context, event *models.CanonicalEvent) error {
	query := `
		INSERT INTO events (
			id, device_id, serial_number, account_id, event_type, detection_method,
			weight, occurred_at, notified_at, created_at
		) VALUES (
			:id, :device_id, :serial_number, :account_id, :event_type, :detection_method,
			:weight, :occurred_at, :notified_at, :created_at
		)`

	if _, err := r.db.GetDB().NamedExecContext(ctx, query, event); err != nil {
		return dbError("failed to create event", err)
	}
	return nil
}

func (r *EventRepo) CreateOrphan(ctx context.Context, event *models.OrphanEvent) error {
	query := `
		INSERT INTO iot_events (
			id, serial_number, event_type, detection_method, weight, claim_status,
			occurred_at, created_at
		) VALUES (
			:id, :serial_number, :event_type, :detection_method, :weight, :claim_status,
			:occurred_at, :created_at
		)`

	if _, err := r.db.GetDB().NamedExecContext(ctx, query, event); err != nil {
		return dbError("failed to create iot event", err)
	}
	return nil
}

func (r *EventRepo) GetCanonical(ctx context.Context, id string) (*models.CanonicalEvent, error) {
	event := &models.CanonicalEvent{}
	query := `SELECT * FROM events WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, event, query, id)
	if err != nil {
		if isNoRows(err) {
			return nil, errors.NewNotFoundError("event not found", err)
		}
		return nil, dbError("failed to get event", err)
	}
	return event, nil
}

func (r *EventRepo) Find(ctx context.Context, q models.EventQuery) ([]models.EventRef, error) {
	args := []interface{}{q.Serial}
	conditions := []string{"serial_number = $1"}
	if !q.From.IsZero() {
		args = append(args, q.From)
		conditions = append(conditions, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		conditions = append(conditions, fmt.Sprintf("occurred_at <= $%d", len(args)))
	}
	if q.Kind != "" {
		args = append(args, q.Kind)
		conditions = append(conditions, fmt.Sprintf("event_type = $%d", len(args)))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}
	args = append(args, limit)
	where := strings.Join(conditions, " AND ")

	query := fmt.Sprintf(`
		SELECT id, 'canonical' AS source, device_id, serial_number, event_type, detection_method, occurred_at
		FROM events WHERE %[1]s
		UNION ALL
		SELECT id, 'orphan' AS source, NULL::text AS device_id, serial_number, event_type, detection_method, occurred_at
		FROM iot_events WHERE %[1]s
		ORDER BY occurred_at DESC
		LIMIT $%[2]d`, where, len(args))

	events := []models.EventRef{}
	if err := r.db.GetDB().SelectContext(ctx, &events, query, args...); err != nil {
		return nil, dbError("failed to list events", err)
	}
	return events, nil
}

func (r *EventRepo) MarkNotified(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `UPDATE events SET notified_at = $1 WHERE id = $2 AND notified_at IS NULL`
	result, err := r.db.GetDB().ExecContext(ctx, query, at, id)
	if err != nil {
		return false, dbError("failed to mark event notified", err)
	}
	rows, err := affected(result)
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
