// FilePath: internal/repository/memory/memory.event.go
package memory

import (
	"context"
	"sort"
	"time"

	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
)

type EventRepo struct {
	db *DB
}

func (r *EventRepo) CreateCanonical(ctx context.Context, event *models.CanonicalEvent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.canonical[event.ID]; ok {
		return errors.NewDatabaseError("duplicate event id", nil)
	}
	e := *event
	r.db.canonical[e.ID] = &e
	r.db.writes.Add(1)
	return nil
}

func (r *EventRepo) CreateOrphan(ctx context.Context, event *models.OrphanEvent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.orphans[event.ID]; ok {
		return errors.NewDatabaseError("duplicate iot event id", nil)
	}
	e := *event
	r.db.orphans[e.ID] = &e
	r.db.writes.Add(1)
	return nil
}

func (r *EventRepo) GetCanonical(ctx context.Context, id string) (*models.CanonicalEvent, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	event, ok := r.db.canonical[id]
	if !ok {
		return nil, errors.NewNotFoundError("event not found", nil)
	}
	out := *event
	return &out, nil
}

func (r *EventRepo) Find(ctx context.Context, q models.EventQuery) ([]models.EventRef, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []models.EventRef{}
	match := func(ref models.EventRef) bool {
		if ref.Serial != q.Serial {
			return false
		}
		if !q.From.IsZero() && ref.OccurredAt.Before(q.From) {
			return false
		}
		if !q.To.IsZero() && ref.OccurredAt.After(q.To) {
			return false
		}
		return q.Kind == "" || ref.Kind == q.Kind
	}
	for _, e := range r.db.canonical {
		if ref := e.Ref(); match(ref) {
			out = append(out, ref)
		}
	}
	for _, e := range r.db.orphans {
		if ref := e.Ref(); match(ref) {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *EventRepo) MarkNotified(ctx context.Context, id string, at time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	event, ok := r.db.canonical[id]
	if !ok {
		return false, errors.NewNotFoundError("event not found", nil)
	}
	if event.NotifiedAt != nil {
		return false, nil
	}
	event.NotifiedAt = &at
	r.db.writes.Add(1)
	return true, nil
}

type ImageRepo struct {
	db *DB
}

func (r *ImageRepo) Create(ctx context.Context, image *models.CapturedImage) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	i := *image
	r.db.images[i.ID] = &i
	r.db.writes.Add(1)
	return nil
}

func (r *ImageRepo) Get(ctx context.Context, id string) (*models.CapturedImage, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	image, ok := r.db.images[id]
	if !ok {
		return nil, errors.NewNotFoundError("image not found", nil)
	}
	out := *image
	return &out, nil
}

func (r *ImageRepo) List(ctx context.Context, q models.ImageQuery) ([]*models.CapturedImage, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []*models.CapturedImage{}
	for _, image := range r.db.images {
		if image.Serial != q.Serial || (q.Kind != "" && image.Kind != q.Kind) {
			continue
		}
		c := *image
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *ImageRepo) ListUnmatched(ctx context.Context, serial string, from, to time.Time) ([]*models.CapturedImage, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []*models.CapturedImage{}
	for _, image := range r.db.images {
		if image.Serial != serial || image.EventID != nil {
			continue
		}
		if image.CapturedAt.Before(from) || image.CapturedAt.After(to) {
			continue
		}
		c := *image
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	return out, nil
}

func (r *ImageRepo) GetByEvent(ctx context.Context, eventID string) (*models.CapturedImage, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var found *models.CapturedImage
	for _, image := range r.db.images {
		if image.EventID == nil || *image.EventID != eventID {
			continue
		}
		if found == nil || image.CapturedAt.After(found.CapturedAt) {
			found = image
		}
	}
	if found == nil {
		return nil, errors.NewNotFoundError("no image for event", nil)
	}
	out := *found
	return &out, nil
}

func (r *ImageRepo) AttachEvent(ctx context.Context, imageID string, event models.EventRef, strategy string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	image, ok := r.db.images[imageID]
	if !ok {
		return false, errors.NewNotFoundError("image not found", nil)
	}
	if image.EventID != nil {
		return false, nil
	}
	id, source, s := event.ID, event.Source, strategy
	image.EventID = &id
	image.EventSource = &source
	image.MatchStrategy = &s
	if image.DeviceID == nil && event.DeviceID != nil {
		deviceID := *event.DeviceID
		image.DeviceID = &deviceID
	}
	r.db.writes.Add(1)
	return true, nil
}
