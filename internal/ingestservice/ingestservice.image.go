package ingestservice

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mailguard/ingest/internal/auth"
	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/monitoring"
	"github.com/mailguard/ingest/internal/notify"
	"github.com/mailguard/ingest/internal/validation"
	nuts "github.com/vaudience/go-nuts"
)

const defaultImageLimit = 20

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UploadImage stores a delivery image and links it to the closest matching event.
// Payload checks run before any store or correlator call.
func (s *IngestService) UploadImage(ctx context.Context, p *models.Principal, form *models.ImageUploadForm, contentType string, data []byte) (*models.ImageUploadResponse, error) {
	defer monitoring.ObserveSince("image_upload", time.Now())

	upload, err := s.checkUpload(form, contentType, data)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckSerial(p, upload.Serial); err != nil {
		return nil, err
	}

	rec, err := s.reconciler.Reconcile(ctx, upload.Serial)
	if err != nil {
		return nil, err
	}

	img := &models.CapturedImage{
		ID:          nuts.NID("img", 12),
		Serial:      upload.Serial,
		DeviceID:    rec.DeviceID(),
		Kind:        upload.Kind,
		BlobKey:     blobKey(upload.Serial, upload.CapturedAt, upload.ContentType),
		ContentType: upload.ContentType,
		Size:        int64(len(upload.Data)),
		CapturedAt:  upload.CapturedAt,
		CreatedAt:   s.now().UTC(),
	}

	err = s.withTimeout(ctx, func(ctx context.Context) error {
		_, err := s.blobs.Put(ctx, img.BlobKey, upload.Data, upload.ContentType)
		return err
	})
	if err != nil {
		nuts.L.Errorf("[Ingest] Failed to store image blob for %s: %v", img.Serial, err)
		return nil, errors.NewInternalError("failed to store image", err)
	}

	err = s.withTimeout(ctx, func(ctx context.Context) error {
		return s.store.Images.Create(ctx, img)
	})
	if err != nil {
		nuts.L.Errorf("[Ingest] Failed to store image metadata for %s: %v", img.Serial, err)
		_ = s.withTimeout(context.WithoutCancel(ctx), func(ctx context.Context) error {
			return s.blobs.Delete(ctx, img.BlobKey)
		})
		return nil, errors.NewInternalError("failed to store image", err)
	}
	img.URL = notify.ImageURL(s.publicBaseURL, img.ID)

	s.correlateImage(ctx, img, rec)
	monitoring.ImagesTotal.WithLabelValues(fmt.Sprintf("%t", img.Matched())).Inc()

	return &models.ImageUploadResponse{
		Image:         img,
		URL:           img.URL,
		EventID:       img.EventID,
		MatchStrategy: img.MatchStrategy,
	}, nil
}

func (s *IngestService) checkUpload(form *models.ImageUploadForm, contentType string, data []byte) (*models.ImageUpload, error) {
	label := form.EventType
	if label == "" {
		label = string(models.EventKindDelivery)
	}
	kind, ok := models.ParseEventKind(label)
	if !ok || kind != models.EventKindDelivery {
		return nil, errors.NewValidationError("only delivery images can be uploaded", nil).
			WithDetails(map[string]any{"fields": []validation.FieldError{{Field: "event_type", Tag: "oneof", Message: "event_type must be delivery"}}})
	}

	if err := validation.Struct(form); err != nil {
		return nil, err
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return nil, errors.NewValidationError("file must be an image", err).
			WithDetails(map[string]any{"fields": []validation.FieldError{{Field: "file", Tag: "image", Message: "file must be an image"}}})
	}
	if len(data) == 0 {
		return nil, errors.NewValidationError("file is empty", nil).
			WithDetails(map[string]any{"fields": []validation.FieldError{{Field: "file", Tag: "required", Message: "file is required"}}})
	}
	if int64(len(data)) > s.cfg.MaxImageSize {
		return nil, errors.NewValidationError(fmt.Sprintf("file must be at most %d bytes", s.cfg.MaxImageSize), nil).
			WithDetails(map[string]any{"fields": []validation.FieldError{{Field: "file", Tag: "max", Message: "file is too large"}}})
	}

	capturedAt := s.now().UTC()
	if form.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, form.Timestamp)
		if err != nil {
			return nil, errors.NewValidationError("timestamp must be an RFC3339 timestamp", err)
		}
		capturedAt = ts.UTC()
	}

	return &models.ImageUpload{
		Serial:      form.Serial,
		Kind:        kind,
		ContentType: mediaType,
		Data:        data,
		CapturedAt:  capturedAt,
	}, nil
}

// correlateImage attaches img to its best event and hurries the pending delivery notification.
// Failures leave the image stored but unmatched.
func (s *IngestService) correlateImage(ctx context.Context, img *models.CapturedImage, rec *models.Reconciliation) {
	match, err := s.correlator.Correlate(ctx, img)
	if err != nil {
		monitoring.SecondaryFailuresTotal.WithLabelValues("correlation").Inc()
		nuts.L.Warnf("[Ingest] Failed to correlate image %s: %v", img.ID, err)
		return
	}
	if match == nil {
		return
	}

	var attached bool
	err = s.withTimeout(ctx, func(ctx context.Context) (err error) {
		attached, err = s.store.Images.AttachEvent(ctx, img.ID, match.Event, match.Strategy)
		return err
	})
	if err != nil || !attached {
		if err != nil {
			monitoring.SecondaryFailuresTotal.WithLabelValues("correlation").Inc()
		}
		nuts.L.Warnf("[Ingest] Could not attach image %s to event %s: %v", img.ID, match.Event.ID, err)
		return
	}

	id, source, strategy := match.Event.ID, match.Event.Source, match.Strategy
	img.EventID, img.EventSource, img.MatchStrategy = &id, &source, &strategy
	if img.DeviceID == nil {
		img.DeviceID = match.Event.DeviceID
	}
	nuts.L.Infof("[Ingest] Image %s matched event %s by %s", img.ID, id, strategy)

	if match.Event.Source == models.EventSourceCanonical && rec.Dashboard != nil {
		imageID := img.ID
		s.notifier.Enqueue(models.NotificationJob{
			EventID:    match.Event.ID,
			DeviceID:   rec.Dashboard.ID,
			Serial:     img.Serial,
			AccountID:  rec.Dashboard.AccountID,
			Kind:       match.Event.Kind,
			OccurredAt: match.Event.OccurredAt,
			ImageID:    &imageID,
		})
	}
}

// ListImages returns recent images of a serial
func (s *IngestService) ListImages(ctx context.Context, p *models.Principal, q *models.ImagesQuery) ([]*models.CapturedImage, error) {
	serial := q.Value()
	if err := validation.RequireSerial(serial); err != nil {
		return nil, err
	}
	if err := auth.CheckSerial(p, serial); err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultImageLimit
	}
	var kind models.EventKind
	if q.EventType != "" {
		kind = models.EventKind(q.EventType)
	}

	var images []*models.CapturedImage
	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		images, err = s.store.Images.List(ctx, models.ImageQuery{Serial: serial, Kind: kind, Limit: limit})
		return err
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to list images", err)
	}
	for _, img := range images {
		img.URL = notify.ImageURL(s.publicBaseURL, img.ID)
	}
	if images == nil {
		images = []*models.CapturedImage{}
	}
	return images, nil
}

// GetImage returns the bytes and content type of a stored image
func (s *IngestService) GetImage(ctx context.Context, id string) ([]byte, string, error) {
	var img *models.CapturedImage
	err := s.withTimeout(ctx, func(ctx context.Context) (err error) {
		img, err = s.store.Images.Get(ctx, id)
		return err
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, "", errors.NewNotFoundError("image not found", err)
		}
		return nil, "", errors.NewInternalError("failed to load image", err)
	}

	var (
		data        []byte
		contentType string
	)
	err = s.withTimeout(ctx, func(ctx context.Context) (err error) {
		data, contentType, err = s.blobs.Get(ctx, img.BlobKey)
		return err
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, "", errors.NewNotFoundError("image not found", err)
		}
		return nil, "", errors.NewInternalError("failed to load image", err)
	}
	if img.ContentType != "" {
		contentType = img.ContentType
	}
	return data, contentType, nil
}

func blobKey(serial string, capturedAt time.Time, contentType string) string {
	ext, ok := imageExtensions[contentType]
	if !ok {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return fmt.Sprintf("images/%s/%d-%s%s", serial, capturedAt.UnixMilli(), uuid.NewString(), ext)
}
