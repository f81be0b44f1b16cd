// FilePath: internal/models/models.image.go
package models

import "time"

// CapturedImage is a stored image with its optional correlated event
type CapturedImage struct {
	ID            string       `json:"id" db:"id"`
	Serial        string       `json:"serial_number" db:"serial_number"`
	DeviceID      *string      `json:"device_id,omitempty" db:"device_id"`
	Kind          EventKind    `json:"event_type" db:"event_type"`
	BlobKey       string       `json:"-" db:"blob_key"`
	ContentType   string       `json:"content_type" db:"content_type"`
	Size          int64        `json:"size" db:"size"`
	CapturedAt    time.Time    `json:"captured_at" db:"captured_at"`
	EventID       *string      `json:"event_id,omitempty" db:"event_id"`
	EventSource   *EventSource `json:"event_source,omitempty" db:"event_source"`
	MatchStrategy *string      `json:"match_strategy,omitempty" db:"match_strategy"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	URL           string       `json:"url" db:"-"`
}

// Matched reports whether the image was associated with an event
func (i *CapturedImage) Matched() bool {
	return i.EventID != nil
}

// ImageQuery selects recent images of one serial
type ImageQuery struct {
	Serial string
	Kind   EventKind
	Limit  int
}

// ImageUpload is a validated image upload ready for storage
type ImageUpload struct {
	Serial      string
	Kind        EventKind
	ContentType string
	Data        []byte
	CapturedAt  time.Time
}
