// FilePath: internal/models/models.event.go
package models

import (
	"strings"
	"time"
)

// EventKind is the canonical event taxonomy
type EventKind string

const (
	EventKindOpen     EventKind = "open"
	EventKindClose    EventKind = "close"
	EventKindDelivery EventKind = "delivery"
	EventKindRemoval  EventKind = "removal"
)

// DetectionMethod records which signal produced a classification
type DetectionMethod string

const (
	DetectionReedSensor   DetectionMethod = "reed_sensor"
	DetectionWeightSensor DetectionMethod = "weight_sensor"
	DetectionExplicit     DetectionMethod = "explicit"
)

var eventKindSynonyms = map[string]EventKind{
	"open":           EventKindOpen,
	"opened":         EventKindOpen,
	"close":          EventKindClose,
	"closed":         EventKindClose,
	"delivery":       EventKindDelivery,
	"delivered":      EventKindDelivery,
	"mail_delivered": EventKindDelivery,
	"removal":        EventKindRemoval,
	"removed":        EventKindRemoval,
	"mail_removed":   EventKindRemoval,
}

// ParseEventKind maps a device label (case-insensitive, synonyms allowed) onto the taxonomy
func ParseEventKind(label string) (EventKind, bool) {
	kind, ok := eventKindSynonyms[strings.ToLower(strings.TrimSpace(label))]
	return kind, ok
}

// EventSource names the storage domain an event lives in
type EventSource string

const (
	EventSourceCanonical EventSource = "canonical"
	EventSourceOrphan    EventSource = "orphan"
)

// WeightData documents the weight comparison behind a classification
type WeightData struct {
	Current   float64  `json:"current"`
	Previous  *float64 `json:"previous"`
	Delta     *float64 `json:"delta"`
	Detected  bool     `json:"detected"`
	Threshold float64  `json:"threshold"`
}

// CanonicalEvent is an event of a claimed, dashboard-linked device
type CanonicalEvent struct {
	ID              string          `json:"id" db:"id"`
	DeviceID        string          `json:"device_id" db:"device_id"`
	Serial          string          `json:"serial_number" db:"serial_number"`
	AccountID       string          `json:"account_id" db:"account_id"`
	Kind            EventKind       `json:"event_type" db:"event_type"`
	DetectionMethod DetectionMethod `json:"detection_method" db:"detection_method"`
	Weight          *float64        `json:"weight,omitempty" db:"weight"`
	OccurredAt      time.Time       `json:"occurred_at" db:"occurred_at"`
	NotifiedAt      *time.Time      `json:"notified_at,omitempty" db:"notified_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// OrphanEvent is an event of a serial with no owning account link
type OrphanEvent struct {
	ID              string          `json:"id" db:"id"`
	Serial          string          `json:"serial_number" db:"serial_number"`
	Kind            EventKind       `json:"event_type" db:"event_type"`
	DetectionMethod DetectionMethod `json:"detection_method" db:"detection_method"`
	Weight          *float64        `json:"weight,omitempty" db:"weight"`
	ClaimStatus     ClaimStatus     `json:"claim_status" db:"claim_status"`
	OccurredAt      time.Time       `json:"occurred_at" db:"occurred_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// EventRef is the storage-independent view of an event used for correlation and listing
type EventRef struct {
	ID              string          `json:"id" db:"id"`
	Source          EventSource     `json:"source" db:"source"`
	DeviceID        *string         `json:"device_id,omitempty" db:"device_id"`
	Serial          string          `json:"serial_number" db:"serial_number"`
	Kind            EventKind       `json:"event_type" db:"event_type"`
	DetectionMethod DetectionMethod `json:"detection_method" db:"detection_method"`
	OccurredAt      time.Time       `json:"occurred_at" db:"occurred_at"`
}

// Ref returns the correlation view of a canonical event
func (e *CanonicalEvent) Ref() EventRef {
	deviceID := e.DeviceID
	return EventRef{
		ID:              e.ID,
		Source:          EventSourceCanonical,
		DeviceID:        &deviceID,
		Serial:          e.Serial,
		Kind:            e.Kind,
		DetectionMethod: e.DetectionMethod,
		OccurredAt:      e.OccurredAt,
	}
}

// Ref returns the correlation view of an orphan event
func (e *OrphanEvent) Ref() EventRef {
	return EventRef{
		ID:              e.ID,
		Source:          EventSourceOrphan,
		Serial:          e.Serial,
		Kind:            e.Kind,
		DetectionMethod: e.DetectionMethod,
		OccurredAt:      e.OccurredAt,
	}
}

// EventQuery selects events of one serial
type EventQuery struct {
	Serial string
	From   time.Time
	To     time.Time
	Kind   EventKind
	Limit  int
}
