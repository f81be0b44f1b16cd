// FilePath: internal/models/models.notification.go
package models

import "time"

// NotificationPreference is an account's notification switches
type NotificationPreference struct {
	AccountID          string    `json:"account_id" db:"account_id"`
	EmailNotifications bool      `json:"email_notifications" db:"email_notifications"`
	NotifyOpen         bool      `json:"notify_open" db:"notify_open"`
	NotifyClose        bool      `json:"notify_close" db:"notify_close"`
	NotifyDelivery     bool      `json:"notify_delivery" db:"notify_delivery"`
	NotifyRemoval      bool      `json:"notify_removal" db:"notify_removal"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// Allows reports whether both the master channel and the per-kind flag are enabled
func (p *NotificationPreference) Allows(kind EventKind) bool {
	if p == nil || !p.EmailNotifications {
		return false
	}
	switch kind {
	case EventKindOpen:
		return p.NotifyOpen
	case EventKindClose:
		return p.NotifyClose
	case EventKindDelivery:
		return p.NotifyDelivery
	case EventKindRemoval:
		return p.NotifyRemoval
	}
	return false
}

// NotificationJob is one queued dispatch for a persisted canonical event
type NotificationJob struct {
	EventID    string
	DeviceID   string
	Serial     string
	AccountID  string
	Kind       EventKind
	OccurredAt time.Time
	ImageID    *string
	Attempt    int
}

// Notification is the rendered message handed to a transport
type Notification struct {
	To       string
	Subject  string
	Body     string
	Params   map[string]string
	ImageURL string
}
