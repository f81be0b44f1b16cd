// FilePath: internal/models/models.device.go
package models

import "time"

// ClaimStatus tells callers which persistence path an ingested event took
type ClaimStatus string

const (
	ClaimStatusClaimedDevice       ClaimStatus = "claimed_device"
	ClaimStatusUnclaimed           ClaimStatus = "unclaimed"
	ClaimStatusClaimedButNotLinked ClaimStatus = "claimed_but_not_linked"
)

const DefaultDeviceModel = "MailGuard Standard"

// DeviceIdentity is a physical unit known by its serial number
type DeviceIdentity struct {
	Serial           string     `json:"serial_number" db:"serial_number"`
	Model            string     `json:"device_model" db:"device_model"`
	ManufacturedDate time.Time  `json:"manufactured_date" db:"manufactured_date"`
	IsValid          bool       `json:"is_valid" db:"is_valid"`
	IsClaimed        bool       `json:"is_claimed" db:"is_claimed"`
	ClaimedBy        *string    `json:"claimed_by,omitempty" db:"claimed_by"`
	ClaimedAt        *time.Time `json:"claimed_at,omitempty" db:"claimed_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// DashboardDevice is the device row an account registers from the dashboard
type DashboardDevice struct {
	ID        string    `json:"id" db:"id"`
	Serial    string    `json:"serial_number" db:"serial_number"`
	AccountID string    `json:"account_id" db:"account_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DeviceStatus is the latest runtime snapshot of a serial, overwritten in place
type DeviceStatus struct {
	Serial          string     `json:"serial_number" db:"serial_number"`
	DeviceType      *string    `json:"device_type,omitempty" db:"device_type"`
	FirmwareVersion *string    `json:"firmware_version,omitempty" db:"firmware_version"`
	BatteryLevel    *int       `json:"battery_level,omitempty" db:"battery_level"`
	SignalStrength  *int       `json:"signal_strength,omitempty" db:"signal_strength"`
	Temperature     *float64   `json:"temperature,omitempty" db:"temperature"`
	LastWeight      *float64   `json:"last_weight,omitempty" db:"last_weight"`
	IsOnline        bool       `json:"is_online" db:"is_online"`
	LastSeen        *time.Time `json:"last_seen,omitempty" db:"last_seen"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// StatusUpdate carries the fields of one report; nil fields keep their stored value
type StatusUpdate struct {
	Serial          string
	DeviceType      *string
	FirmwareVersion *string
	BatteryLevel    *int
	SignalStrength  *int
	Temperature     *float64
	Weight          *float64
	SeenAt          time.Time
	// MeasuredAt is the device clock reading for the health sample; zero means SeenAt
	MeasuredAt time.Time
}

// HealthSample is one historized health reading
type HealthSample struct {
	ID             string    `json:"id" db:"id"`
	Serial         string    `json:"serial_number" db:"serial_number"`
	DeviceID       *string   `json:"device_id,omitempty" db:"device_id"`
	BatteryLevel   *int      `json:"battery_level,omitempty" db:"battery_level"`
	SignalStrength *int      `json:"signal_strength,omitempty" db:"signal_strength"`
	Temperature    *float64  `json:"temperature,omitempty" db:"temperature"`
	Weight         *float64  `json:"weight,omitempty" db:"weight"`
	RecordedAt     time.Time `json:"recorded_at" db:"recorded_at"`
}

// Reconciliation is the outcome of resolving a serial against identity and dashboard records
type Reconciliation struct {
	Identity  *DeviceIdentity
	Dashboard *DashboardDevice
	Claimed   bool
	AccountID *string
	Status    ClaimStatus
	Created   bool
}

// DeviceID returns the dashboard device id, if the serial is linked
func (r *Reconciliation) DeviceID() *string {
	if r == nil || r.Dashboard == nil {
		return nil
	}
	id := r.Dashboard.ID
	return &id
}

// DeviceStatusView is the role-filtered device-status answer
type DeviceStatusView struct {
	Serial           string        `json:"serial_number"`
	IsValid          bool          `json:"is_valid"`
	IsClaimed        bool          `json:"is_claimed"`
	ClaimStatus      ClaimStatus   `json:"claim_status"`
	DeviceModel      string        `json:"device_model"`
	ManufacturedDate time.Time     `json:"manufactured_date"`
	ClaimedBy        *string       `json:"claimed_by,omitempty" readxs:"admin" writexs:"admin"`
	ClaimedAt        *time.Time    `json:"claimed_at,omitempty" readxs:"admin" writexs:"admin"`
	DeviceID         *string       `json:"device_id,omitempty" readxs:"admin" writexs:"admin"`
	Status           *DeviceStatus `json:"status,omitempty"`
}
