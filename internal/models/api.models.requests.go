// FilePath: internal/models/api.models.requests.go
package models

import "time"

// TelemetryEventData is the sensor part of a telemetry report
type TelemetryEventData struct {
	ReedSensor      *bool    `json:"reed_sensor" validate:"required_without=EventType"`
	EventType       string   `json:"event_type,omitempty" validate:"omitempty,max=32"`
	DetectionMethod string   `json:"detection_method,omitempty" validate:"omitempty,oneof=reed_sensor weight_sensor explicit"`
	WeightValue     *float64 `json:"weight_value,omitempty" validate:"omitempty,gte=0"`
	WeightThreshold *float64 `json:"weight_threshold,omitempty" validate:"omitempty,gt=0"`
}

// TelemetryReportRequest is the body of POST /iot/event
type TelemetryReportRequest struct {
	Serial          string             `json:"serial_number" validate:"required,serial"`
	EventData       TelemetryEventData `json:"event_data"`
	Timestamp       *time.Time         `json:"timestamp,omitempty"`
	FirmwareVersion *string            `json:"firmware_version,omitempty" validate:"omitempty,max=64"`
	BatteryLevel    *int               `json:"battery_level,omitempty" validate:"omitempty,min=0,max=100"`
	SignalStrength  *int               `json:"signal_strength,omitempty" validate:"omitempty,min=-120,max=0"`
	Temperature     *float64           `json:"temperature,omitempty" validate:"omitempty,min=-50,max=80"`
}

// TelemetryReportResponse is the classification result returned to the device
type TelemetryReportResponse struct {
	EventID         string          `json:"event_id"`
	EventKind       EventKind       `json:"event_kind"`
	DetectionMethod DetectionMethod `json:"detection_method"`
	DeviceID        *string         `json:"device_id,omitempty"`
	Serial          string          `json:"serial_number"`
	Status          ClaimStatus     `json:"status"`
	WeightData      *WeightData     `json:"weight_data,omitempty"`
	BatteryWarning  bool            `json:"battery_warning,omitempty"`
	OccurredAt      time.Time       `json:"occurred_at"`
}

// StatusReportRequest is the body of POST /iot/report
type StatusReportRequest struct {
	Serial          string     `json:"serial_number" validate:"required,serial"`
	FirmwareVersion *string    `json:"firmware_version,omitempty" validate:"omitempty,max=64"`
	BatteryLevel    *int       `json:"battery_level,omitempty" validate:"omitempty,min=0,max=100"`
	SignalStrength  *int       `json:"signal_strength,omitempty" validate:"omitempty,min=-120,max=0"`
	Temperature     *float64   `json:"temperature,omitempty" validate:"omitempty,min=-50,max=80"`
	WeightValue     *float64   `json:"weight_value,omitempty" validate:"omitempty,gte=0"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
}

// StatusReportResponse acknowledges a status report
type StatusReportResponse struct {
	Serial         string        `json:"serial_number"`
	Status         *DeviceStatus `json:"status"`
	BatteryWarning bool          `json:"battery_warning"`
}

// ActivationRequest is the body of POST /iot/activate
type ActivationRequest struct {
	Serial          string  `json:"serial_number" validate:"required,serial"`
	FirmwareVersion *string `json:"firmware_version,omitempty" validate:"omitempty,max=64"`
	DeviceType      *string `json:"device_type,omitempty" validate:"omitempty,max=64"`
}

// ActivationResponse reports the identity state after activation
type ActivationResponse struct {
	Serial      string      `json:"serial_number"`
	IsValid     bool        `json:"is_valid"`
	IsClaimed   bool        `json:"is_claimed"`
	ClaimStatus ClaimStatus `json:"claim_status"`
	Registered  bool        `json:"registered"`
	DeviceID    *string     `json:"device_id,omitempty"`
}

// ImageUploadForm holds the non-file fields of a multipart image upload
type ImageUploadForm struct {
	Serial    string `schema:"serial_number" json:"serial_number" validate:"required,serial"`
	EventType string `schema:"event_type" json:"event_type"`
	Timestamp string `schema:"timestamp" json:"timestamp" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// ImageUploadResponse reports the stored image and its correlated event
type ImageUploadResponse struct {
	Image         *CapturedImage `json:"image"`
	URL           string         `json:"url"`
	EventID       *string        `json:"event_id,omitempty"`
	MatchStrategy *string        `json:"match_strategy,omitempty"`
}

// SerialQuery accepts both the short and the device firmware parameter name
type SerialQuery struct {
	Serial       string `schema:"serial" json:"serial"`
	SerialNumber string `schema:"serial_number" json:"serial_number"`
}

// Value returns whichever serial parameter was given
func (q SerialQuery) Value() string {
	if q.Serial != "" {
		return q.Serial
	}
	return q.SerialNumber
}

// StatusQuery is the query of GET /iot/status
type StatusQuery struct {
	SerialQuery
}

// EventsQuery is the query of GET /iot/events
type EventsQuery struct {
	SerialQuery
	Limit int `schema:"limit" json:"limit" validate:"omitempty,min=1,max=200"`
}

// ImagesQuery is the query of GET /iot/upload
type ImagesQuery struct {
	SerialQuery
	EventType string `schema:"event_type" json:"event_type" validate:"omitempty,oneof=open close delivery removal"`
	Limit     int    `schema:"limit" json:"limit" validate:"omitempty,min=1,max=200"`
}

// RecentEventsResponse is the event history of a serial
type RecentEventsResponse struct {
	Serial string        `json:"serial_number"`
	Events []EventRef    `json:"events"`
	Status *DeviceStatus `json:"status,omitempty"`
}

// SeedSerialRequest is the body of POST /admin/serials
type SeedSerialRequest struct {
	Serial           string     `json:"serial_number" validate:"required,serial"`
	DeviceModel      string     `json:"device_model,omitempty" validate:"omitempty,max=128"`
	ManufacturedDate *time.Time `json:"manufactured_date,omitempty"`
}

// IssueKeyRequest is the body of POST /admin/keys
type IssueKeyRequest struct {
	Type         CredentialClass `json:"type" validate:"required,oneof=iot admin"`
	DeviceSerial *string         `json:"device_serial,omitempty" validate:"omitempty,serial"`
	Name         string          `json:"name" validate:"required,max=128"`
}
