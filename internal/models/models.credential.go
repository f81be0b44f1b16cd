// FilePath: internal/models/models.credential.go
package models

import "time"

// CredentialClass is the identity class a token is issued for
type CredentialClass string

const (
	CredentialClassDevice CredentialClass = "iot"
	CredentialClassAdmin  CredentialClass = "admin"
)

// Credential is a stored, hashed API key
type Credential struct {
	ID           string          `json:"id" db:"id"`
	KeyHash      string          `json:"-" db:"key_hash"`
	Class        CredentialClass `json:"type" db:"type"`
	DeviceSerial *string         `json:"device_serial,omitempty" db:"device_serial"`
	Name         string          `json:"name" db:"name"`
	IsActive     bool            `json:"is_active" db:"is_active"`
	LastUsedAt   *time.Time      `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Principal is the authenticated caller of a request
type Principal struct {
	CredentialID string
	Class        CredentialClass
	DeviceSerial *string
}

// IsAdmin reports whether the caller holds an admin credential
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Class == CredentialClassAdmin
}

// Roles returns the read roles used for field filtering
func (p *Principal) Roles() []string {
	if p.IsAdmin() {
		return []string{"admin"}
	}
	return []string{"device"}
}

// IssuedCredential is returned once, when a key is created
type IssuedCredential struct {
	Credential
	Key string `json:"key"`
}
