// FilePath: internal/auth/keys.go
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// random bytes per class; hex doubles the length
var keyEntropy = map[models.CredentialClass]int{
	models.CredentialClassDevice: 32,
	models.CredentialClassAdmin:  64,
}

// GenerateKey creates a new plaintext key for the class
func (g *Gate) GenerateKey(class models.CredentialClass) (string, error) {
	policy, ok := g.policies[class]
	if !ok {
		return "", errors.NewValidationError("unknown credential class", nil)
	}
	buf := make([]byte, keyEntropy[class])
	if _, err := rand.Read(buf); err != nil {
		return "", errors.NewInternalError("failed to generate key", err)
	}
	return policy.Prefix + hex.EncodeToString(buf), nil
}

// Issue creates and stores a new credential; the plaintext key is only ever returned here
func (g *Gate) Issue(ctx context.Context, class models.CredentialClass, serial *string, name string) (*models.IssuedCredential, error) {
	if class == models.CredentialClassDevice && (serial == nil || *serial == "") {
		return nil, errors.NewValidationError("device keys must be bound to a serial number", nil).
			WithDetails(map[string]string{"field": "serial_number"})
	}
	key, err := g.GenerateKey(class)
	if err != nil {
		return nil, err
	}
	cred, err := g.store(ctx, key, class, serial, name)
	if err != nil {
		return nil, err
	}
	nuts.L.Infof("[Auth] Issued %s key %s (%s)", class, cred.ID, name)
	return &models.IssuedCredential{Credential: *cred, Key: key}, nil
}

// EnsureKey stores an externally provided key, e.g. the bootstrap admin key; existing keys are left as is
func (g *Gate) EnsureKey(ctx context.Context, key string, class models.CredentialClass, name string) error {
	if !g.ValidFormat(key, class) {
		return fmt.Errorf("key does not match the %s key format", class)
	}
	_, err := g.store(ctx, key, class, nil, name)
	return err
}

func (g *Gate) store(ctx context.Context, key string, class models.CredentialClass, serial *string, name string) (*models.Credential, error) {
	cred := &models.Credential{
		ID:           nuts.NID("key", 12),
		KeyHash:      HashToken(key),
		Class:        class,
		DeviceSerial: serial,
		Name:         name,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	storeCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.credentials.Create(storeCtx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}
