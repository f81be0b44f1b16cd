// FilePath: api/resources/api.resource.admin.go
package resources

import (
	"net/http"

	"github.com/mailguard/ingest/internal/ingestservice"
	"github.com/mailguard/ingest/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// AdminHandlers encapsulates the provisioning handlers
type AdminHandlers struct {
	service *ingestservice.IngestService
}

// @Summary Seed a serial number
// @Description Register a device identity explicitly
// @Tags admin
// @Accept json
// @Produce json
// @Param serial body models.SeedSerialRequest true "Serial number"
// @Success 201 {object} models.DeviceIdentity
// @Success 200 {object} models.DeviceIdentity "Serial already existed"
// @Failure 400 {object} errors.APIError
// @Failure 413 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Router /admin/serials [post]
// @Security ApiKeyAuth
func (h *AdminHandlers) SeedSerial(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req models.SeedSerialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, err, requestID)
		return
	}

	identity, created, err := h.service.SeedSerial(r.Context(), &req)
	if err != nil {
		fail(w, err, requestID)
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	respondWithJSON(w, code, identity)
}

// @Summary Issue an API key
// @Description Generate a device or admin key; the plaintext is only returned in this response
// @Tags admin
// @Accept json
// @Produce json
// @Param key body models.IssueKeyRequest true "Key parameters"
// @Success 201 {object} models.IssuedCredential
// @Failure 400 {object} errors.APIError
// @Failure 413 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Router /admin/keys [post]
// @Security ApiKeyAuth
func (h *AdminHandlers) IssueKey(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req models.IssueKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, err, requestID)
		return
	}

	issued, err := h.service.IssueKey(r.Context(), &req)
	if err != nil {
		fail(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusCreated, issued)
}
