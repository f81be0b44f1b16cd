// FilePath: api/resources/api.resource.devices.go
package resources

import (
	"net/http"

	"github.com/mailguard/ingest/api/middleware"
	"github.com/mailguard/ingest/internal/ingestservice"
	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/validation"
	nuts "github.com/vaudience/go-nuts"
)

// DeviceHandlers encapsulates the device lookup handlers
type DeviceHandlers struct {
	service *ingestservice.IngestService
}

// @Summary Get device status
// @Description Validity, claim state and last known health snapshot of a serial
// @Tags iot
// @Produce json
// @Param serial query string false "Serial number"
// @Param serial_number query string false "Serial number (device firmware name)"
// @Success 200 {object} models.DeviceStatusView
// @Failure 400 {object} errors.APIError
// @Failure 403 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /iot/status [get]
// @Security ApiKeyAuth
func (h *DeviceHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var q models.StatusQuery
	if err := decodeQuery(r, &q); err != nil {
		fail(w, err, requestID)
		return
	}

	view, err := h.service.DeviceStatus(r.Context(), middleware.PrincipalFrom(r.Context()), q.Value())
	if err != nil {
		fail(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

// @Summary List recent events
// @Description Claimed and unclaimed event history of a serial, newest first
// @Tags iot
// @Produce json
// @Param serial query string false "Serial number"
// @Param serial_number query string false "Serial number (device firmware name)"
// @Param limit query int false "Maximum number of events (1-200)"
// @Success 200 {object} models.RecentEventsResponse
// @Failure 400 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Router /iot/events [get]
// @Security ApiKeyAuth
func (h *DeviceHandlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var q models.EventsQuery
	if err := decodeQuery(r, &q); err != nil {
		fail(w, err, requestID)
		return
	}
	if err := validation.Struct(&q); err != nil {
		fail(w, err, requestID)
		return
	}

	resp, err := h.service.RecentEvents(r.Context(), middleware.PrincipalFrom(r.Context()), &q)
	if err != nil {
		fail(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}
