// FilePath: api/resources/api.resource.telemetry.go
package resources

import (
	"net/http"

	"github.com/mailguard/ingest/api/middleware"
	"github.com/mailguard/ingest/internal/ingestservice"
	"github.com/mailguard/ingest/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// TelemetryHandlers encapsulates the device reporting handlers
type TelemetryHandlers struct {
	service *ingestservice.IngestService
}

// @Summary Report a telemetry event
// @Description Classify a device report into open, close, delivery or removal and record it
// @Tags iot
// @Accept json
// @Produce json
// @Param report body models.TelemetryReportRequest true "Telemetry report"
// @Success 201 {object} models.TelemetryReportResponse
// @Failure 400 {object} errors.APIError
// @Failure 413 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Failure 403 {object} errors.APIError
// @Failure 429 {object} errors.APIError
// @Failure 503 {object} errors.APIError
// @Router /iot/event [post]
// @Security ApiKeyAuth
func (h *TelemetryHandlers) ReportEvent(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req models.TelemetryReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, err, requestID)
		return
	}

	resp, err := h.service.IngestTelemetry(r.Context(), middleware.PrincipalFrom(r.Context()), &req)
	if err != nil {
		fail(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

// @Summary Report device health
// @Description Update the status snapshot of a device without recording an event
// @Tags iot
// @Accept json
// @Produce json
// @Param report body models.StatusReportRequest true "Status report"
// @Success 200 {object} models.StatusReportResponse
// @Failure 400 {object} errors.APIError
// @Failure 413 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Failure 403 {object} errors.APIError
// @Router /iot/report [post]
// @Security ApiKeyAuth
func (h *TelemetryHandlers) ReportStatus(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req models.StatusReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, err, requestID)
		return
	}

	resp, err := h.service.ReportStatus(r.Context(), middleware.PrincipalFrom(r.Context()), &req)
	if err != nil {
		fail(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// @Summary Activate a device
// @Description Register or reactivate the serial number of a device that announces itself
// @Tags iot
// @Accept json
// @Produce json
// @Param activation body models.ActivationRequest true "Activation"
// @Success 200 {object} models.ActivationResponse
// @Failure 400 {object} errors.APIError
// @Failure 413 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Router /iot/activate [post]
// @Security ApiKeyAuth
func (h *TelemetryHandlers) Activate(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req models.ActivationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, err, requestID)
		return
	}

	resp, err := h.service.Activate(r.Context(), middleware.PrincipalFrom(r.Context()), &req)
	if err != nil {
		fail(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}
