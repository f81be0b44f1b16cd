// FilePath: api/resources/api.resource.health.go
package resources

import (
	"net/http"
	"time"
)

// HealthHandlers answers liveness checks
type HealthHandlers struct {
	version string
}

type healthResponse struct {
	Status  string    `json:"status"`
	Version string    `json:"version"`
	Time    time.Time `json:"time"`
}

// @Summary Liveness
// @Tags system
// @Produce json
// @Success 200 {object} resources.healthResponse
// @Router /health [get]
func (h *HealthHandlers) Check(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: h.version, Time: time.Now().UTC()})
}
