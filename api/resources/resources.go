// FilePath: api/resources/resources.go
package resources

import (
	"math"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/gorilla/schema"
	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/ingestservice"
	"github.com/mailguard/ingest/internal/validation"
	nuts "github.com/vaudience/go-nuts"
)

// Resources holds all HTTP resource handlers
type Resources struct {
	Telemetry *TelemetryHandlers
	Devices   *DeviceHandlers
	Images    *ImageHandlers
	Admin     *AdminHandlers
	Health    *HealthHandlers
}

// Options configures the handlers
type Options struct {
	MaxImageSize int64
	Version      string
}

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// NewResources creates a new Resources instance
func NewResources(svc *ingestservice.IngestService, opts Options) *Resources {
	if opts.MaxImageSize <= 0 {
		opts.MaxImageSize = 10 << 20
	}
	return &Resources{
		Telemetry: &TelemetryHandlers{service: svc},
		Devices:   &DeviceHandlers{service: svc},
		Images:    &ImageHandlers{service: svc, maxSize: opts.MaxImageSize},
		Admin:     &AdminHandlers{service: svc},
		Health:    &HealthHandlers{version: opts.Version},
	}
}

// fail answers with err, wrapping foreign errors as internal
func fail(w http.ResponseWriter, err error, requestID string) {
	apiErr, ok := errors.AsAPIError(err)
	if !ok {
		apiErr = errors.NewInternalError("internal server error", err)
	}
	respondWithError(w, apiErr.WithRequestID(requestID))
}

func respondWithError(w http.ResponseWriter, err *errors.APIError) {
	if err.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(err.RetryAfter.Seconds()))))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
	if err.Code >= http.StatusInternalServerError {
		nuts.L.Errorf("[API] %s", err.Error())
		return
	}
	nuts.L.Debugf("[API] %s", err.Error())
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a size-capped JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxJSONBody)
	return validation.DecodeJSON(r.Body, dst)
}

func decodeQuery(r *http.Request, dst interface{}) error {
	if err := queryDecoder.Decode(dst, r.URL.Query()); err != nil {
		return errors.NewValidationError("invalid query parameters", err).
			WithDetails(map[string]string{"error": err.Error()})
	}
	return nil
}
