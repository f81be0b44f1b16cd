// FilePath: api/resources/api.resource.images.go
package resources

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mailguard/ingest/api/middleware"
	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/ingestservice"
	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/validation"
	nuts "github.com/vaudience/go-nuts"
)

// multipart overhead allowed on top of the image itself
const formOverhead = 1 << 20

// ImageHandlers encapsulates the image upload and retrieval handlers
type ImageHandlers struct {
	service *ingestservice.IngestService
	maxSize int64
}

// @Summary Upload a delivery image
// @Description Store a camera image and link it to the delivery event it shows
// @Tags iot
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image (image/*, at most 10MB)"
// @Param serial_number formData string true "Serial number"
// @Param event_type formData string false "Must be delivery"
// @Param timestamp formData string false "Capture time (RFC3339)"
// @Success 201 {object} models.ImageUploadResponse
// @Failure 400 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Failure 403 {object} errors.APIError
// @Router /iot/upload [post]
// @Security ApiKeyAuth
func (h *ImageHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+formOverhead)
	if err := r.ParseMultipartForm(formOverhead); err != nil {
		respondWithError(w, errors.NewValidationError("invalid or oversized multipart form", err).WithRequestID(requestID))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var form models.ImageUploadForm
	if err := queryDecoder.Decode(&form, r.MultipartForm.Value); err != nil {
		respondWithError(w, errors.NewValidationError("invalid form fields", err).WithRequestID(requestID))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, errors.NewValidationError("file is required", err).
			WithDetails(map[string]any{"fields": []validation.FieldError{{Field: "file", Tag: "required", Message: "file is required"}}}).
			WithRequestID(requestID))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxSize+1))
	if err != nil {
		respondWithError(w, errors.NewValidationError("unable to read file", err).WithRequestID(requestID))
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	resp, err := h.service.UploadImage(r.Context(), middleware.PrincipalFrom(r.Context()), &form, contentType, data)
	if err != nil {
		fail(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

// @Summary List images
// @Description Recent images of a serial, optionally filtered by event type
// @Tags iot
// @Produce json
// @Param serial query string false "Serial number"
// @Param serial_number query string false "Serial number (device firmware name)"
// @Param event_type query string false "Event type"
// @Param limit query int false "Maximum number of images (1-200)"
// @Success 200 {array} models.CapturedImage
// @Failure 400 {object} errors.APIError
// @Router /iot/upload [get]
// @Security ApiKeyAuth
func (h *ImageHandlers) List(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var q models.ImagesQuery
	if err := decodeQuery(r, &q); err != nil {
		fail(w, err, requestID)
		return
	}
	if err := validation.Struct(&q); err != nil {
		fail(w, err, requestID)
		return
	}

	images, err := h.service.ListImages(r.Context(), middleware.PrincipalFrom(r.Context()), &q)
	if err != nil {
		fail(w, err, requestID)
		return
	}

	respondWithJSON(w, http.StatusOK, images)
}

// @Summary Get an image
// @Description Image bytes by opaque id; this is the locator sent in notifications
// @Tags images
// @Produce image/jpeg
// @Param id path string true "Image ID"
// @Success 200 {file} binary
// @Failure 404 {object} errors.APIError
// @Router /images/{id} [get]
func (h *ImageHandlers) Get(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	id := mux.Vars(r)["id"]

	data, contentType, err := h.service.GetImage(r.Context(), id)
	if err != nil {
		fail(w, err, requestID)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
