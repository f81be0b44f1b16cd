package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mailguard/ingest/internal/auth"
	"github.com/mailguard/ingest/internal/classifier"
	"github.com/mailguard/ingest/internal/config"
	"github.com/mailguard/ingest/internal/correlator"
	"github.com/mailguard/ingest/internal/identity"
	"github.com/mailguard/ingest/internal/ingestservice"
	"github.com/mailguard/ingest/internal/models"
	"github.com/mailguard/ingest/internal/ratelimit"
	"github.com/mailguard/ingest/internal/repository/files"
	"github.com/mailguard/ingest/internal/repository/memory"
)

type nopNotifier struct{}

func (nopNotifier) Schedule(job models.NotificationJob) {}
func (nopNotifier) Enqueue(job models.NotificationJob) bool { return true }

type testAPI struct {
	db     *memory.DB
	gate   *auth.Gate
	server *httptest.Server
}

func newTestAPI(t *testing.T, deviceBudget int64) *testAPI {
	t.Helper()
	db := memory.NewDB()
	store := db.Store()
	blobs, err := files.NewFileRepository(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	gate := auth.NewGate(store.Credentials, ratelimit.NewMemoryLimiter(), config.AuthConfig{
		DevicePrefix: "iot_", DeviceMinLength: 68, DeviceBudget: deviceBudget,
		AdminPrefix: "admin_", AdminMinLength: 134, AdminBudget: 10000,
		Window: time.Hour,
	}, time.Second)

	ingestion := config.IngestionConfig{
		WeightThreshold:   50,
		LowBatteryFloor:   20,
		OperationTimeout:  time.Second,
		CorrelationWindow: 5 * time.Minute,
		MaxImageSize:      1 << 20,
	}
	svc, err := ingestservice.New(ingestservice.Components{
		Store:         store,
		Blobs:         blobs,
		Gate:          gate,
		Reconciler:    identity.NewReconciler(store.Devices, time.Second),
		Classifier:    classifier.New(classifier.StatusBaseline{Status: store.Status}, ingestion.WeightThreshold, time.Second),
		Correlator:    correlator.New(store.Events, store.Images, ingestion.CorrelationWindow, time.Second),
		Notifier:      nopNotifier{},
		Ingestion:     ingestion,
		PublicBaseURL: "https://mail.example.com",
	})
	if err != nil {
		t.Fatal(err)
	}

	router := NewRouter(svc, gate, Options{MaxImageSize: ingestion.MaxImageSize, Version: "test"})
	server := httptest.NewServer(router.Handler(io.Discard))
	t.Cleanup(server.Close)
	return &testAPI{db: db, gate: gate, server: server}
}

func (a *testAPI) issue(t *testing.T, class models.CredentialClass, serial string) string {
	t.Helper()
	var s *string
	if serial != "" {
		s = &serial
	}
	issued, err := a.gate.Issue(context.Background(), class, s, "test")
	if err != nil {
		t.Fatal(err)
	}
	return issued.Key
}

func (a *testAPI) do(t *testing.T, method, path, key, contentType string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

const openReport = `{"serial_number":"MB-1001","event_data":{"reed_sensor":true}}`

func TestTelemetryEventAuthentication(t *testing.T) {
	a := newTestAPI(t, 100)
	deviceKey := a.issue(t, models.CredentialClassDevice, "MB-1001")

	tests := []struct {
		name     string
		key      string
		wantCode int
	}{
		{"missing key", "", http.StatusUnauthorized},
		{"malformed key", "iot_short", http.StatusUnauthorized},
		{"unknown key", "iot_" + strings.Repeat("0", 64), http.StatusUnauthorized},
		{"admin key on device route", "admin_" + strings.Repeat("a", 128), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := a.db.Writes()
			resp := a.do(t, http.MethodPost, "/api/v1/iot/event", tt.key, "application/json", strings.NewReader(openReport))
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			var body map[string]any
			decodeBody(t, resp, &body)
			if body["type"] != "authentication" {
				t.Errorf("error type = %v, want authentication", body["type"])
			}
			if got := a.db.Writes(); got != before {
				t.Errorf("rejected request wrote to the store (%d -> %d)", before, got)
			}
		})
	}

	t.Run("valid device key", func(t *testing.T) {
		resp := a.do(t, http.MethodPost, "/api/v1/iot/event", deviceKey, "application/json", strings.NewReader(openReport))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want 201", resp.StatusCode)
		}
		var out models.TelemetryReportResponse
		decodeBody(t, resp, &out)
		if out.EventKind != models.EventKindOpen {
			t.Errorf("event kind = %q, want open", out.EventKind)
		}
		if out.Status != models.ClaimStatusUnclaimed {
			t.Errorf("claim status = %q, want unclaimed", out.Status)
		}
		if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
			t.Error("security headers missing")
		}
	})

	t.Run("serial of another device", func(t *testing.T) {
		body := `{"serial_number":"MB-2002","event_data":{"reed_sensor":true}}`
		resp := a.do(t, http.MethodPost, "/api/v1/iot/event", deviceKey, "application/json", strings.NewReader(body))
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", resp.StatusCode)
		}
	})

	t.Run("invalid payload", func(t *testing.T) {
		body := `{"serial_number":"MB-1001","event_data":{}}`
		resp := a.do(t, http.MethodPost, "/api/v1/iot/event", deviceKey, "application/json", strings.NewReader(body))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestOversizedJSONBodyRejected(t *testing.T) {
	a := newTestAPI(t, 100)
	deviceKey := a.issue(t, models.CredentialClassDevice, "MB-1001")
	adminKey := a.issue(t, models.CredentialClassAdmin, "")
	huge := `{"serial_number":"MB-1001","firmware_version":"` + strings.Repeat("x", 128<<10) + `"}`

	tests := []struct {
		path string
		key  string
	}{
		{"/api/v1/iot/event", deviceKey},
		{"/api/v1/iot/report", deviceKey},
		{"/api/v1/iot/activate", deviceKey},
		{"/api/v1/admin/serials", adminKey},
		{"/api/v1/admin/keys", adminKey},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			before := a.db.Writes()
			resp := a.do(t, http.MethodPost, tt.path, tt.key, "application/json", strings.NewReader(huge))
			if resp.StatusCode != http.StatusRequestEntityTooLarge {
				t.Fatalf("status = %d, want 413", resp.StatusCode)
			}
			if got := a.db.Writes(); got != before {
				t.Errorf("oversized body wrote to the store (%d -> %d)", before, got)
			}
		})
	}
}

func TestRateLimitRetryAfter(t *testing.T) {
	a := newTestAPI(t, 2)
	key := a.issue(t, models.CredentialClassDevice, "MB-1001")

	for i := 0; i < 2; i++ {
		resp := a.do(t, http.MethodPost, "/api/v1/iot/event", key, "application/json", strings.NewReader(openReport))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("request %d: status = %d, want 201", i+1, resp.StatusCode)
		}
	}

	resp := a.do(t, http.MethodPost, "/api/v1/iot/event", key, "application/json", strings.NewReader(openReport))
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestAdminRoutes(t *testing.T) {
	a := newTestAPI(t, 100)
	deviceKey := a.issue(t, models.CredentialClassDevice, "MB-1001")
	adminKey := a.issue(t, models.CredentialClassAdmin, "")

	seed := `{"serial_number":"MB-3003","device_model":"MG-2"}`

	resp := a.do(t, http.MethodPost, "/api/v1/admin/serials", deviceKey, "application/json", strings.NewReader(seed))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("device key on admin route: status = %d, want 401", resp.StatusCode)
	}

	resp = a.do(t, http.MethodPost, "/api/v1/admin/serials", adminKey, "application/json", strings.NewReader(seed))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first seed: status = %d, want 201", resp.StatusCode)
	}
	resp = a.do(t, http.MethodPost, "/api/v1/admin/serials", adminKey, "application/json", strings.NewReader(seed))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat seed: status = %d, want 200", resp.StatusCode)
	}

	keyReq := `{"type":"iot","device_serial":"MB-3003","name":"mailbox 3003"}`
	resp = a.do(t, http.MethodPost, "/api/v1/admin/keys", adminKey, "application/json", strings.NewReader(keyReq))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("issue key: status = %d, want 201", resp.StatusCode)
	}
	var issued models.IssuedCredential
	decodeBody(t, resp, &issued)
	if !strings.HasPrefix(issued.Key, "iot_") {
		t.Fatalf("issued key = %q, want iot_ prefix", issued.Key)
	}

	status := a.do(t, http.MethodGet, "/api/v1/iot/status?serial=MB-3003", issued.Key, "", nil)
	if status.StatusCode != http.StatusOK {
		t.Fatalf("status with issued key: %d, want 200", status.StatusCode)
	}
}

func multipartUpload(t *testing.T, fields map[string]string, image []byte) (string, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if image != nil {
		part, err := mw.CreateFormFile("file", "capture.jpg")
		if err != nil {
			t.Fatal(err)
		}
		part.Write(image)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return mw.FormDataContentType(), &buf
}

// minimal JPEG header so content sniffing reports image/jpeg
var jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, bytes.Repeat([]byte{0x01}, 64)...)

func TestImageUploadAndRetrieval(t *testing.T) {
	a := newTestAPI(t, 100)
	key := a.issue(t, models.CredentialClassDevice, "MB-1001")

	t.Run("non-delivery event type", func(t *testing.T) {
		before := a.db.Writes()
		ct, body := multipartUpload(t, map[string]string{"serial_number": "MB-1001", "event_type": "open"}, jpegBytes)
		resp := a.do(t, http.MethodPost, "/api/v1/iot/upload", key, ct, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
		if got := a.db.Writes(); got != before {
			t.Errorf("rejected upload wrote to the store (%d -> %d)", before, got)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		ct, body := multipartUpload(t, map[string]string{"serial_number": "MB-1001"}, nil)
		resp := a.do(t, http.MethodPost, "/api/v1/iot/upload", key, ct, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("stored and served", func(t *testing.T) {
		ct, body := multipartUpload(t, map[string]string{"serial_number": "MB-1001", "event_type": "delivery"}, jpegBytes)
		resp := a.do(t, http.MethodPost, "/api/v1/iot/upload", key, ct, body)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want 201", resp.StatusCode)
		}
		var out models.ImageUploadResponse
		decodeBody(t, resp, &out)
		if out.Image == nil || out.Image.ID == "" {
			t.Fatalf("upload response missing image: %+v", out)
		}

		img := a.do(t, http.MethodGet, "/api/v1/images/"+out.Image.ID, "", "", nil)
		if img.StatusCode != http.StatusOK {
			t.Fatalf("get image: status = %d, want 200", img.StatusCode)
		}
		got, _ := io.ReadAll(img.Body)
		if !bytes.Equal(got, jpegBytes) {
			t.Errorf("served %d bytes, want %d", len(got), len(jpegBytes))
		}
		if img.Header.Get("Content-Type") != "image/jpeg" {
			t.Errorf("content type = %q, want image/jpeg", img.Header.Get("Content-Type"))
		}
	})

	t.Run("unknown image", func(t *testing.T) {
		resp := a.do(t, http.MethodGet, "/api/v1/images/img_doesnotexist", "", "", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestHealthAndMetrics(t *testing.T) {
	a := newTestAPI(t, 100)

	resp := a.do(t, http.MethodGet, "/api/v1/health", "", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: status = %d, want 200", resp.StatusCode)
	}
	var health map[string]any
	decodeBody(t, resp, &health)
	if health["status"] != "ok" || health["version"] != "test" {
		t.Errorf("health body = %v", health)
	}

	metrics := a.do(t, http.MethodGet, "/metrics", "", "", nil)
	if metrics.StatusCode != http.StatusOK {
		t.Fatalf("metrics: status = %d, want 200", metrics.StatusCode)
	}
}
