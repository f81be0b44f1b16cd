package validation

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mailguard/ingest/internal/errors"
	"github.com/mailguard/ingest/internal/models"
)

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	apiErr, ok := errors.AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %T (%v)", err, err)
	}
	if apiErr.Type != errors.ErrorTypeValidation {
		t.Fatalf("expected validation error, got %s", apiErr.Type)
	}
	details, ok := apiErr.Details.(map[string]any)
	if !ok {
		return nil
	}
	fes, _ := details["fields"].([]FieldError)
	names := make([]string, 0, len(fes))
	for _, fe := range fes {
		names = append(names, fe.Field)
	}
	return names
}

func TestDecodeTelemetryReport(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields []string
		ok     bool
	}{
		{
			name: "reed only",
			body: `{"serial_number":"SN-1","event_data":{"reed_sensor":true}}`,
			ok:   true,
		},
		{
			name: "label without reed",
			body: `{"serial_number":"SN-1","event_data":{"event_type":"delivery"}}`,
			ok:   true,
		},
		{
			name:   "no signal",
			body:   `{"serial_number":"SN-1","event_data":{"weight_value":10}}`,
			fields: []string{"event_data.reed_sensor"},
		},
		{
			name:   "battery out of range",
			body:   `{"serial_number":"SN-1","event_data":{"reed_sensor":false},"battery_level":101}`,
			fields: []string{"battery_level"},
		},
		{
			name:   "signal out of range",
			body:   `{"serial_number":"SN-1","event_data":{"reed_sensor":false},"signal_strength":5}`,
			fields: []string{"signal_strength"},
		},
		{
			name:   "missing serial",
			body:   `{"event_data":{"reed_sensor":false}}`,
			fields: []string{"serial_number"},
		},
		{
			name:   "zero threshold",
			body:   `{"serial_number":"SN-1","event_data":{"reed_sensor":false,"weight_threshold":0}}`,
			fields: []string{"event_data.weight_threshold"},
		},
		{
			name:   "negative threshold",
			body:   `{"serial_number":"SN-1","event_data":{"reed_sensor":false,"weight_threshold":-5}}`,
			fields: []string{"event_data.weight_threshold"},
		},
		{
			name: "unknown field",
			body: `{"serial_number":"SN-1","event_data":{"reed_sensor":true},"colour":"red"}`,
		},
		{
			name: "empty body",
			body: ``,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req models.TelemetryReportRequest
			err := DecodeJSON(strings.NewReader(tt.body), &req)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			got := fieldsOf(t, err)
			for _, want := range tt.fields {
				found := false
				for _, f := range got {
					if f == want {
						found = true
					}
				}
				if !found {
					t.Errorf("field %q not reported, got %v", want, got)
				}
			}
		})
	}
}

func TestDecodeJSONBodyLimit(t *testing.T) {
	valid := `{"serial_number":"SN-1","event_data":{"reed_sensor":true}}`
	pad := func(n int64) string { return valid + strings.Repeat(" ", int(n)-len(valid)) }

	t.Run("at the limit", func(t *testing.T) {
		var req models.TelemetryReportRequest
		if err := DecodeJSON(strings.NewReader(pad(MaxJSONBody)), &req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Serial != "SN-1" {
			t.Errorf("serial = %q", req.Serial)
		}
	})

	t.Run("one byte over", func(t *testing.T) {
		var req models.TelemetryReportRequest
		err := DecodeJSON(strings.NewReader(pad(MaxJSONBody+1)), &req)
		assertTooLarge(t, err, MaxJSONBody)
	})

	t.Run("unbounded stream", func(t *testing.T) {
		var req models.TelemetryReportRequest
		body := strings.NewReader(`{"serial_number":"` + strings.Repeat("A", 4<<20) + `"}`)
		err := DecodeJSON(body, &req)
		assertTooLarge(t, err, MaxJSONBody)
		if read := int64(4<<20) + 20 - int64(body.Len()); read > MaxJSONBody+1 {
			t.Errorf("read %d bytes, want at most %d", read, MaxJSONBody+1)
		}
	})

	t.Run("max bytes reader", func(t *testing.T) {
		var req models.TelemetryReportRequest
		body := http.MaxBytesReader(httptest.NewRecorder(), io.NopCloser(strings.NewReader(valid)), 16)
		err := DecodeJSON(body, &req)
		assertTooLarge(t, err, 16)
	})
}

func assertTooLarge(t *testing.T, err error, limit int64) {
	t.Helper()
	apiErr, ok := errors.AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %T (%v)", err, err)
	}
	if apiErr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("code = %d, want 413", apiErr.Code)
	}
	details, _ := apiErr.Details.(map[string]int64)
	if details["limit"] != limit {
		t.Errorf("limit = %v, want %d", apiErr.Details, limit)
	}
}

func TestValidSerial(t *testing.T) {
	for serial, want := range map[string]bool{
		"SN-1":        true,
		"MG_2024_001": true,
		"ab":          false,
		"-SN1":        false,
		"SN 1":        false,
		"":            false,
	} {
		if got := ValidSerial(serial); got != want {
			t.Errorf("ValidSerial(%q) = %v, want %v", serial, got, want)
		}
	}
}

func TestImagesQueryLimit(t *testing.T) {
	q := models.ImagesQuery{SerialQuery: models.SerialQuery{Serial: "SN-1"}, Limit: 500}
	fields := fieldsOf(t, Struct(&q))
	if len(fields) != 1 || fields[0] != "limit" {
		t.Fatalf("expected limit to be rejected, got %v", fields)
	}

	q.Limit = 20
	q.EventType = "delivery"
	if err := Struct(&q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequireSerial(t *testing.T) {
	if err := RequireSerial(""); !errors.IsValidation(err) {
		t.Fatalf("expected validation error for empty serial, got %v", err)
	}
	if err := RequireSerial("x y"); !errors.IsValidation(err) {
		t.Fatalf("expected validation error for malformed serial, got %v", err)
	}
	if err := RequireSerial("SN-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
