// FilePath: internal/validation/validator.go
package validation

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/mailguard/ingest/internal/errors"
)

// MaxJSONBody caps the size of a JSON request body
const MaxJSONBody int64 = 64 << 10

var (
	validate     *validator.Validate
	validateOnce sync.Once

	serialPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{2,63}$`)
)

// FieldError describes one rejected field
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// GetValidator returns the shared validator with the custom rules registered
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldName)
		_ = validate.RegisterValidation("serial", func(fl validator.FieldLevel) bool {
			return ValidSerial(fl.Field().String())
		})
	})
	return validate
}

// ValidSerial reports whether s is an acceptable serial number
func ValidSerial(s string) bool {
	return serialPattern.MatchString(s)
}

// Struct validates v and returns a validation APIError listing every offending field
func Struct(v any) error {
	err := GetValidator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.NewValidationError("invalid request", err)
	}

	fields := make([]FieldError, 0, len(verrs))
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		f := FieldError{Field: namespace(fe), Tag: fe.Tag(), Message: translate(fe)}
		fields = append(fields, f)
		messages = append(messages, f.Message)
	}
	return errors.NewValidationError(strings.Join(messages, "; "), err).
		WithDetails(map[string]any{"fields": fields})
}

// DecodeJSON strictly decodes a request body of at most MaxJSONBody bytes into dst and validates it
func DecodeJSON(body io.Reader, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(body, MaxJSONBody+1))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return tooLargeError(tooLarge.Limit)
		}
		return errors.NewValidationError("unable to read request body", err)
	}
	if int64(len(raw)) > MaxJSONBody {
		return tooLargeError(MaxJSONBody)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return errors.NewValidationError("request body is empty", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.NewValidationError("invalid request body", err).
			WithDetails(map[string]string{"error": err.Error()})
	}
	return Struct(dst)
}

func tooLargeError(limit int64) error {
	return errors.NewPayloadTooLargeError(fmt.Sprintf("request body exceeds %d bytes", limit), nil).
		WithDetails(map[string]int64{"limit": limit})
}

// RequireSerial rejects an empty or malformed serial parameter
func RequireSerial(serial string) error {
	if serial == "" {
		return errors.NewValidationError("serial_number is required", nil).
			WithDetails(map[string]any{"fields": []FieldError{{Field: "serial_number", Tag: "required", Message: "serial_number is required"}}})
	}
	if !ValidSerial(serial) {
		return errors.NewValidationError("serial_number is malformed", nil).
			WithDetails(map[string]any{"fields": []FieldError{{Field: "serial_number", Tag: "serial", Message: "serial_number is malformed"}}})
	}
	return nil
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "schema"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// namespace drops the root struct name: TelemetryReportRequest.event_data.reed_sensor -> event_data.reed_sensor
func namespace(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

var messageTemplates = map[string]string{
	"required":         "%s is required",
	"required_without": "%s is required when %s is absent",
	"serial":           "%s is not a valid serial number",
	"oneof":            "%s must be one of: %s",
	"min":              "%s must be at least %s",
	"max":              "%s must be at most %s",
	"gte":              "%s must be greater than or equal to %s",
	"gt":               "%s must be greater than %s",
	"datetime":         "%s must be an RFC3339 timestamp",
}

func translate(fe validator.FieldError) string {
	field := namespace(fe)
	tmpl, ok := messageTemplates[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
	if strings.Count(tmpl, "%s") == 2 {
		return fmt.Sprintf(tmpl, field, fe.Param())
	}
	return fmt.Sprintf(tmpl, field)
}
