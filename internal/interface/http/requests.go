package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
)

// dateLayout is the wire format of leave dates.
const dateLayout = "2006-01-02"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// ══════════════════════════════════════════════════════════════════════════════
// REQUESTS
// ══════════════════════════════════════════════════════════════════════════════

type academicLeaveRequest struct {
	OrderID  string `query:"order_uuid" validate:"required,uuid"`
	DateFrom string `query:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo   string `query:"date_to" validate:"required,datetime=2006-01-02"`
	Reason   string `query:"reason" validate:"max=2000"`
}

type orderRequest struct {
	OrderID string `query:"order_uuid" validate:"required,uuid"`
}

type sendPlanRequest struct {
	OrderID  string `query:"order_uuid" validate:"required,uuid"`
	Template string `query:"template" validate:"max=4096"`
}

type sendPlansRequest struct {
	MentorID string `query:"mentor_uuid" validate:"required,uuid"`
	Template string `query:"template" validate:"max=4096"`
}

type studyDaysRequest struct {
	OrderID string `query:"order_uuid" validate:"required,uuid"`
	Days    int    `query:"days" validate:"gte=0,lte=366"`
}

type requestCodeRequest struct {
	Phone string `json:"phone_number" validate:"required,e164"`
}

type completeLoginRequest struct {
	Phone         string `json:"phone_number" validate:"required,e164"`
	Code          string `json:"verification_code" validate:"required,numeric,min=4,max=8"`
	PhoneCodeHash string `json:"phone_code_hash" validate:"required,max=256"`
	Password      string `json:"password,omitempty" validate:"max=256"`
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// FieldError describes one rejected field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// requestValidator wraps validator/v10 and reports fields by their wire names.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"query", "json"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return &requestValidator{validate: v}
}

// Struct validates req and returns the field details on failure.
func (v *requestValidator) Struct(req any) ([]FieldError, error) {
	err := v.validate.Struct(req)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	return fields, shared.NewDomainError("http", "Validate", shared.ErrValidation, "request validation failed")
}

// ══════════════════════════════════════════════════════════════════════════════
// BINDING
// ══════════════════════════════════════════════════════════════════════════════

// bind validates req and writes a 400 response on failure.
func (s *Server) bind(w http.ResponseWriter, r *http.Request, req any) bool {
	fields, err := s.validator.Struct(req)
	if err == nil {
		return true
	}
	if len(fields) > 0 {
		writeError(w, r, err, fields)
	} else {
		writeError(w, r, err, nil)
	}
	return false
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return shared.NewDomainError("http", "Decode", shared.ErrValidation, "request body is empty")
		}
		return shared.WrapError("http", "Decode", shared.ErrValidation, "request body is not valid JSON", err)
	}
	return nil
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, shared.WrapError("http", "Query", shared.ErrValidation, fmt.Sprintf("%s must be an integer", key), err)
	}
	return n, nil
}

// parseDate parses a validated YYYY-MM-DD value as a UTC date.
func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, value, time.UTC)
}
