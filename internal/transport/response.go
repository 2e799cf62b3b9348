package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/frahmantamala/rbac-admin/internal/core/common/pagination"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	// TimestampLayout is how every resource renders created_at/updated_at.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Envelope is the body of every API response.
type Envelope struct {
	Status  string           `json:"status"`
	Message string           `json:"message"`
	Data    interface{}      `json:"data,omitempty"`
	Meta    *pagination.Meta `json:"meta,omitempty"`
	Errors  interface{}      `json:"errors,omitempty"`
}

func SuccessEnvelope(message string, data interface{}) Envelope {
	return Envelope{Status: StatusSuccess, Message: message, Data: data}
}

func PaginatedEnvelope(message string, items interface{}, meta pagination.Meta) Envelope {
	return Envelope{Status: StatusSuccess, Message: message, Data: items, Meta: &meta}
}

func ErrorEnvelope(message string, errs interface{}) Envelope {
	return Envelope{Status: StatusError, Message: message, Errors: errs}
}

// Write encodes body as JSON with the given status.
func Write(w http.ResponseWriter, status int, body interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}
