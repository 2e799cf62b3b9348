package transport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/rbac-admin/internal"
	"github.com/frahmantamala/rbac-admin/internal/core/common/pagination"
	"github.com/frahmantamala/rbac-admin/pkg/logger"
)

var ErrInvalidBody = errors.New("invalid request body")

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	if err := Write(w, status, data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteSuccess writes a success envelope.
func (h *BaseHandler) WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	h.WriteJSON(w, status, SuccessEnvelope(message, data))
}

// WritePaginated writes a success envelope with pagination meta.
func (h *BaseHandler) WritePaginated(w http.ResponseWriter, message string, items interface{}, meta pagination.Meta) {
	h.WriteJSON(w, http.StatusOK, PaginatedEnvelope(message, items, meta))
}

// WriteError writes an error envelope
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	h.WriteErrorDetails(w, status, message, nil)
}

func (h *BaseHandler) WriteErrorDetails(w http.ResponseWriter, status int, message string, errs interface{}) {
	if status >= http.StatusInternalServerError {
		h.Logger.Error("http error", "status", status, "message", message, "errors", errs)
	} else {
		h.Logger.Warn("http error", "status", status, "message", message)
	}
	h.WriteJSON(w, status, ErrorEnvelope(message, errs))
}

// HandleServiceError maps err onto the error envelope. AppErrors keep their
// status and message; anything else becomes a 500 with fallback as message.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, err error, fallback string) {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		h.WriteErrorDetails(w, http.StatusInternalServerError, fallback, err.Error())
		return
	}

	switch appErr.Type {
	case internal.ErrorTypeValidation:
		var errs interface{}
		if details, ok := appErr.Details.(internal.ValidationErrors); ok {
			errs = fieldErrors(details)
		}
		h.WriteErrorDetails(w, appErr.StatusCode, appErr.GetDetailedMessage(), errs)
	case internal.ErrorTypeStore, internal.ErrorTypeInternal:
		var cause interface{}
		if appErr.Cause != nil {
			cause = appErr.Cause.Error()
		}
		h.WriteErrorDetails(w, appErr.StatusCode, fallback, cause)
	default:
		h.WriteError(w, appErr.StatusCode, appErr.Message)
	}
}

// fieldErrors groups validation messages by field, the shape clients of
// the original API expect.
func fieldErrors(details internal.ValidationErrors) map[string][]string {
	out := make(map[string][]string, len(details.Errors))
	for _, e := range details.Errors {
		field := e.Field
		if field == "" {
			field = "general"
		}
		out[field] = append(out[field], e.Message)
	}
	return out
}

// DecodeJSON decodes the request body into dst. An empty body decodes to
// the zero value so field validation can report what is missing.
func (h *BaseHandler) DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return ErrInvalidBody
	}
	return nil
}

// IDParam parses a positive integer URL parameter.
func (h *BaseHandler) IDParam(r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}

	return strings.TrimSpace(authHeader[7:])
}
