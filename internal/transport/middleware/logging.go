package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/rbac-admin/pkg/logger"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

const filtered = "[FILTERED]"

// sensitiveFields are matched as substrings of lowercased header and JSON keys.
var sensitiveFields = []string{
	"password",
	"token",
	"authorization",
	"secret",
	"api_key",
	"cookie",
	"session",
	"credential",
}

// maxLoggedBody caps how much of a request body is buffered for logging.
const maxLoggedBody = 64 << 10

// LoggingMiddleware logs one line per request through the context logger so
// trace and user ids attached upstream are carried along. Request bodies are
// logged at debug level with sensitive fields masked.
func LoggingMiddleware(base *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lg := requestLogger(base, r)

			if lg.Enabled(r.Context(), slog.LevelDebug) {
				lg.Debug("incoming request",
					"headers", filterSensitiveHeaders(r.Header),
					"body", filterSensitiveBody(peekBody(r)),
				)
			}

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			level := slog.LevelInfo
			switch {
			case status >= http.StatusInternalServerError:
				level = slog.LevelError
			case status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}

			lg.Log(r.Context(), level, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		})
	}
}

func requestLogger(base *slog.Logger, r *http.Request) *slog.Logger {
	if lg, ok := logger.Lookup(r.Context()); ok {
		return lg
	}
	lg := base
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	if reqID := chiMiddleware.GetReqID(r.Context()); reqID != "" {
		lg = lg.With("request_id", reqID)
	}
	return lg
}

// peekBody reads up to maxLoggedBody bytes and restores the body for the
// next handler.
func peekBody(r *http.Request) []byte {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody))
	if err != nil {
		return nil
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	return head
}

func isSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

func filterSensitiveHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitive(name) {
			out[name] = filtered
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// filterSensitiveBody masks sensitive keys in JSON bodies. Non-JSON bodies
// are dropped when they mention a sensitive field at all.
func filterSensitiveBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		if isSensitive(string(body)) {
			return "[FILTERED - Contains sensitive data]"
		}
		return string(body)
	}

	out, err := json.Marshal(filterSensitiveJSON(data))
	if err != nil {
		return "[ERROR - Failed to marshal filtered JSON]"
	}
	return string(out)
}

func filterSensitiveJSON(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitive(key) {
				out[key] = filtered
			} else {
				out[key] = filterSensitiveJSON(value)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = filterSensitiveJSON(item)
		}
		return out
	default:
		return v
	}
}
