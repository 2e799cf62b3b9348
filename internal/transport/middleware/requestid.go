package middleware

import (
	"net/http"

	"github.com/frahmantamala/rbac-admin/pkg/logger"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
)

const TraceIDHeader = "X-Trace-ID"

// TraceID propagates or mints an X-Trace-ID and attaches it, together with
// chi's request id, to the context logger.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceIDHeader)
		if _, err := uuid.Parse(traceID); err != nil {
			traceID = uuid.NewString()
		}

		fields := []any{"trace_id", traceID}
		if reqID := chiMiddleware.GetReqID(r.Context()); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		ctx := logger.With(r.Context(), fields...)

		w.Header().Set(TraceIDHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
