package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/frahmantamala/rbac-admin/internal/transport"
	"github.com/frahmantamala/rbac-admin/pkg/logger"
)

// RecoveryMiddleware turns a panic into a 500 error envelope. The panic value
// is logged, never echoed to the client.
func RecoveryMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				lg, ok := logger.Lookup(r.Context())
				if !ok {
					lg = base
				}
				lg.Error("panic recovered",
					"error", rec,
					"method", r.Method,
					"url", r.URL.String(),
					"stack", string(debug.Stack()))

				_ = transport.Write(w, http.StatusInternalServerError, transport.ErrorEnvelope("Internal server error", nil))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
