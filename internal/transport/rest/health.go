package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/frahmantamala/rbac-admin/internal/transport"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus `json:"status"`
	Message    string       `json:"message,omitempty"`
	CheckedAt  time.Time    `json:"checked_at"`
	DurationMs int64        `json:"duration_ms"`
}

type HealthHandler struct {
	db    *sqlx.DB
	redis redis.UniversalClient
}

// NewHealthHandler checks the database and, when given, Redis.
func NewHealthHandler(db *sqlx.DB, rdb redis.UniversalClient) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb}
}

// Ping only says the process is up.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	_ = transport.Write(w, http.StatusOK, map[string]string{"status": "OK"})
}

// Health checks every dependency and reports 503 if any is down.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:     HealthHealthy,
		Components: map[string]CheckEntry{},
	}

	if h.db != nil {
		resp.Components["postgres"] = check(ctx, h.db.PingContext)
	}
	if h.redis != nil {
		resp.Components["redis"] = check(ctx, func(ctx context.Context) error {
			return h.redis.Ping(ctx).Err()
		})
	}

	for _, entry := range resp.Components {
		if entry.Status == HealthUnhealthy {
			resp.Status = HealthUnhealthy
		}
	}
	resp.CheckedAt = time.Now()

	statusCode := http.StatusOK
	if resp.Status == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	_ = transport.Write(w, statusCode, resp)
}

func check(ctx context.Context, ping func(context.Context) error) CheckEntry {
	start := time.Now()
	err := ping(ctx)

	entry := CheckEntry{
		Status:     HealthHealthy,
		CheckedAt:  time.Now(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = err.Error()
	}
	return entry
}
