package handlers

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(db *sqlx.DB, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Time   time.Time         `json:"time"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status: "healthy",
		Time:   time.Now(),
		Checks: map[string]string{"gateway": "ok"},
	}

	code := http.StatusOK
	if err := h.db.PingContext(r.Context()); err != nil {
		response.Status = "degraded"
		response.Checks["database"] = err.Error()
		code = http.StatusServiceUnavailable
	} else {
		response.Checks["database"] = "ok"
	}

	writeJSON(w, code, response)
}
