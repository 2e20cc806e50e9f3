// Package handlers provides the HTTP handlers of the storefront API.
// Handlers parse requests, call the service layer and map its errors to
// status codes.
//
// This package includes handlers for:
//   - Health checks and readiness probes
//   - The client shell and passcode gate
//   - The public storefront and concierge chat
//   - The admin editor and visitor monitor
//   - The AI studio
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Moaaz208/Mizo-Candle/pkg/utils"
	"github.com/rs/zerolog/log"
)

// Dependency is something the service needs to be ready: the storage
// backend, and Redis when it serves rate limits or the geo-IP cache.
type Dependency interface {
	Name() string
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints for monitoring and
// orchestration.
type HealthHandler struct {
	deps []Dependency
}

// NewHealthHandler creates a health handler checking deps on /ready.
//
// Example:
//
//	healthHandler := handlers.NewHealthHandler(backend, redisDB)
//	r.Get("/health", healthHandler.Health)
//	r.Get("/ready", healthHandler.Ready)
func NewHealthHandler(deps ...Dependency) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// HealthResponse represents the health check response structure.
//
// JSON example:
//
//	{
//	  "status": "ok",
//	  "timestamp": "2024-01-20T14:30:00Z",
//	  "services": {
//	    "postgres": "healthy",
//	    "redis": "healthy"
//	  }
//	}
type HealthResponse struct {
	Status    string            `json:"status"`             // Overall status: "ok" or "degraded"
	Timestamp time.Time         `json:"timestamp"`          // Current server time
	Services  map[string]string `json:"services,omitempty"` // Individual service health (readiness only)
}

// Health is the liveness probe. It never checks dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}

// Ready is the readiness probe. It pings every dependency with a 5 second
// budget and answers 503 if any of them fails.
//
// The store falls back to defaults when the backend is down, so the
// storefront keeps rendering; readiness still reports the outage so the
// instance can be taken out of rotation.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]string, len(h.deps))
	allHealthy := true

	for _, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			log.Error().Err(err).Str("dependency", dep.Name()).Msg("Health check failed")
			services[dep.Name()] = "unhealthy"
			allHealthy = false
			continue
		}
		services[dep.Name()] = "healthy"
	}

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Services:  services,
	}

	statusCode := http.StatusOK
	if !allHealthy {
		response.Status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	utils.RespondWithJSON(w, r, statusCode, response)
}
