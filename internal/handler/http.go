package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/logger"
	"github.com/sigma-sports/gamification/internal/service"
	"github.com/sigma-sports/gamification/internal/websocket"
)

// Handler provides HTTP handlers for the gamification API
type Handler struct {
	service        *service.GamificationService
	hub            *websocket.Hub
	defaultPerPage int
	logger         *logger.Logger
}

// NewHandler creates a new HTTP handler. hub may be nil.
func NewHandler(svc *service.GamificationService, hub *websocket.Hub, defaultPerPage int, log *logger.Logger) *Handler {
	if defaultPerPage <= 0 {
		defaultPerPage = 20
	}
	return &Handler{
		service:        svc,
		hub:            hub,
		defaultPerPage: defaultPerPage,
		logger:         log.With("component", "HTTPHandler"),
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/leaderboard", h.GetLeaderboard)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/dashboard", h.GetPointsDashboard)
			r.Get("/achievements", h.GetAchievements)
			r.Get("/history", h.GetPointsHistory)
		})

		// Mirrors of the Kafka domain-event topic
		r.Route("/ingest", func(r chi.Router) {
			r.Post("/profiles", h.IngestProfile)
			r.Post("/participations", h.IngestParticipation)
			r.Post("/events", h.IngestEvent)
			r.Post("/reviews", h.IngestReview)
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeServiceError maps a service error onto a status code. Unexpected
// errors are logged and hidden from the caller.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case domain.IsValidationError(err):
		h.writeError(w, http.StatusBadRequest, err)
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		h.writeError(w, http.StatusServiceUnavailable, errors.New("websocket disabled"))
		return
	}
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		h.writeSuccess(w, map[string]int{"total_connections": 0})
		return
	}
	h.writeSuccess(w, h.hub.Stats())
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck reports ready once the database answers
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, errors.New("database unavailable"))
		return
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.ErrInvalidRequest
	}
	return v, nil
}

func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidRequest
	}
	return id, nil
}
