package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sigma-sports/gamification/internal/domain"
	"github.com/sigma-sports/gamification/internal/service"
)

// GetLeaderboard returns one page of a ranked leaderboard
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	period, err := domain.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	page, err := queryInt(r, "page", 1)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	perPage, err := queryInt(r, "per_page", h.defaultPerPage)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	q := domain.LeaderboardQuery{Period: period, Page: page, PerPage: perPage}
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
		q.CurrentUserID = id
	}

	result, err := h.service.GetLeaderboard(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, "get leaderboard", err)
		return
	}
	h.writeSuccess(w, result)
}

// GetPointsDashboard returns a user's points overview
func (h *Handler) GetPointsDashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	dash, err := h.service.GetPointsDashboard(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "get dashboard", err)
		return
	}
	h.writeSuccess(w, dash)
}

// GetAchievements returns the catalog with the user's unlock state
func (h *Handler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := h.service.GetAchievements(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "get achievements", err)
		return
	}
	h.writeSuccess(w, view)
}

// GetPointsHistory returns a user's ledger, newest first
func (h *Handler) GetPointsHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	history, err := h.service.GetPointsHistory(r.Context(), userID, r.URL.Query().Get("activity_type"), limit)
	if err != nil {
		h.writeServiceError(w, "get history", err)
		return
	}
	h.writeSuccess(w, history)
}

// IngestProfile accepts a profile lifecycle event
func (h *Handler) IngestProfile(w http.ResponseWriter, r *http.Request) {
	ingest(h, w, r, "ingest profile", h.service.IngestProfile)
}

// IngestParticipation accepts a participation lifecycle event
func (h *Handler) IngestParticipation(w http.ResponseWriter, r *http.Request) {
	ingest(h, w, r, "ingest participation", h.service.IngestParticipation)
}

// IngestEvent accepts an event lifecycle event
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	ingest(h, w, r, "ingest event", h.service.IngestEvent)
}

// IngestReview accepts a review creation event
func (h *Handler) IngestReview(w http.ResponseWriter, r *http.Request) {
	ingest(h, w, r, "ingest review", h.service.IngestReview)
}

func ingest[T any](h *Handler, w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, T) (*service.IngestResult, error)) {
	var ev T
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	res, err := fn(r.Context(), ev)
	if err != nil {
		h.writeServiceError(w, op, err)
		return
	}
	h.writeSuccess(w, res)
}
