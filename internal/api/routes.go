package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/JoLiu-ai/agentic-chat/internal/store"
)

type routeStore interface {
	ListRouteHistory(ctx context.Context, limit int) ([]*store.RouteEntry, error)
	ListSessionRoutes(ctx context.Context, sessionID string) ([]*store.RouteEntry, error)
	RouteStatsSummary(ctx context.Context) (*store.RouteStats, error)
}

type routeHandler struct {
	store routeStore
}

func (h *routeHandler) history(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.store.ListRouteHistory(r.Context(), limit)
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *routeHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.RouteStatsSummary(r.Context())
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *routeHandler) session(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListSessionRoutes(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
