package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JoLiu-ai/agentic-chat/internal/store"
)

type sessionStore interface {
	CreateSession(ctx context.Context, sessionID, userID, title string, projectID *uuid.UUID) (*store.Session, error)
	GetSession(ctx context.Context, sessionID string) (*store.Session, error)
	ListSessions(ctx context.Context, f store.SessionFilter) ([]*store.Session, error)
	UpdateSession(ctx context.Context, sessionID string, upd store.SessionUpdate) (*store.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	ListMessages(ctx context.Context, sessionID string) ([]*store.Message, error)
}

type sessionHandler struct {
	store sessionStore
}

type createSessionRequest struct {
	SessionID string     `json:"session_id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	ProjectID *uuid.UUID `json:"project_id"`
}

func (h *sessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		req.UserID = defaultUserID
	}

	sess, err := h.store.CreateSession(r.Context(), req.SessionID, req.UserID, req.Title, req.ProjectID)
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	h.listFiltered(w, r, false)
}

func (h *sessionHandler) listStarred(w http.ResponseWriter, r *http.Request) {
	h.listFiltered(w, r, true)
}

func (h *sessionHandler) listFiltered(w http.ResponseWriter, r *http.Request, starredOnly bool) {
	q := r.URL.Query()

	filter := store.SessionFilter{
		UserID:      q.Get("user_id"),
		StarredOnly: starredOnly,
	}
	if filter.UserID == "" {
		filter.UserID = defaultUserID
	}
	if pid := q.Get("project_id"); pid != "" {
		id, err := uuid.Parse(pid)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid project_id")
			return
		}
		filter.ProjectID = &id
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	sessions, err := h.store.ListSessions(r.Context(), filter)
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type updateSessionRequest struct {
	Title     *string    `json:"title"`
	ProjectID *uuid.UUID `json:"project_id"`
	IsStarred *bool      `json:"is_starred"`
	Tags      *[]string  `json:"tags"`
}

func (h *sessionHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.store.UpdateSession(r.Context(), r.PathValue("id"), store.SessionUpdate{
		Title:     req.Title,
		ProjectID: req.ProjectID,
		IsStarred: req.IsStarred,
		Tags:      req.Tags,
	})
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *sessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		writeErrx(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.store.ListMessages(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}
