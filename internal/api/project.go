package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/JoLiu-ai/agentic-chat/internal/store"
)

type projectStore interface {
	CreateProject(ctx context.Context, userID, name, description, color, icon string) (*store.Project, error)
	GetProject(ctx context.Context, projectID uuid.UUID) (*store.Project, error)
	ListProjects(ctx context.Context, userID string) ([]*store.Project, error)
	UpdateProject(ctx context.Context, projectID uuid.UUID, upd store.ProjectUpdate) (*store.Project, error)
	DeleteProject(ctx context.Context, projectID uuid.UUID) error
}

type projectHandler struct {
	store projectStore
}

func projectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return uuid.Nil, false
	}
	return id, true
}

type createProjectRequest struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
}

func (h *projectHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		req.UserID = defaultUserID
	}

	p, err := h.store.CreateProject(r.Context(), req.UserID, req.Name, req.Description, req.Color, req.Icon)
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *projectHandler) list(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = defaultUserID
	}

	projects, err := h.store.ListProjects(r.Context(), userID)
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// defaults returns the starter project templates without persisting them.
func (h *projectHandler) defaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, store.DefaultProjects)
}

func (h *projectHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	p, err := h.store.GetProject(r.Context(), id)
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	Icon        *string `json:"icon"`
}

func (h *projectHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}

	var req updateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.store.UpdateProject(r.Context(), id, store.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
	})
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *projectHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteProject(r.Context(), id); err != nil {
		writeErrx(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
