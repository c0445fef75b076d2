package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/JoLiu-ai/agentic-chat/internal/store"
)

type messageStore interface {
	CreateMessage(ctx context.Context, m store.NewMessage) (*store.Message, error)
	UpdateMessageContent(ctx context.Context, messageID int64, content string) (*store.Message, error)
	DeleteMessage(ctx context.Context, messageID int64) error
	DeleteMessagesAfter(ctx context.Context, messageID int64) (int64, error)
	ListChildren(ctx context.Context, parentID int64) ([]*store.Message, error)
	CreateFeedback(ctx context.Context, messageID int64, feedbackType string) (*store.Feedback, error)
}

type messageHandler struct {
	store messageStore
}

func messageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return 0, false
	}
	return id, true
}

type createMessageRequest struct {
	SessionID string  `json:"session_id"`
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	AgentType *string `json:"agent_type"`
	Model     *string `json:"model"`
	ParentID  *int64  `json:"parent_id"`
}

func (h *messageHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "session_id and content are required")
		return
	}
	if req.Role != store.RoleUser && req.Role != store.RoleAssistant {
		writeError(w, http.StatusBadRequest, "role must be user or assistant")
		return
	}

	msg, err := h.store.CreateMessage(r.Context(), store.NewMessage{
		SessionID: req.SessionID,
		Role:      req.Role,
		Content:   req.Content,
		AgentType: req.AgentType,
		Model:     req.Model,
		ParentID:  req.ParentID,
	})
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

type updateMessageRequest struct {
	Content string `json:"content"`
}

func (h *messageHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := messageID(w, r)
	if !ok {
		return
	}

	var req updateMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	msg, err := h.store.UpdateMessageContent(r.Context(), id, req.Content)
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *messageHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := messageID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteMessage(r.Context(), id); err != nil {
		writeErrx(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *messageHandler) deleteAfter(w http.ResponseWriter, r *http.Request) {
	id, ok := messageID(w, r)
	if !ok {
		return
	}
	deleted, err := h.store.DeleteMessagesAfter(r.Context(), id)
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (h *messageHandler) children(w http.ResponseWriter, r *http.Request) {
	id, ok := messageID(w, r)
	if !ok {
		return
	}
	msgs, err := h.store.ListChildren(r.Context(), id)
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type feedbackRequest struct {
	FeedbackType string `json:"feedback_type"`
}

func (h *messageHandler) feedback(w http.ResponseWriter, r *http.Request) {
	id, ok := messageID(w, r)
	if !ok {
		return
	}

	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fb, err := h.store.CreateFeedback(r.Context(), id, req.FeedbackType)
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}
