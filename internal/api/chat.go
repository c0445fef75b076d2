package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/JoLiu-ai/agentic-chat/internal/agent/graph"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/model"
	"github.com/JoLiu-ai/agentic-chat/internal/store"
	logx "github.com/JoLiu-ai/agentic-chat/pkg/logger"
)

const defaultUserID = "default"

// chatStore is the slice of the store the chat endpoint needs. Declared on
// the consumer side so tests can substitute fakes.
type chatStore interface {
	EnsureSession(ctx context.Context, sessionID, userID string) (*store.Session, error)
	CountMessages(ctx context.Context, sessionID string) (int64, error)
	CreateMessage(ctx context.Context, m store.NewMessage) (*store.Message, error)
	AutoTitle(ctx context.Context, sessionID, firstMessage string) error
	TouchSession(ctx context.Context, sessionID string) error
}

type chatHandler struct {
	runner    graph.Runner
	store     chatStore
	modelName string
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Response         string `json:"response"`
	AgentType        string `json:"agent_type"`
	SessionID        string `json:"session_id"`
	MessageID        int64  `json:"message_id"`
	ParentID         int64  `json:"parent_id"`
	Reasoning        string `json:"reasoning,omitempty"`
	ToolLimitReached bool   `json:"tool_limit_reached,omitempty"`
}

// send runs one conversational turn: route, dispatch, persist both sides of
// the exchange as tree nodes.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.UserID == "" {
		req.UserID = defaultUserID
	}

	ctx := r.Context()

	sess, err := h.store.EnsureSession(ctx, req.SessionID, req.UserID)
	if err != nil {
		writeErrx(w, r, err)
		return
	}

	count, err := h.store.CountMessages(ctx, sess.SessionID)
	if err != nil {
		writeErrx(w, r, err)
		return
	}
	firstTurn := count == 0

	userMsg, err := h.store.CreateMessage(ctx, store.NewMessage{
		SessionID: sess.SessionID,
		Role:      store.RoleUser,
		Content:   req.Message,
	})
	if err != nil {
		writeErrx(w, r, err)
		return
	}

	result, err := h.runner.Invoke(ctx, model.QueryInput{
		SessionID: sess.SessionID,
		Query:     req.Message,
	})
	if err != nil {
		writeErrx(w, r, err)
		return
	}

	agentType := result.RoutedAgent.String()
	assistantMsg, err := h.store.CreateMessage(ctx, store.NewMessage{
		SessionID: sess.SessionID,
		Role:      store.RoleAssistant,
		Content:   result.Response,
		AgentType: &agentType,
		Model:     optional(h.modelName),
		ParentID:  &userMsg.MessageID,
	})
	if err != nil {
		writeErrx(w, r, err)
		return
	}

	if firstTurn {
		if err := h.store.AutoTitle(ctx, sess.SessionID, req.Message); err != nil {
			logx.Warn().Err(err).Str("session_id", sess.SessionID).Msg("Failed to auto-title session")
		}
	}
	if err := h.store.TouchSession(ctx, sess.SessionID); err != nil {
		logx.Warn().Err(err).Str("session_id", sess.SessionID).Msg("Failed to touch session")
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:         result.Response,
		AgentType:        agentType,
		SessionID:        sess.SessionID,
		MessageID:        assistantMsg.MessageID,
		ParentID:         userMsg.MessageID,
		Reasoning:        result.Reasoning,
		ToolLimitReached: result.ToolLimitReached,
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
