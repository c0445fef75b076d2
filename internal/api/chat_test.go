package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoLiu-ai/agentic-chat/internal/agent/model"
	errx "github.com/JoLiu-ai/agentic-chat/internal/core/error"
	"github.com/JoLiu-ai/agentic-chat/internal/store"
)

// fakeChatStore records calls and returns canned rows.
type fakeChatStore struct {
	messages     []store.NewMessage
	messageCount int64
	autoTitled   []string
	touched      []string
	createErr    error
	nextID       int64
}

func (f *fakeChatStore) EnsureSession(_ context.Context, sessionID, userID string) (*store.Session, error) {
	if sessionID == "" {
		sessionID = "generated-session"
	}
	return &store.Session{SessionID: sessionID, UserID: userID, Title: "New Chat", CreatedAt: time.Now()}, nil
}

func (f *fakeChatStore) CountMessages(_ context.Context, _ string) (int64, error) {
	return f.messageCount, nil
}

func (f *fakeChatStore) CreateMessage(_ context.Context, m store.NewMessage) (*store.Message, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.messages = append(f.messages, m)
	f.nextID++
	return &store.Message{
		MessageID: f.nextID,
		SessionID: m.SessionID,
		Role:      m.Role,
		Content:   m.Content,
		AgentType: m.AgentType,
		Model:     m.Model,
		ParentID:  m.ParentID,
	}, nil
}

func (f *fakeChatStore) AutoTitle(_ context.Context, sessionID, _ string) error {
	f.autoTitled = append(f.autoTitled, sessionID)
	return nil
}

func (f *fakeChatStore) TouchSession(_ context.Context, sessionID string) error {
	f.touched = append(f.touched, sessionID)
	return nil
}

// fakeRunner is a scripted graph.Runner.
type fakeRunner struct {
	result *model.ChatResult
	err    error
	input  model.QueryInput
}

func (f *fakeRunner) Invoke(_ context.Context, in model.QueryInput) (*model.ChatResult, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func postChat(t *testing.T, h *chatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.send(rec, req)
	return rec
}

func TestChatSend(t *testing.T) {
	fs := &fakeChatStore{}
	runner := &fakeRunner{result: &model.ChatResult{
		Response:    "4",
		RoutedAgent: model.AgentCoder,
		Reasoning:   "arithmetic via code",
	}}
	h := &chatHandler{runner: runner, store: fs, modelName: "gemini-2.5-flash"}

	rec := postChat(t, h, `{"session_id":"s1","message":"what is 2+2"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "4", resp.Response)
	assert.Equal(t, "coder", resp.AgentType)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "arithmetic via code", resp.Reasoning)

	// Both sides of the exchange are persisted as tree nodes.
	require.Len(t, fs.messages, 2)
	userMsg, assistantMsg := fs.messages[0], fs.messages[1]
	assert.Equal(t, store.RoleUser, userMsg.Role)
	assert.Nil(t, userMsg.ParentID)
	assert.Equal(t, store.RoleAssistant, assistantMsg.Role)
	require.NotNil(t, assistantMsg.ParentID)
	assert.Equal(t, int64(1), *assistantMsg.ParentID)
	assert.Equal(t, resp.ParentID, *assistantMsg.ParentID)
	require.NotNil(t, assistantMsg.AgentType)
	assert.Equal(t, "coder", *assistantMsg.AgentType)

	// First turn titles the session, every turn touches it.
	assert.Equal(t, []string{"s1"}, fs.autoTitled)
	assert.Equal(t, []string{"s1"}, fs.touched)

	assert.Equal(t, model.QueryInput{SessionID: "s1", Query: "what is 2+2"}, runner.input)
}

func TestChatSendSkipsAutoTitleAfterFirstTurn(t *testing.T) {
	fs := &fakeChatStore{messageCount: 4}
	runner := &fakeRunner{result: &model.ChatResult{Response: "hi", RoutedAgent: model.AgentGeneral}}
	h := &chatHandler{runner: runner, store: fs}

	rec := postChat(t, h, `{"session_id":"s1","message":"hello again"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, fs.autoTitled)
	assert.Equal(t, []string{"s1"}, fs.touched)
}

func TestChatSendEmptyMessage(t *testing.T) {
	h := &chatHandler{runner: &fakeRunner{}, store: &fakeChatStore{}}

	for _, body := range []string{`{"message":""}`, `{"message":"   "}`, `{}`} {
		rec := postChat(t, h, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestChatSendInvalidBody(t *testing.T) {
	h := &chatHandler{runner: &fakeRunner{}, store: &fakeChatStore{}}

	rec := postChat(t, h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatSendRouteParseFailure(t *testing.T) {
	fs := &fakeChatStore{}
	runner := &fakeRunner{err: errx.WrapRouteParse(errors.New("unparseable reply"))}
	h := &chatHandler{runner: runner, store: fs}

	rec := postChat(t, h, `{"session_id":"s1","message":"hello"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, errx.RouteParseMessage, body.Error)

	// The user turn was persisted before the failure; no assistant node exists.
	require.Len(t, fs.messages, 1)
	assert.Equal(t, store.RoleUser, fs.messages[0].Role)
}

func TestChatSendToolLimitSurfaced(t *testing.T) {
	fs := &fakeChatStore{}
	runner := &fakeRunner{result: &model.ChatResult{
		Response:         "partial answer",
		RoutedAgent:      model.AgentResearcher,
		ToolLimitReached: true,
	}}
	h := &chatHandler{runner: runner, store: fs}

	rec := postChat(t, h, `{"session_id":"s1","message":"research everything"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.ToolLimitReached)
}
