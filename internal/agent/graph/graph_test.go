package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoLiu-ai/agentic-chat/internal/agent/graph/conversations"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/graph/tools"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/model"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/repo"
	errx "github.com/JoLiu-ai/agentic-chat/internal/core/error"
)

// scriptedModel replays canned replies in order and records what it was asked.
type scriptedModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	calls   [][]*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, in)
	if len(m.replies) == 0 {
		return nil, errors.New("scripted model exhausted")
	}
	out := m.replies[0]
	m.replies = m.replies[1:]
	return out, nil
}

func (m *scriptedModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

type recordedRoute struct {
	sessionID   string
	userMessage string
	routedTo    string
	reasoning   string
}

type stubRecorder struct {
	mu     sync.Mutex
	routes []recordedRoute
}

func (r *stubRecorder) RecordRoute(_ context.Context, sessionID, userMessage, routedTo, reasoning string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, recordedRoute{sessionID, userMessage, routedTo, reasoning})
	return nil
}

type stubCodeRunner struct {
	mu     sync.Mutex
	codes  []string
	stdout string
	err    error
}

func (r *stubCodeRunner) Run(_ context.Context, code string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
	return r.stdout, r.err
}

func routerReply(next, reasoning string) *schema.Message {
	return schema.AssistantMessage(`{"next":"`+next+`","reasoning":"`+reasoning+`"}`, nil)
}

func toolCallReply(name, arguments string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			Function: schema.FunctionCall{Name: name, Arguments: arguments},
		}},
	}
}

type testHarness struct {
	router     *scriptedModel
	researcher *scriptedModel
	coder      *scriptedModel
	general    *scriptedModel
	repo       *repo.InMemoryConversationRepository
	recorder   *stubRecorder
	runner     Runner
}

func buildTestHarness(t *testing.T, codeRunner tools.CodeRunner, maxToolCalls int) *testHarness {
	t.Helper()
	ctx := context.Background()

	h := &testHarness{
		router:     &scriptedModel{},
		researcher: &scriptedModel{},
		coder:      &scriptedModel{},
		general:    &scriptedModel{},
		repo:       repo.NewInMemoryConversationRepository(),
		recorder:   &stubRecorder{},
	}

	if codeRunner == nil {
		codeRunner = &stubCodeRunner{}
	}
	sandbox := tools.SandboxConfig{MaxCodeLen: 5000}
	searchClient := tools.NewSearchClient(tools.SearchConfig{Endpoint: "http://127.0.0.1:0"})

	cfg := model.ConversationConfig{}
	cfg.History.MaxTurns = 20
	mm := conversations.NewMessagesManager(h.repo, cfg)

	runnable, err := BuildGraph(ctx, &GraphConfig{
		RouterModel:     h.router,
		ResearcherModel: h.researcher,
		CoderModel:      h.coder,
		GeneralModel:    h.general,
		RouterModelName: "router-test",
		AgentModelName:  "agent-test",
		ResearcherTools: []tool.BaseTool{tools.NewSearchWebTool(searchClient)},
		CoderTools:      []tool.BaseTool{tools.NewExecutePythonTool(codeRunner, sandbox)},
		MessagesManager: mm,
		RouteRecorder:   h.recorder,
		ToolMaxCalls:    maxToolCalls,
	})
	require.NoError(t, err)

	h.runner = &graphRunner{runnable: runnable}
	return h
}

func TestGraphRoutesToGeneralAssistant(t *testing.T) {
	h := buildTestHarness(t, nil, 10)
	h.router.replies = []*schema.Message{routerReply("general_assistant", "casual greeting")}
	h.general.replies = []*schema.Message{schema.AssistantMessage("Hello! How can I help?", nil)}

	result, err := h.runner.Invoke(context.Background(), model.QueryInput{SessionID: "s1", Query: "hi there"})
	require.NoError(t, err)

	assert.Equal(t, "Hello! How can I help?", result.Response)
	assert.Equal(t, model.AgentGeneral, result.RoutedAgent)
	assert.Equal(t, "casual greeting", result.Reasoning)
	assert.False(t, result.ToolLimitReached)

	// Both sides of the turn are persisted to the conversation history.
	history, err := h.repo.LoadHistory(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, schema.User, history.Messages[0].Role)
	assert.Equal(t, "hi there", history.Messages[0].Content)
	assert.Equal(t, schema.Assistant, history.Messages[1].Role)

	// The routing decision reaches the audit sink.
	require.Len(t, h.recorder.routes, 1)
	assert.Equal(t, recordedRoute{"s1", "hi there", "general_assistant", "casual greeting"}, h.recorder.routes[0])

	// The untouched specialists were never called.
	assert.Empty(t, h.researcher.calls)
	assert.Empty(t, h.coder.calls)
}

func TestGraphRouterContextExcludedFromAgentContext(t *testing.T) {
	h := buildTestHarness(t, nil, 10)
	h.router.replies = []*schema.Message{routerReply("general_assistant", "greeting")}
	h.general.replies = []*schema.Message{schema.AssistantMessage("hi!", nil)}

	_, err := h.runner.Invoke(context.Background(), model.QueryInput{SessionID: "s1", Query: "hello"})
	require.NoError(t, err)

	// The router sees its own system prompt; the specialist sees a different
	// one, and neither the router reply nor its prompt leaks into history.
	require.Len(t, h.router.calls, 1)
	require.Len(t, h.general.calls, 1)
	assert.Equal(t, schema.System, h.general.calls[0][0].Role)
	assert.NotEqual(t, h.router.calls[0][0].Content, h.general.calls[0][0].Content)

	history, err := h.repo.LoadHistory(context.Background(), "s1")
	require.NoError(t, err)
	for _, msg := range history.Messages {
		assert.NotContains(t, msg.Content, `"next"`)
	}
}

func TestGraphUnparseableRouteFailsTurn(t *testing.T) {
	h := buildTestHarness(t, nil, 10)
	h.router.replies = []*schema.Message{schema.AssistantMessage("I think the coder should handle this one.", nil)}

	_, err := h.runner.Invoke(context.Background(), model.QueryInput{SessionID: "s1", Query: "do something"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), errx.RouteParseMessage)

	// No specialist ran and no assistant reply was stored.
	assert.Empty(t, h.researcher.calls)
	assert.Empty(t, h.coder.calls)
	assert.Empty(t, h.general.calls)

	history, loadErr := h.repo.LoadHistory(context.Background(), "s1")
	require.NoError(t, loadErr)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, schema.User, history.Messages[0].Role)
}

func TestGraphRouteOutsideEnumFailsTurn(t *testing.T) {
	h := buildTestHarness(t, nil, 10)
	h.router.replies = []*schema.Message{routerReply("mathematician", "looks like math")}

	_, err := h.runner.Invoke(context.Background(), model.QueryInput{SessionID: "s1", Query: "integrate x^2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), errx.RouteParseMessage)
}

func TestGraphCoderToolLoop(t *testing.T) {
	codeRunner := &stubCodeRunner{stdout: "4\n"}
	h := buildTestHarness(t, codeRunner, 10)

	h.router.replies = []*schema.Message{routerReply("coder", "arithmetic request")}
	h.coder.replies = []*schema.Message{
		toolCallReply(tools.ToolExecutePython, `{"code":"print(2+2)"}`),
		schema.AssistantMessage("The answer is 4.", nil),
	}

	result, err := h.runner.Invoke(context.Background(), model.QueryInput{SessionID: "s1", Query: "what is 2+2?"})
	require.NoError(t, err)

	assert.Equal(t, "The answer is 4.", result.Response)
	assert.Equal(t, model.AgentCoder, result.RoutedAgent)
	assert.False(t, result.ToolLimitReached)

	// The sandbox ran exactly the code the model asked for.
	require.Len(t, codeRunner.codes, 1)
	assert.Equal(t, "print(2+2)", codeRunner.codes[0])

	// Second model call carries the tool result back.
	require.Len(t, h.coder.calls, 2)
	secondCall := h.coder.calls[1]
	last := secondCall[len(secondCall)-1]
	assert.Equal(t, schema.Tool, last.Role)
	assert.Contains(t, last.Content, "4")

	// Only the final answer lands in conversation history, not the tool chatter.
	history, err := h.repo.LoadHistory(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "The answer is 4.", history.Messages[1].Content)
}

func TestGraphResearcherUnknownToolIsTolerated(t *testing.T) {
	h := buildTestHarness(t, nil, 10)

	h.router.replies = []*schema.Message{routerReply("researcher", "needs fresh data")}
	h.researcher.replies = []*schema.Message{
		toolCallReply("imaginary_tool", `{"foo":"bar"}`),
		schema.AssistantMessage("I could not use that tool, but here is what I know.", nil),
	}

	result, err := h.runner.Invoke(context.Background(), model.QueryInput{SessionID: "s1", Query: "latest news"})
	require.NoError(t, err)
	assert.Equal(t, "I could not use that tool, but here is what I know.", result.Response)

	// The hallucinated call came back as an error payload, not a turn failure.
	require.Len(t, h.researcher.calls, 2)
	secondCall := h.researcher.calls[1]
	last := secondCall[len(secondCall)-1]
	assert.Contains(t, last.Content, "unknown_tool")
}

func TestGraphToolLimitForcesWrapUp(t *testing.T) {
	codeRunner := &stubCodeRunner{stdout: "ok"}
	h := buildTestHarness(t, codeRunner, 1)

	h.router.replies = []*schema.Message{routerReply("coder", "code heavy request")}
	h.coder.replies = []*schema.Message{
		toolCallReply(tools.ToolExecutePython, `{"code":"print('step 1')"}`),
		schema.AssistantMessage("Partial results only; I hit the tool budget.", nil),
	}

	result, err := h.runner.Invoke(context.Background(), model.QueryInput{SessionID: "s1", Query: "run many snippets"})
	require.NoError(t, err)

	assert.Equal(t, "Partial results only; I hit the tool budget.", result.Response)
	assert.True(t, result.ToolLimitReached)
	assert.Len(t, codeRunner.codes, 1)

	// The wrap-up notice was injected before the final model call.
	require.Len(t, h.coder.calls, 2)
	var sawNotice bool
	for _, msg := range h.coder.calls[1] {
		if msg.Role == schema.System && msg.Content != "" && msg != h.coder.calls[1][0] {
			sawNotice = true
		}
	}
	assert.True(t, sawNotice, "expected a wrap-up system notice in the final model call")
}

func TestGraphCoderMultiRoundToolLoop(t *testing.T) {
	codeRunner := &stubCodeRunner{stdout: "ok"}
	h := buildTestHarness(t, codeRunner, 10)

	h.router.replies = []*schema.Message{routerReply("coder", "multi-step task")}
	h.coder.replies = []*schema.Message{
		toolCallReply(tools.ToolExecutePython, `{"code":"print('step 1')"}`),
		toolCallReply(tools.ToolExecutePython, `{"code":"print('step 2')"}`),
		toolCallReply(tools.ToolExecutePython, `{"code":"print('step 3')"}`),
		schema.AssistantMessage("All three steps done.", nil),
	}

	result, err := h.runner.Invoke(context.Background(), model.QueryInput{SessionID: "s1", Query: "run three snippets"})
	require.NoError(t, err)

	assert.Equal(t, "All three steps done.", result.Response)
	assert.False(t, result.ToolLimitReached)

	// Every requested execution ran, in order, exactly once.
	require.Equal(t, []string{"print('step 1')", "print('step 2')", "print('step 3')"}, codeRunner.codes)

	// N tool rounds mean N+1 model invocations, each re-invocation carrying
	// the previous round's tool result as its last message.
	require.Len(t, h.coder.calls, 4)
	for i := 1; i < len(h.coder.calls); i++ {
		call := h.coder.calls[i]
		last := call[len(call)-1]
		assert.Equal(t, schema.Tool, last.Role, "re-invocation %d should end with a tool result", i)
	}

	// The loop halted: only the final answer joined the conversation history.
	history, err := h.repo.LoadHistory(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "All three steps done.", history.Messages[1].Content)
}

func TestGraphHistoryAppendOnlyAcrossTurns(t *testing.T) {
	h := buildTestHarness(t, nil, 10)
	ctx := context.Background()

	h.router.replies = []*schema.Message{routerReply("general_assistant", "greeting")}
	h.general.replies = []*schema.Message{schema.AssistantMessage("Hi! What can I do for you?", nil)}
	_, err := h.runner.Invoke(ctx, model.QueryInput{SessionID: "s1", Query: "hello"})
	require.NoError(t, err)

	firstTurn, err := h.repo.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, firstTurn.Messages, 2)

	h.router.replies = []*schema.Message{routerReply("general_assistant", "follow-up")}
	h.general.replies = []*schema.Message{schema.AssistantMessage("Still here.", nil)}
	_, err = h.runner.Invoke(ctx, model.QueryInput{SessionID: "s1", Query: "are you there?"})
	require.NoError(t, err)

	// The second turn appends; the first turn's prefix is untouched.
	secondTurn, err := h.repo.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, secondTurn.Messages, 4)
	for i, msg := range firstTurn.Messages {
		assert.Equal(t, msg.Role, secondTurn.Messages[i].Role)
		assert.Equal(t, msg.Content, secondTurn.Messages[i].Content)
	}
	assert.Equal(t, "are you there?", secondTurn.Messages[2].Content)
	assert.Equal(t, "Still here.", secondTurn.Messages[3].Content)
}
