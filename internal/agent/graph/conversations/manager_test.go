package conversations

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoLiu-ai/agentic-chat/internal/agent/model"
	"github.com/JoLiu-ai/agentic-chat/internal/agent/repo"
)

func newTestManager(maxTurns int) (*MessagesManager, *repo.InMemoryConversationRepository) {
	r := repo.NewInMemoryConversationRepository()
	cfg := model.ConversationConfig{}
	cfg.History.MaxTurns = maxTurns
	return NewMessagesManager(r, cfg), r
}

func TestProcessUserMessage(t *testing.T) {
	ctx := context.Background()
	mm, r := newTestManager(20)

	history, err := mm.ProcessUserMessage(ctx, "s1", "hello")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, schema.User, history[0].Role)
	assert.Equal(t, "hello", history[0].Content)

	// The user turn is persisted, not just returned.
	count, err := r.GetMessageCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcessUserMessageTrimsWindow(t *testing.T) {
	ctx := context.Background()
	mm, r := newTestManager(4)

	for i := 0; i < 10; i++ {
		require.NoError(t, r.AddMessage(ctx, "s1", schema.UserMessage(fmt.Sprintf("turn %d", i))))
	}

	history, err := mm.ProcessUserMessage(ctx, "s1", "latest")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "latest", history[3].Content)
	assert.Equal(t, "turn 9", history[2].Content)
}

func TestBuildContextPrependsSystemPrompt(t *testing.T) {
	ctx := context.Background()
	mm, r := newTestManager(20)

	require.NoError(t, r.AddMessage(ctx, "s1", schema.UserMessage("hi")))
	require.NoError(t, r.AddMessage(ctx, "s1", schema.AssistantMessage("hello!", nil)))

	messages, err := mm.BuildContext(ctx, "s1", "You are helpful.")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, schema.System, messages[0].Role)
	assert.Equal(t, "You are helpful.", messages[0].Content)
	assert.Equal(t, schema.User, messages[1].Role)
	assert.Equal(t, schema.Assistant, messages[2].Role)
}

func TestSaveResponse(t *testing.T) {
	ctx := context.Background()
	mm, r := newTestManager(20)

	require.NoError(t, mm.SaveResponse(ctx, "s1", "done"))

	history, err := r.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, schema.Assistant, history.Messages[0].Role)
	assert.Equal(t, "done", history.Messages[0].Content)
}

func TestTrimTail(t *testing.T) {
	msgs := []*schema.Message{
		schema.UserMessage("a"),
		schema.UserMessage("b"),
		schema.UserMessage("c"),
	}

	t.Run("under limit returns copy", func(t *testing.T) {
		out := trimTail(msgs, 5)
		require.Len(t, out, 3)
		out[0] = schema.UserMessage("mutated")
		assert.Equal(t, "a", msgs[0].Content)
	})

	t.Run("over limit keeps tail", func(t *testing.T) {
		out := trimTail(msgs, 2)
		require.Len(t, out, 2)
		assert.Equal(t, "b", out[0].Content)
		assert.Equal(t, "c", out[1].Content)
	})

	t.Run("zero limit keeps everything", func(t *testing.T) {
		out := trimTail(msgs, 0)
		assert.Len(t, out, 3)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, trimTail(nil, 4))
	})
}
