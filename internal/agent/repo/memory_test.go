package repo

import (
	"context"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepository(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryConversationRepository()

	require.NoError(t, r.AddMessage(ctx, "s1", schema.UserMessage("hi")))
	require.NoError(t, r.AddMessage(ctx, "s1", schema.AssistantMessage("hello", nil)))
	require.NoError(t, r.AddMessage(ctx, "s2", schema.UserMessage("other session")))

	history, err := r.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "s1", history.SessionID)
	assert.Equal(t, "hi", history.Messages[0].Content)

	count, err := r.GetMessageCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, r.ClearHistory(ctx, "s1"))
	count, err = r.GetMessageCount(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, count)

	// Clearing one session leaves the others alone.
	count, err = r.GetMessageCount(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInMemoryRepositoryUnknownSession(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryConversationRepository()

	history, err := r.LoadHistory(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, history.Messages)
}

func TestInMemoryRepositoryLoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryConversationRepository()
	require.NoError(t, r.AddMessage(ctx, "s1", schema.UserMessage("original")))

	history, err := r.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	history.Messages[0] = schema.UserMessage("mutated")

	reloaded, err := r.LoadHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "original", reloaded.Messages[0].Content)
}

func TestInMemoryRepositoryConcurrent(t *testing.T) {
	ctx := context.Background()
	r := NewInMemoryConversationRepository()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.AddMessage(ctx, "s1", schema.UserMessage("m"))
			_, _ = r.LoadHistory(ctx, "s1")
		}()
	}
	wg.Wait()

	count, err := r.GetMessageCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}
