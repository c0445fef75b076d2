package conversations

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/JoLiu-ai/agentic-chat/internal/agent/model"
)

// MessagesManager mediates between graph nodes and the conversation
// repository: it persists the user turn, rebuilds model context from history,
// and stores the final assistant reply.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	historyMaxTurns  int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		historyMaxTurns:  config.History.MaxTurns,
	}
}

// ProcessUserMessage persists the inbound user turn and returns the
// conversation history including it, trimmed to the configured window.
func (mm *MessagesManager) ProcessUserMessage(ctx context.Context, sessionID string, query string) ([]*schema.Message, error) {
	userMsg := schema.UserMessage(query)
	if err := mm.conversationRepo.AddMessage(ctx, sessionID, userMsg); err != nil {
		return nil, err
	}

	history, err := mm.conversationRepo.LoadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return trimTail(history.Messages, mm.historyMaxTurns), nil
}

// BuildContext prefixes a system prompt onto the trimmed history.
func (mm *MessagesManager) BuildContext(ctx context.Context, sessionID string, systemPrompt string) ([]*schema.Message, error) {
	history, err := mm.conversationRepo.LoadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	recent := trimTail(history.Messages, mm.historyMaxTurns)
	messages := make([]*schema.Message, 0, len(recent)+1)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, recent...)

	return messages, nil
}

// SaveResponse stores the final assistant reply for the session.
func (mm *MessagesManager) SaveResponse(ctx context.Context, sessionID string, content string) error {
	assistantMsg := schema.AssistantMessage(content, nil)
	return mm.conversationRepo.AddMessage(ctx, sessionID, assistantMsg)
}

// trimTail returns a copy of the most recent maxTurns messages.
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
