// Package store persists chat state in PostgreSQL: projects, sessions, the
// message tree, feedback, and the router audit log.
package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Message roles stored in the message tree.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Feedback types accepted on assistant messages.
const (
	FeedbackThumbsUp   = "thumbs_up"
	FeedbackThumbsDown = "thumbs_down"
)

// session status / defaults
const defaultSessionTitle = "New Chat"

// Store executes queries against the chat schema. All methods are safe for
// concurrent use; the pool handles connection lifecycle.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps a pgx pool in a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Project is a user-defined grouping of sessions.
type Project struct {
	ProjectID   uuid.UUID `json:"project_id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	Icon        string    `json:"icon"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is one conversation thread.
type Session struct {
	SessionID string     `json:"session_id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	ProjectID *uuid.UUID `json:"project_id,omitempty"`
	IsStarred bool       `json:"is_starred"`
	Tags      []string   `json:"tags"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Message is one node of the conversation tree. User messages are roots
// (nil ParentID); assistant replies reference the user message they answer.
// Regenerated answers share a parent and are ordered by SiblingIndex.
type Message struct {
	MessageID    int64     `json:"message_id"`
	SessionID    string    `json:"session_id"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	AgentType    *string   `json:"agent_type,omitempty"`
	Model        *string   `json:"model,omitempty"`
	ParentID     *int64    `json:"parent_id,omitempty"`
	SiblingIndex int       `json:"sibling_index"`
	CreatedAt    time.Time `json:"created_at"`
}

// Feedback is a user rating attached to an assistant message.
type Feedback struct {
	ID           int64     `json:"id"`
	MessageID    int64     `json:"message_id"`
	FeedbackType string    `json:"feedback_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// RouteEntry is one row of the router audit log.
type RouteEntry struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	UserMessage string    `json:"user_message"`
	RoutedTo    string    `json:"routed_to"`
	Reasoning   string    `json:"reasoning"`
	CreatedAt   time.Time `json:"created_at"`
}

// RouteStats aggregates routing decisions per agent.
type RouteStats struct {
	Total    int64              `json:"total"`
	ByAgent  map[string]int64   `json:"by_agent"`
	Percents map[string]float64 `json:"percents"`
}
