package store

import (
	"context"
	"net/http"

	errx "github.com/JoLiu-ai/agentic-chat/internal/core/error"
)

// NewMessage carries the fields for a message insert. ParentID is nil for
// user messages (tree roots) and set for assistant replies.
type NewMessage struct {
	SessionID string
	Role      string
	Content   string
	AgentType *string
	Model     *string
	ParentID  *int64
}

// CreateMessage inserts one tree node. The sibling index is computed inside
// the insert as max+1 among messages sharing the same parent, so regenerated
// answers order themselves without a separate round trip.
func (s *Store) CreateMessage(ctx context.Context, m NewMessage) (*Message, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO messages (session_id, role, content, agent_type, model, parent_id, sibling_index)
		VALUES ($1, $2, $3, $4, $5, $6, (
			SELECT COALESCE(MAX(sibling_index), -1) + 1
			FROM messages
			WHERE session_id = $1 AND parent_id IS NOT DISTINCT FROM $6
		))
		RETURNING message_id, session_id, role, content, agent_type, model, parent_id, sibling_index, created_at`,
		m.SessionID, m.Role, m.Content, m.AgentType, m.Model, m.ParentID)

	return scanMessage(row)
}

// GetMessage fetches one message by id.
func (s *Store) GetMessage(ctx context.Context, messageID int64) (*Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT message_id, session_id, role, content, agent_type, model, parent_id, sibling_index, created_at
		FROM messages WHERE message_id = $1`, messageID)
	return scanMessage(row)
}

// ListMessages returns a session's messages in creation order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]*Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT message_id, session_id, role, content, agent_type, model, parent_id, sibling_index, created_at
		FROM messages WHERE session_id = $1
		ORDER BY created_at, message_id`, sessionID)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// ListChildren returns the answer versions under one parent, sibling order.
func (s *Store) ListChildren(ctx context.Context, parentID int64) ([]*Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT message_id, session_id, role, content, agent_type, model, parent_id, sibling_index, created_at
		FROM messages WHERE parent_id = $1
		ORDER BY sibling_index`, parentID)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// FindRootByContent locates a session's user message (tree root) by exact
// content, newest first. Used to group regenerated answer versions.
func (s *Store) FindRootByContent(ctx context.Context, sessionID, content string) (*Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT message_id, session_id, role, content, agent_type, model, parent_id, sibling_index, created_at
		FROM messages
		WHERE session_id = $1 AND role = $2 AND parent_id IS NULL AND content = $3
		ORDER BY created_at DESC, message_id DESC
		LIMIT 1`, sessionID, RoleUser, content)
	return scanMessage(row)
}

// CountMessages returns the number of messages in a session.
func (s *Store) CountMessages(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = $1`, sessionID).Scan(&n)
	if err != nil {
		return 0, errx.WrapPostgres(err)
	}
	return n, nil
}

// UpdateMessageContent replaces a message's content, e.g. when a user edits
// their question before regenerating.
func (s *Store) UpdateMessageContent(ctx context.Context, messageID int64, content string) (*Message, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE messages SET content = $2 WHERE message_id = $1
		RETURNING message_id, session_id, role, content, agent_type, model, parent_id, sibling_index, created_at`,
		messageID, content)
	return scanMessage(row)
}

// DeleteMessage removes one message; child answers cascade with it.
func (s *Store) DeleteMessage(ctx context.Context, messageID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE message_id = $1`, messageID)
	if err != nil {
		return errx.WrapPostgres(err)
	}
	if tag.RowsAffected() == 0 {
		return errx.New(nil, http.StatusNotFound, errx.NotFoundMessage)
	}
	return nil
}

// DeleteMessagesAfter removes a message and everything created after it in
// the same session, truncating the conversation at that point.
func (s *Store) DeleteMessagesAfter(ctx context.Context, messageID int64) (int64, error) {
	msg, err := s.GetMessage(ctx, messageID)
	if err != nil {
		return 0, err
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM messages
		WHERE session_id = $1 AND (created_at > $2 OR (created_at = $2 AND message_id >= $3))`,
		msg.SessionID, msg.CreatedAt, msg.MessageID)
	if err != nil {
		return 0, errx.WrapPostgres(err)
	}
	return tag.RowsAffected(), nil
}

// CreateFeedback records a thumbs up/down on an assistant message.
func (s *Store) CreateFeedback(ctx context.Context, messageID int64, feedbackType string) (*Feedback, error) {
	if feedbackType != FeedbackThumbsUp && feedbackType != FeedbackThumbsDown {
		return nil, errx.New(nil, http.StatusBadRequest, "invalid feedback type")
	}

	var fb Feedback
	err := s.pool.QueryRow(ctx, `
		INSERT INTO message_feedback (message_id, feedback_type)
		VALUES ($1, $2)
		RETURNING id, message_id, feedback_type, created_at`,
		messageID, feedbackType).
		Scan(&fb.ID, &fb.MessageID, &fb.FeedbackType, &fb.CreatedAt)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return &fb, nil
}

// ListFeedback returns the feedback rows for one message.
func (s *Store) ListFeedback(ctx context.Context, messageID int64) ([]*Feedback, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, message_id, feedback_type, created_at
		FROM message_feedback WHERE message_id = $1
		ORDER BY created_at`, messageID)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	out := make([]*Feedback, 0)
	for rows.Next() {
		var fb Feedback
		if err := rows.Scan(&fb.ID, &fb.MessageID, &fb.FeedbackType, &fb.CreatedAt); err != nil {
			return nil, errx.WrapPostgres(err)
		}
		out = append(out, &fb)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return out, nil
}

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	err := row.Scan(&m.MessageID, &m.SessionID, &m.Role, &m.Content,
		&m.AgentType, &m.Model, &m.ParentID, &m.SiblingIndex, &m.CreatedAt)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return &m, nil
}

type messageRows interface {
	rowScanner
	Next() bool
	Err() error
}

func collectMessages(rows messageRows) ([]*Message, error) {
	out := make([]*Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return out, nil
}
