package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	errx "github.com/JoLiu-ai/agentic-chat/internal/core/error"
)

const autoTitleMaxLen = 50

// CreateSession inserts a session. The caller may supply the session id
// (client-generated ids are accepted); an empty id gets a fresh UUID.
func (s *Store) CreateSession(ctx context.Context, sessionID, userID, title string, projectID *uuid.UUID) (*Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if strings.TrimSpace(title) == "" {
		title = defaultSessionTitle
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (session_id, user_id, title, project_id)
		VALUES ($1, $2, $3, $4)
		RETURNING session_id, user_id, title, project_id, is_starred, tags, created_at, updated_at`,
		sessionID, userID, title, projectID)

	return scanSession(row)
}

// EnsureSession returns the session, creating it when absent. Used by the
// chat endpoint so a first turn with a client-generated id just works.
func (s *Store) EnsureSession(ctx context.Context, sessionID, userID string) (*Session, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err == nil {
		return sess, nil
	}
	if errx.StatusOf(err) != http.StatusNotFound {
		return nil, err
	}
	return s.CreateSession(ctx, sessionID, userID, "", nil)
}

// GetSession fetches one session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, user_id, title, project_id, is_starred, tags, created_at, updated_at
		FROM sessions WHERE session_id = $1`, sessionID)
	return scanSession(row)
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	UserID      string
	ProjectID   *uuid.UUID
	StarredOnly bool
	Limit       int
}

// ListSessions returns sessions for a user, most recently updated first.
func (s *Store) ListSessions(ctx context.Context, f SessionFilter) ([]*Session, error) {
	query := `
		SELECT session_id, user_id, title, project_id, is_starred, tags, created_at, updated_at
		FROM sessions WHERE user_id = $1`
	args := []any{f.UserID}

	if f.ProjectID != nil {
		args = append(args, *f.ProjectID)
		query += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	if f.StarredOnly {
		query += " AND is_starred = TRUE"
	}
	query += " ORDER BY updated_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	sessions := make([]*Session, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return sessions, nil
}

// SessionUpdate carries optional field updates; nil fields are left untouched.
type SessionUpdate struct {
	Title     *string
	ProjectID *uuid.UUID
	IsStarred *bool
	Tags      *[]string
}

// UpdateSession applies the non-nil fields and bumps updated_at.
func (s *Store) UpdateSession(ctx context.Context, sessionID string, upd SessionUpdate) (*Session, error) {
	sets := []string{"updated_at = now()"}
	args := []any{sessionID}

	if upd.Title != nil {
		args = append(args, *upd.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if upd.ProjectID != nil {
		args = append(args, *upd.ProjectID)
		sets = append(sets, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if upd.IsStarred != nil {
		args = append(args, *upd.IsStarred)
		sets = append(sets, fmt.Sprintf("is_starred = $%d", len(args)))
	}
	if upd.Tags != nil {
		tagsJSON, err := json.Marshal(*upd.Tags)
		if err != nil {
			return nil, errx.New(err, http.StatusInternalServerError, errx.SystemErrorMessage)
		}
		args = append(args, tagsJSON)
		sets = append(sets, fmt.Sprintf("tags = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		UPDATE sessions SET %s WHERE session_id = $1
		RETURNING session_id, user_id, title, project_id, is_starred, tags, created_at, updated_at`,
		strings.Join(sets, ", "))

	row := s.pool.QueryRow(ctx, query, args...)
	return scanSession(row)
}

// TouchSession bumps updated_at so recent activity sorts the session up.
func (s *Store) TouchSession(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET updated_at = now() WHERE session_id = $1`, sessionID)
	if err != nil {
		return errx.WrapPostgres(err)
	}
	return nil
}

// AutoTitle sets the session title from its first user message, but only
// while the title is still the default.
func (s *Store) AutoTitle(ctx context.Context, sessionID, firstMessage string) error {
	title := strings.TrimSpace(firstMessage)
	if title == "" {
		return nil
	}
	if utf8.RuneCountInString(title) > autoTitleMaxLen {
		runes := []rune(title)
		title = string(runes[:autoTitleMaxLen-3]) + "..."
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET title = $2, updated_at = now()
		 WHERE session_id = $1 AND title = $3`,
		sessionID, title, defaultSessionTitle)
	if err != nil {
		return errx.WrapPostgres(err)
	}
	return nil
}

// DeleteSession removes a session and, via cascade, its message tree.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return errx.WrapPostgres(err)
	}
	if tag.RowsAffected() == 0 {
		return errx.New(nil, http.StatusNotFound, errx.NotFoundMessage)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var tagsJSON []byte
	err := row.Scan(&sess.SessionID, &sess.UserID, &sess.Title, &sess.ProjectID,
		&sess.IsStarred, &tagsJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &sess.Tags); err != nil {
			sess.Tags = nil
		}
	}
	if sess.Tags == nil {
		sess.Tags = []string{}
	}
	return &sess, nil
}
