package store

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	errx "github.com/JoLiu-ai/agentic-chat/internal/core/error"
)

// DefaultProjects are the starter templates offered to new users.
var DefaultProjects = []Project{
	{Name: "Work", Description: "Work related conversations", Color: "#3b82f6", Icon: "briefcase"},
	{Name: "Learning", Description: "Study notes and explorations", Color: "#22c55e", Icon: "book"},
	{Name: "Ideas", Description: "Brainstorms and drafts", Color: "#f59e0b", Icon: "lightbulb"},
}

// CreateProject inserts a project for the user.
func (s *Store) CreateProject(ctx context.Context, userID, name, description, color, icon string) (*Project, error) {
	if name == "" {
		return nil, errx.New(nil, http.StatusBadRequest, "project name is required")
	}
	if color == "" {
		color = "#6366f1"
	}
	if icon == "" {
		icon = "folder"
	}

	var p Project
	err := s.pool.QueryRow(ctx, `
		INSERT INTO projects (project_id, user_id, name, description, color, icon)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING project_id, user_id, name, description, color, icon, created_at`,
		uuid.New(), userID, name, description, color, icon).
		Scan(&p.ProjectID, &p.UserID, &p.Name, &p.Description, &p.Color, &p.Icon, &p.CreatedAt)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return &p, nil
}

// GetProject fetches one project by id.
func (s *Store) GetProject(ctx context.Context, projectID uuid.UUID) (*Project, error) {
	var p Project
	err := s.pool.QueryRow(ctx, `
		SELECT project_id, user_id, name, description, color, icon, created_at
		FROM projects WHERE project_id = $1`, projectID).
		Scan(&p.ProjectID, &p.UserID, &p.Name, &p.Description, &p.Color, &p.Icon, &p.CreatedAt)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return &p, nil
}

// ListProjects returns a user's projects, oldest first.
func (s *Store) ListProjects(ctx context.Context, userID string) ([]*Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT project_id, user_id, name, description, color, icon, created_at
		FROM projects WHERE user_id = $1
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	out := make([]*Project, 0)
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ProjectID, &p.UserID, &p.Name, &p.Description, &p.Color, &p.Icon, &p.CreatedAt); err != nil {
			return nil, errx.WrapPostgres(err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return out, nil
}

// ProjectUpdate carries optional field updates; nil fields are untouched.
type ProjectUpdate struct {
	Name        *string
	Description *string
	Color       *string
	Icon        *string
}

// UpdateProject applies the non-nil fields.
func (s *Store) UpdateProject(ctx context.Context, projectID uuid.UUID, upd ProjectUpdate) (*Project, error) {
	var p Project
	err := s.pool.QueryRow(ctx, `
		UPDATE projects SET
			name        = COALESCE($2, name),
			description = COALESCE($3, description),
			color       = COALESCE($4, color),
			icon        = COALESCE($5, icon)
		WHERE project_id = $1
		RETURNING project_id, user_id, name, description, color, icon, created_at`,
		projectID, upd.Name, upd.Description, upd.Color, upd.Icon).
		Scan(&p.ProjectID, &p.UserID, &p.Name, &p.Description, &p.Color, &p.Icon, &p.CreatedAt)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return &p, nil
}

// DeleteProject removes a project; its sessions keep existing with a null
// project reference.
func (s *Store) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE project_id = $1`, projectID)
	if err != nil {
		return errx.WrapPostgres(err)
	}
	if tag.RowsAffected() == 0 {
		return errx.New(nil, http.StatusNotFound, errx.NotFoundMessage)
	}
	return nil
}
