// internal/store/projects.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"projtrack/internal/model"
)

// CreateProjectParams holds the caller-supplied fields of a new project.
type CreateProjectParams struct {
	Name        string
	Path        string
	Description string
	Priority    string
	Tags        []string
}

// CreateProject inserts a new project and its tags.
func (s *Store) CreateProject(ctx context.Context, arg CreateProjectParams) (*model.Project, error) {
	if arg.Priority == "" {
		arg.Priority = "medium"
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO projects (name, path, description, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		arg.Name, nullString(arg.Path), nullString(arg.Description), arg.Priority, now(), now())
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	for _, tag := range arg.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tags (project_id, tag) VALUES (?, ?)`, id, tag); err != nil {
			return nil, fmt.Errorf("failed to create tag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetProjectByID(ctx, id)
}

// GetProjectByID fetches one project with its tags. Returns ErrNotFound when
// no project has this id.
func (s *Store) GetProjectByID(ctx context.Context, id int64) (*model.Project, error) {
	var p model.Project
	err := s.db.GetContext(ctx, &p, `
		SELECT id, name, path, description, status, priority, language,
		       created_at, updated_at, last_activity
		FROM projects WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	if p.Tags, err = s.projectTags(ctx, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProjectByName fetches one project by its unique name.
func (s *Store) GetProjectByName(ctx context.Context, name string) (*model.Project, error) {
	var p model.Project
	err := s.db.GetContext(ctx, &p, `
		SELECT id, name, path, description, status, priority, language,
		       created_at, updated_at, last_activity
		FROM projects WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	if p.Tags, err = s.projectTags(ctx, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProjectByPath fetches the project whose path matches exactly.
func (s *Store) GetProjectByPath(ctx context.Context, path string) (*model.Project, error) {
	var p model.Project
	err := s.db.GetContext(ctx, &p, `
		SELECT id, name, path, description, status, priority, language,
		       created_at, updated_at, last_activity
		FROM projects WHERE path = ?`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	if p.Tags, err = s.projectTags(ctx, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjects returns all projects, optionally filtered by status, ordered by
// name. Tags are loaded per project.
func (s *Store) ListProjects(ctx context.Context, status string) ([]model.Project, error) {
	query := `
		SELECT id, name, path, description, status, priority, language,
		       created_at, updated_at, last_activity
		FROM projects`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY name`

	var projects []model.Project
	if err := s.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	for i := range projects {
		tags, err := s.projectTags(ctx, projects[i].ID)
		if err != nil {
			return nil, err
		}
		projects[i].Tags = tags
	}
	return projects, nil
}

// DeleteProject removes a project; tags, logs, sync metadata and queue items
// cascade with it.
func (s *Store) DeleteProject(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProjectFromRemote overwrites description and language from fetched
// remote metadata and replaces the tag set with the remote topics entirely.
func (s *Store) UpdateProjectFromRemote(ctx context.Context, projectID int64, description, language string, topics []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE projects SET description = ?, language = ?, updated_at = ?
		WHERE id = ?`,
		nullString(description), nullString(language), now(), projectID); err != nil {
		return fmt.Errorf("failed to update project metadata: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	for _, topic := range topics {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tags (project_id, tag) VALUES (?, ?)`, projectID, topic); err != nil {
			return fmt.Errorf("failed to insert tag: %w", err)
		}
	}

	return tx.Commit()
}

// AddLogEntry appends a line to a project's activity log.
func (s *Store) AddLogEntry(ctx context.Context, projectID int64, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (project_id, message, timestamp)
		VALUES (?, ?, ?)`, projectID, message, now())
	if err != nil {
		return fmt.Errorf("failed to add log entry: %w", err)
	}
	return nil
}

func (s *Store) projectTags(ctx context.Context, projectID int64) ([]string, error) {
	var tags []string
	err := s.db.SelectContext(ctx, &tags,
		`SELECT tag FROM tags WHERE project_id = ? ORDER BY tag`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	return tags, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
