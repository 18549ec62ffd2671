package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/vouchnet/internal/apperror"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/repository"
)

var _ repository.ProjectRepository = (*DB)(nil)

const projectColumns = `id, developer_id, title, description, technologies, live_platform_url,
	repository_url, github_stars, github_forks, is_verified, created_at, updated_at`

// CreateProject inserts a portfolio entry.
//
// TECHNOLOGIES COLUMN:
// SQLite has no array type, so the technology list is stored as a JSON array
// in a TEXT column. The project list is always read whole, so nothing ever
// has to query inside it.
func (db *DB) CreateProject(ctx context.Context, p *model.Project) error {
	ts := now()
	p.ID = xid.New().String()
	p.CreatedAt = ts
	p.UpdatedAt = ts
	if p.Technologies == nil {
		p.Technologies = []string{}
	}

	techs, err := encodeJSON(p.Technologies)
	if err != nil {
		return fmt.Errorf("sqlite: encoding technologies: %w", err)
	}

	_, err = db.q.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.DeveloperID, p.Title, p.Description, techs, p.LivePlatformURL,
		p.RepositoryURL, p.GitHubStars, p.GitHubForks, p.IsVerified, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating project: %w", err)
	}
	return nil
}

func (db *DB) GetProjectByID(ctx context.Context, id string) (*model.Project, error) {
	row := db.q.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("project", id)
		}
		return nil, fmt.Errorf("sqlite: getting project %s: %w", id, err)
	}
	return p, nil
}

// ListProjectsByDeveloper returns every project of a developer, newest first.
// Not paginated: the reputation engine needs the full set.
func (db *DB) ListProjectsByDeveloper(ctx context.Context, developerID string) ([]model.Project, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT `+projectColumns+`
		 FROM projects
		 WHERE developer_id = ?
		 ORDER BY created_at DESC, id DESC`,
		developerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing projects of %s: %w", developerID, err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning project row: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating projects: %w", err)
	}
	return projects, nil
}

// UpdateProject overwrites the mutable fields and bumps updated_at, which the
// reputation engine reads to decide whether a project is still active.
func (db *DB) UpdateProject(ctx context.Context, p *model.Project) error {
	if p.Technologies == nil {
		p.Technologies = []string{}
	}
	techs, err := encodeJSON(p.Technologies)
	if err != nil {
		return fmt.Errorf("sqlite: encoding technologies: %w", err)
	}

	p.UpdatedAt = now()
	result, err := db.q.ExecContext(ctx,
		`UPDATE projects
		 SET title = ?, description = ?, technologies = ?, live_platform_url = ?,
		     repository_url = ?, github_stars = ?, github_forks = ?, is_verified = ?,
		     updated_at = ?
		 WHERE id = ?`,
		p.Title, p.Description, techs, p.LivePlatformURL,
		p.RepositoryURL, p.GitHubStars, p.GitHubForks, p.IsVerified,
		p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating project %s: %w", p.ID, err)
	}
	return requireAffected(result, "project", p.ID)
}

func (db *DB) DeleteProject(ctx context.Context, id string) error {
	result, err := db.q.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting project %s: %w", id, err)
	}
	return requireAffected(result, "project", id)
}

// CountVerifiedProjects counts the projects that passed verification.
func (db *DB) CountVerifiedProjects(ctx context.Context, developerID string) (int, error) {
	var n int
	err := db.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE developer_id = ? AND is_verified = 1`,
		developerID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting verified projects of %s: %w", developerID, err)
	}
	return n, nil
}

func scanProject(s scanner) (*model.Project, error) {
	var (
		p     model.Project
		techs string
	)
	err := s.Scan(
		&p.ID, &p.DeveloperID, &p.Title, &p.Description, &techs, &p.LivePlatformURL,
		&p.RepositoryURL, &p.GitHubStars, &p.GitHubForks, &p.IsVerified, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Technologies, err = decodeStrings(techs); err != nil {
		return nil, fmt.Errorf("decoding technologies: %w", err)
	}
	return &p, nil
}
