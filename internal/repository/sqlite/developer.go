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
	"github.com/sakif/vouchnet/internal/tier"
)

var _ repository.DeveloperRepository = (*DB)(nil)

const developerColumns = `id, user_id, display_name, bio, location, github_url, contact,
	social_links, tier, reputation_score, created_at, updated_at`

// CreateDeveloper inserts a new profile. New profiles start in TIER_4 with a
// zero score until the reputation engine runs.
func (db *DB) CreateDeveloper(ctx context.Context, dev *model.Developer) error {
	ts := now()
	dev.ID = xid.New().String()
	dev.CreatedAt = ts
	dev.UpdatedAt = ts
	if dev.Tier == "" {
		dev.Tier = tier.Tier4
	}
	if dev.SocialLinks == nil {
		dev.SocialLinks = map[string]string{}
	}

	links, err := encodeJSON(dev.SocialLinks)
	if err != nil {
		return fmt.Errorf("sqlite: encoding social links: %w", err)
	}

	_, err = db.q.ExecContext(ctx,
		`INSERT INTO developers (`+developerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dev.ID, dev.UserID, dev.DisplayName, dev.Bio, dev.Location, dev.GitHubURL, dev.Contact,
		links, string(dev.Tier), dev.ReputationScore, dev.CreatedAt, dev.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("developer", dev.UserID)
		}
		return fmt.Errorf("sqlite: inserting developer for user %s: %w", dev.UserID, err)
	}
	return nil
}

func (db *DB) GetDeveloperByID(ctx context.Context, id string) (*model.Developer, error) {
	row := db.q.QueryRowContext(ctx,
		`SELECT `+developerColumns+` FROM developers WHERE id = ?`, id)
	dev, err := scanDeveloper(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("developer", id)
		}
		return nil, fmt.Errorf("sqlite: getting developer %s: %w", id, err)
	}
	return dev, nil
}

func (db *DB) GetDeveloperByUserID(ctx context.Context, userID string) (*model.Developer, error) {
	row := db.q.QueryRowContext(ctx,
		`SELECT `+developerColumns+` FROM developers WHERE user_id = ?`, userID)
	dev, err := scanDeveloper(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("developer for user", userID)
		}
		return nil, fmt.Errorf("sqlite: getting developer for user %s: %w", userID, err)
	}
	return dev, nil
}

// ListDevelopers returns profiles ordered by score, best first.
func (db *DB) ListDevelopers(ctx context.Context, filter model.DeveloperFilter) ([]model.Developer, error) {
	opts := repository.ListOptions{Limit: filter.Limit, Offset: filter.Offset}.Normalize()

	query := `SELECT ` + developerColumns + ` FROM developers`
	args := []any{}
	if filter.Tier != "" {
		query += ` WHERE tier = ?`
		args = append(args, string(filter.Tier))
	}
	query += ` ORDER BY reputation_score DESC, created_at ASC, id ASC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing developers: %w", err)
	}
	defer rows.Close()

	devs := []model.Developer{}
	for rows.Next() {
		dev, err := scanDeveloper(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning developer row: %w", err)
		}
		devs = append(devs, *dev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating developer rows: %w", err)
	}
	return devs, nil
}

// ListDeveloperIDs returns every developer ID, oldest profile first.
func (db *DB) ListDeveloperIDs(ctx context.Context) ([]string, error) {
	rows, err := db.q.QueryContext(ctx, `SELECT id FROM developers ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing developer ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning developer id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating developer ids: %w", err)
	}
	return ids, nil
}

// UpdateDeveloperProfile writes the user-editable fields. Tier and score are
// left alone; only UpdateDeveloperReputation touches them.
func (db *DB) UpdateDeveloperProfile(ctx context.Context, dev *model.Developer) error {
	if dev.SocialLinks == nil {
		dev.SocialLinks = map[string]string{}
	}
	links, err := encodeJSON(dev.SocialLinks)
	if err != nil {
		return fmt.Errorf("sqlite: encoding social links: %w", err)
	}

	dev.UpdatedAt = now()
	result, err := db.q.ExecContext(ctx,
		`UPDATE developers
		 SET display_name = ?, bio = ?, location = ?, github_url = ?, contact = ?,
		     social_links = ?, updated_at = ?
		 WHERE id = ?`,
		dev.DisplayName, dev.Bio, dev.Location, dev.GitHubURL, dev.Contact,
		links, dev.UpdatedAt, dev.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating developer %s: %w", dev.ID, err)
	}
	return requireAffected(result, "developer", dev.ID)
}

// UpdateDeveloperReputation refreshes the cached score and tier. updated_at is
// not bumped: it tracks profile activity, which feeds the recency bonus.
func (db *DB) UpdateDeveloperReputation(ctx context.Context, id string, score float64, t tier.Tier) error {
	result, err := db.q.ExecContext(ctx,
		`UPDATE developers SET reputation_score = ?, tier = ? WHERE id = ?`,
		score, string(t), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating reputation of developer %s: %w", id, err)
	}
	return requireAffected(result, "developer", id)
}

func scanDeveloper(s scanner) (*model.Developer, error) {
	var (
		dev   model.Developer
		links string
		t     string
	)
	err := s.Scan(
		&dev.ID, &dev.UserID, &dev.DisplayName, &dev.Bio, &dev.Location, &dev.GitHubURL, &dev.Contact,
		&links, &t, &dev.ReputationScore, &dev.CreatedAt, &dev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	dev.Tier = tier.Tier(t)
	if dev.SocialLinks, err = decodeStringMap(links); err != nil {
		return nil, fmt.Errorf("decoding social links: %w", err)
	}
	return &dev, nil
}

// requireAffected turns a zero-row UPDATE/DELETE into apperror.ErrNotFound.
func requireAffected(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
