package sqlite

import (
	"context"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/repository"
)

var _ repository.ActivityRepository = (*DB)(nil)

func (db *DB) CreateHackathonParticipation(ctx context.Context, h *model.HackathonParticipation) error {
	h.ID = xid.New().String()
	h.CreatedAt = now()

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO hackathon_participations
		 (id, developer_id, name, placement, prize_amount, is_verified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.DeveloperID, h.Name, h.Placement, h.PrizeAmount, h.IsVerified, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating hackathon participation: %w", err)
	}
	return nil
}

// ListVerifiedHackathons returns only verified entries; unverified ones never
// count toward reputation.
func (db *DB) ListVerifiedHackathons(ctx context.Context, developerID string) ([]model.HackathonParticipation, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT id, developer_id, name, placement, prize_amount, is_verified, created_at
		 FROM hackathon_participations
		 WHERE developer_id = ? AND is_verified = 1
		 ORDER BY created_at DESC`,
		developerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing hackathons of %s: %w", developerID, err)
	}
	defer rows.Close()

	out := []model.HackathonParticipation{}
	for rows.Next() {
		var h model.HackathonParticipation
		if err := rows.Scan(&h.ID, &h.DeveloperID, &h.Name, &h.Placement, &h.PrizeAmount, &h.IsVerified, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning hackathon row: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating hackathons: %w", err)
	}
	return out, nil
}

func (db *DB) CreateGrant(ctx context.Context, g *model.GrantRecipient) error {
	g.ID = xid.New().String()
	g.CreatedAt = now()

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO grant_recipients (id, developer_id, program, amount, is_verified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.DeveloperID, g.Program, g.Amount, g.IsVerified, g.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating grant: %w", err)
	}
	return nil
}

func (db *DB) ListVerifiedGrants(ctx context.Context, developerID string) ([]model.GrantRecipient, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT id, developer_id, program, amount, is_verified, created_at
		 FROM grant_recipients
		 WHERE developer_id = ? AND is_verified = 1
		 ORDER BY created_at DESC`,
		developerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing grants of %s: %w", developerID, err)
	}
	defer rows.Close()

	out := []model.GrantRecipient{}
	for rows.Next() {
		var g model.GrantRecipient
		if err := rows.Scan(&g.ID, &g.DeveloperID, &g.Program, &g.Amount, &g.IsVerified, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning grant row: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating grants: %w", err)
	}
	return out, nil
}

func (db *DB) CreateContribution(ctx context.Context, c *model.OpenSourceContribution) error {
	c.ID = xid.New().String()
	c.CreatedAt = now()

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO open_source_contributions (id, developer_id, repository_url, description, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.DeveloperID, c.RepositoryURL, c.Description, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating contribution: %w", err)
	}
	return nil
}

func (db *DB) ListContributions(ctx context.Context, developerID string) ([]model.OpenSourceContribution, error) {
	rows, err := db.q.QueryContext(ctx,
		`SELECT id, developer_id, repository_url, description, created_at
		 FROM open_source_contributions
		 WHERE developer_id = ?
		 ORDER BY created_at DESC`,
		developerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing contributions of %s: %w", developerID, err)
	}
	defer rows.Close()

	out := []model.OpenSourceContribution{}
	for rows.Next() {
		var c model.OpenSourceContribution
		if err := rows.Scan(&c.ID, &c.DeveloperID, &c.RepositoryURL, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning contribution row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating contributions: %w", err)
	}
	return out, nil
}
