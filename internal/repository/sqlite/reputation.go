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

var _ repository.ReputationRepository = (*DB)(nil)

// CreateReputationScore appends a score snapshot. Rows are never updated, so
// "the current score" is simply the newest calculated_at.
func (db *DB) CreateReputationScore(ctx context.Context, s *model.ReputationScore) error {
	if s.ID == "" {
		s.ID = xid.New().String()
	}
	if s.CalculatedAt.IsZero() {
		s.CalculatedAt = now()
	}
	s.CalculatedAt = s.CalculatedAt.UTC()

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO reputation_scores
		 (id, developer_id, total_score, tier, github_score, projects_score,
		  time_score, hackathons_score, community_score, calculated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.DeveloperID, s.TotalScore, string(s.Tier),
		s.SubScores.GitHub, s.SubScores.Projects, s.SubScores.TimeInvestment,
		s.SubScores.HackathonsGrants, s.SubScores.Community,
		s.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating reputation score for %s: %w", s.DeveloperID, err)
	}
	return nil
}

func (db *DB) GetLatestReputationScore(ctx context.Context, developerID string) (*model.ReputationScore, error) {
	var (
		s model.ReputationScore
		t string
	)
	err := db.q.QueryRowContext(ctx,
		`SELECT id, developer_id, total_score, tier, github_score, projects_score,
		        time_score, hackathons_score, community_score, calculated_at
		 FROM reputation_scores
		 WHERE developer_id = ?
		 ORDER BY calculated_at DESC, rowid DESC
		 LIMIT 1`,
		developerID,
	).Scan(
		&s.ID, &s.DeveloperID, &s.TotalScore, &t,
		&s.SubScores.GitHub, &s.SubScores.Projects, &s.SubScores.TimeInvestment,
		&s.SubScores.HackathonsGrants, &s.SubScores.Community,
		&s.CalculatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("reputation score for developer", developerID)
		}
		return nil, fmt.Errorf("sqlite: getting latest reputation of %s: %w", developerID, err)
	}
	s.Tier = tier.Tier(t)
	return &s, nil
}

func (db *DB) CreateReputationHistory(ctx context.Context, h *model.ReputationHistory) error {
	if h.ID == "" {
		h.ID = xid.New().String()
	}
	if h.Date.IsZero() {
		h.Date = now()
	}
	h.Date = h.Date.UTC()

	_, err := db.q.ExecContext(ctx,
		`INSERT INTO reputation_history (id, developer_id, score, tier, date)
		 VALUES (?, ?, ?, ?, ?)`,
		h.ID, h.DeveloperID, h.Score, string(h.Tier), h.Date,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating reputation history for %s: %w", h.DeveloperID, err)
	}
	return nil
}

// ListReputationHistory returns at most limit entries, newest first.
func (db *DB) ListReputationHistory(ctx context.Context, developerID string, limit int) ([]model.ReputationHistory, error) {
	if limit <= 0 {
		limit = repository.DefaultHistoryLimit
	}

	rows, err := db.q.QueryContext(ctx,
		`SELECT id, developer_id, score, tier, date
		 FROM reputation_history
		 WHERE developer_id = ?
		 ORDER BY date DESC, rowid DESC
		 LIMIT ?`,
		developerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reputation history of %s: %w", developerID, err)
	}
	defer rows.Close()

	history := make([]model.ReputationHistory, 0, limit)
	for rows.Next() {
		var (
			h model.ReputationHistory
			t string
		)
		if err := rows.Scan(&h.ID, &h.DeveloperID, &h.Score, &t, &h.Date); err != nil {
			return nil, fmt.Errorf("sqlite: scanning reputation history row: %w", err)
		}
		h.Tier = tier.Tier(t)
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating reputation history: %w", err)
	}
	return history, nil
}
