package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/vouchnet/internal/apperror"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/repository"
)

var _ repository.EligibilityRepository = (*DB)(nil)

// UpsertVouchEligibility stores the latest eligibility verdict, one row per
// developer.
func (db *DB) UpsertVouchEligibility(ctx context.Context, e *model.VouchEligibility) error {
	if e.LastCheckedAt.IsZero() {
		e.LastCheckedAt = now()
	}
	e.LastCheckedAt = e.LastCheckedAt.UTC()
	if e.ReasonsNotEligible == nil {
		e.ReasonsNotEligible = []string{}
	}

	reasons, err := encodeJSON(e.ReasonsNotEligible)
	if err != nil {
		return fmt.Errorf("sqlite: encoding eligibility reasons: %w", err)
	}

	_, err = db.q.ExecContext(ctx,
		`INSERT INTO vouch_eligibility (developer_id, is_eligible, reasons_not_eligible, last_checked_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(developer_id) DO UPDATE SET
		   is_eligible = excluded.is_eligible,
		   reasons_not_eligible = excluded.reasons_not_eligible,
		   last_checked_at = excluded.last_checked_at`,
		e.DeveloperID, e.IsEligible, reasons, e.LastCheckedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting eligibility of %s: %w", e.DeveloperID, err)
	}
	return nil
}

func (db *DB) GetVouchEligibility(ctx context.Context, developerID string) (*model.VouchEligibility, error) {
	var (
		e       model.VouchEligibility
		reasons string
	)
	err := db.q.QueryRowContext(ctx,
		`SELECT developer_id, is_eligible, reasons_not_eligible, last_checked_at
		 FROM vouch_eligibility WHERE developer_id = ?`,
		developerID,
	).Scan(&e.DeveloperID, &e.IsEligible, &reasons, &e.LastCheckedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("vouch eligibility", developerID)
		}
		return nil, fmt.Errorf("sqlite: getting eligibility of %s: %w", developerID, err)
	}
	if e.ReasonsNotEligible, err = decodeStrings(reasons); err != nil {
		return nil, fmt.Errorf("sqlite: decoding eligibility reasons: %w", err)
	}
	return &e, nil
}
