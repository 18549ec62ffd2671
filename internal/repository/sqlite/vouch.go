package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/vouchnet/internal/apperror"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/repository"
	"github.com/sakif/vouchnet/internal/tier"
)

var _ repository.VouchRepository = (*DB)(nil)

const vouchColumns = `id, voucher_id, vouched_user_id, voucher_tier, vouched_user_tier,
	skills_endorsed, message, weight, is_active, created_at, revoked_at, revoke_reason`

// CreateVouch inserts an active vouch.
//
// DUPLICATE PROTECTION:
// The service checks for an existing active vouch before inserting, but two
// concurrent requests can both pass that check. The partial unique index
// uq_vouches_active_pair is the backstop: the second INSERT fails with a
// UNIQUE violation, which is reported as apperror.ErrConflict.
func (db *DB) CreateVouch(ctx context.Context, v *model.Vouch) error {
	if v.ID == "" {
		v.ID = xid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now()
	}
	v.CreatedAt = v.CreatedAt.UTC()
	v.IsActive = true
	if v.SkillsEndorsed == nil {
		v.SkillsEndorsed = []string{}
	}

	skills, err := encodeJSON(v.SkillsEndorsed)
	if err != nil {
		return fmt.Errorf("sqlite: encoding skills: %w", err)
	}

	_, err = db.q.ExecContext(ctx,
		`INSERT INTO vouches (`+vouchColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, '')`,
		v.ID, v.VoucherID, v.VouchedUserID, string(v.VoucherTier), string(v.VouchedUserTier),
		skills, v.Message, v.Weight, v.IsActive, v.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("vouch", v.VoucherID+"->"+v.VouchedUserID)
		}
		return fmt.Errorf("sqlite: creating vouch: %w", err)
	}
	return nil
}

func (db *DB) GetVouchByID(ctx context.Context, id string) (*model.Vouch, error) {
	row := db.q.QueryRowContext(ctx, `SELECT `+vouchColumns+` FROM vouches WHERE id = ?`, id)
	v, err := scanVouch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("vouch", id)
		}
		return nil, fmt.Errorf("sqlite: getting vouch %s: %w", id, err)
	}
	return v, nil
}

func (db *DB) HasActiveVouch(ctx context.Context, voucherID, vouchedUserID string) (bool, error) {
	var exists bool
	err := db.q.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM vouches
		   WHERE voucher_id = ? AND vouched_user_id = ? AND is_active = 1
		 )`,
		voucherID, vouchedUserID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking active vouch %s->%s: %w", voucherID, vouchedUserID, err)
	}
	return exists, nil
}

// ListActiveVouchesReceived returns active vouches for developerID, newest first.
func (db *DB) ListActiveVouchesReceived(ctx context.Context, developerID string) ([]model.Vouch, error) {
	return db.listVouches(ctx,
		`SELECT `+vouchColumns+` FROM vouches
		 WHERE vouched_user_id = ? AND is_active = 1
		 ORDER BY created_at DESC, id DESC`,
		developerID,
	)
}

// ListActiveVouchesGiven returns active vouches by developerID, newest first.
func (db *DB) ListActiveVouchesGiven(ctx context.Context, developerID string) ([]model.Vouch, error) {
	return db.listVouches(ctx,
		`SELECT `+vouchColumns+` FROM vouches
		 WHERE voucher_id = ? AND is_active = 1
		 ORDER BY created_at DESC, id DESC`,
		developerID,
	)
}

// CountActiveVouchesGivenSince counts active vouches by voucherID created at
// or after since. Revoked vouches do not count.
func (db *DB) CountActiveVouchesGivenSince(ctx context.Context, voucherID string, since time.Time) (int, error) {
	var n int
	err := db.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vouches
		 WHERE voucher_id = ? AND is_active = 1 AND created_at >= ?`,
		voucherID, since.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting vouches given by %s: %w", voucherID, err)
	}
	return n, nil
}

// RevokeVouch soft-deletes an active vouch. Returns apperror.ErrNotFound if
// no active vouch with that ID exists.
func (db *DB) RevokeVouch(ctx context.Context, id string, revokedAt time.Time, reason string) error {
	result, err := db.q.ExecContext(ctx,
		`UPDATE vouches SET is_active = 0, revoked_at = ?, revoke_reason = ?
		 WHERE id = ? AND is_active = 1`,
		revokedAt.UTC(), reason, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: revoking vouch %s: %w", id, err)
	}
	return requireAffected(result, "active vouch", id)
}

func (db *DB) listVouches(ctx context.Context, query string, args ...any) ([]model.Vouch, error) {
	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing vouches: %w", err)
	}
	defer rows.Close()

	vouches := []model.Vouch{}
	for rows.Next() {
		v, err := scanVouch(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning vouch row: %w", err)
		}
		vouches = append(vouches, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating vouches: %w", err)
	}
	return vouches, nil
}

func scanVouch(s scanner) (*model.Vouch, error) {
	var (
		v           model.Vouch
		voucherTier string
		vouchedTier string
		skills      string
		revokedAt   sql.NullTime
	)
	err := s.Scan(
		&v.ID, &v.VoucherID, &v.VouchedUserID, &voucherTier, &vouchedTier,
		&skills, &v.Message, &v.Weight, &v.IsActive, &v.CreatedAt, &revokedAt, &v.RevokeReason,
	)
	if err != nil {
		return nil, err
	}
	v.VoucherTier = tier.Tier(voucherTier)
	v.VouchedUserTier = tier.Tier(vouchedTier)
	if revokedAt.Valid {
		t := revokedAt.Time
		v.RevokedAt = &t
	}
	if v.SkillsEndorsed, err = decodeStrings(skills); err != nil {
		return nil, fmt.Errorf("decoding skills: %w", err)
	}
	return &v, nil
}
