package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/vouchnet/internal/apperror"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/repository"
	"github.com/sakif/vouchnet/internal/tier"
)

func seedDeveloper(t *testing.T, s *Store, userID string) *model.Developer {
	t.Helper()
	dev := &model.Developer{UserID: userID}
	require.NoError(t, s.CreateDeveloper(context.Background(), dev))
	return dev
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	dev := seedDeveloper(t, s, "u1")

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		require.NoError(t, tx.CreateReputationScore(ctx, &model.ReputationScore{DeveloperID: dev.ID, TotalScore: 80, Tier: tier.Tier1}))
		require.NoError(t, tx.UpdateDeveloperReputation(ctx, dev.ID, 80, tier.Tier1))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetLatestReputationScore(ctx, dev.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	got, err := s.GetDeveloperByID(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, tier.Tier4, got.Tier)
}

func TestWithinTx_RollsBackOnPanic(t *testing.T) {
	s := New()
	ctx := context.Background()
	dev := seedDeveloper(t, s, "u1")

	assert.Panics(t, func() {
		_ = s.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
			_ = tx.UpdateDeveloperReputation(ctx, dev.ID, 99, tier.Tier1)
			panic("kaboom")
		})
	})

	got, _ := s.GetDeveloperByID(ctx, dev.ID)
	assert.Equal(t, 0.0, got.ReputationScore)

	// The transaction lock must have been released.
	assert.NoError(t, s.WithinTx(ctx, func(context.Context, repository.Store) error { return nil }))
}

func TestWithinTx_RollbackKeepsWritesMadeOutside(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedDeveloper(t, s, "a")
	b := seedDeveloper(t, s, "b")

	outside := make(chan error, 1)
	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		require.NoError(t, tx.UpdateDeveloperReputation(ctx, a.ID, 70, tier.Tier2))
		go func() {
			outside <- s.CreateVouch(ctx, &model.Vouch{VoucherID: a.ID, VouchedUserID: b.ID, Weight: 3})
		}()
		time.Sleep(20 * time.Millisecond)
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, <-outside)

	received, err := s.ListActiveVouchesReceived(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, received, 1)

	got, err := s.GetDeveloperByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.ReputationScore)
}

func TestCreateVouch_ActivePairConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedDeveloper(t, s, "a")
	b := seedDeveloper(t, s, "b")

	v := &model.Vouch{VoucherID: a.ID, VouchedUserID: b.ID, Weight: 3}
	require.NoError(t, s.CreateVouch(ctx, v))
	assert.ErrorIs(t, s.CreateVouch(ctx, &model.Vouch{VoucherID: a.ID, VouchedUserID: b.ID}), apperror.ErrConflict)

	require.NoError(t, s.RevokeVouch(ctx, v.ID, time.Now(), "reason"))
	assert.ErrorIs(t, s.RevokeVouch(ctx, v.ID, time.Now(), "again"), apperror.ErrNotFound)
	assert.NoError(t, s.CreateVouch(ctx, &model.Vouch{VoucherID: a.ID, VouchedUserID: b.ID}))
}

func TestCountActiveVouchesGivenSince(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedDeveloper(t, s, "a")

	feb := time.Date(2025, 2, 28, 23, 59, 0, 0, time.UTC)
	mar := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{feb, mar, mar.Add(time.Hour)} {
		target := seedDeveloper(t, s, string(rune('x'+i)))
		require.NoError(t, s.CreateVouch(ctx, &model.Vouch{VoucherID: a.ID, VouchedUserID: target.ID, CreatedAt: at}))
	}

	n, err := s.CountActiveVouchesGivenSince(ctx, a.ID, mar)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestListReputationHistory_NewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 4 {
		require.NoError(t, s.CreateReputationHistory(ctx, &model.ReputationHistory{
			DeveloperID: "d1", Score: float64(i), Date: base.AddDate(0, 0, i),
		}))
	}

	got, err := s.ListReputationHistory(ctx, "d1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3.0, got[0].Score)
	assert.Equal(t, 2.0, got[1].Score)
}
