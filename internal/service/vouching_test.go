package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/vouchnet/internal/apperror"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/repository/memory"
	"github.com/sakif/vouchnet/internal/tier"
)

// vouchFixture wires a VouchService to a fresh memory store with a pinned clock.
type vouchFixture struct {
	store *memory.Store
	svc   *VouchService
	now   time.Time
}

func newVouchFixture(t *testing.T, now time.Time) *vouchFixture {
	t.Helper()
	store := memory.New()
	svc := NewVouchService(store, testLogger())
	f := &vouchFixture{store: store, svc: svc, now: now}
	svc.SetClock(func() time.Time { return f.now })
	return f
}

// developer creates a developer in tier t. Eligible developers get a complete
// profile, a 60 day old account, two verified projects and a score of 40.
func (f *vouchFixture) developer(t *testing.T, tr tier.Tier, eligible bool) *model.Developer {
	t.Helper()
	ctx := context.Background()

	dev := model.Developer{DisplayName: "dev"}
	if eligible {
		dev.Bio = "smart contracts"
		dev.Location = "Berlin"
		dev.GitHubURL = "https://github.com/someone"
	}
	created := createDeveloper(t, f.store, dev)
	f.store.SetDeveloperTimes(created.ID, f.now.AddDate(0, 0, -60), f.now.AddDate(0, 0, -1))

	score := 40.0
	if !eligible {
		score = 5
	}
	require.NoError(t, f.store.UpdateDeveloperReputation(ctx, created.ID, score, tr))

	if eligible {
		for i := range 2 {
			require.NoError(t, f.store.CreateProject(ctx, &model.Project{
				DeveloperID: created.ID,
				Title:       fmt.Sprintf("verified %d", i),
				IsVerified:  true,
			}))
		}
	}

	got, err := f.store.GetDeveloperByID(ctx, created.ID)
	require.NoError(t, err)
	return got
}

func vouchFor(id string) CreateVouchInput {
	return CreateVouchInput{VouchedUserID: id, SkillsEndorsed: []string{"solidity"}}
}

// requireAppError asserts err wraps sentinel and returns the AppError.
func requireAppError(t *testing.T, err error, sentinel error) *apperror.AppError {
	t.Helper()
	require.ErrorIs(t, err, sentinel)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected *apperror.AppError, got %T", err)
	return appErr
}

var midMonth = time.Date(2026, 5, 14, 12, 0, 0, 0, time.UTC)

// =========================================================================
// ELIGIBILITY
// =========================================================================

func TestCheckVouchEligibility_Eligible(t *testing.T) {
	f := newVouchFixture(t, midMonth)
	dev := f.developer(t, tier.Tier3, true)

	got, err := f.svc.CheckVouchEligibility(context.Background(), dev.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEligible)
	assert.Empty(t, got.ReasonsNotEligible)

	cached, err := f.store.GetVouchEligibility(context.Background(), dev.ID)
	require.NoError(t, err)
	assert.True(t, cached.IsEligible)
}

func TestCheckVouchEligibility_LowScore(t *testing.T) {
	f := newVouchFixture(t, midMonth)
	dev := f.developer(t, tier.Tier4, true)
	require.NoError(t, f.store.UpdateDeveloperReputation(context.Background(), dev.ID, 5, tier.Tier4))

	got, err := f.svc.CheckVouchEligibility(context.Background(), dev.ID)
	require.NoError(t, err)

	assert.False(t, got.IsEligible)
	require.Len(t, got.ReasonsNotEligible, 1)
	assert.Contains(t, got.ReasonsNotEligible[0], "minimum reputation")
}

func TestCheckVouchEligibility_ReportsEveryFailedRule(t *testing.T) {
	f := newVouchFixture(t, midMonth)
	dev := f.developer(t, tier.Tier4, false)
	f.store.SetDeveloperTimes(dev.ID, f.now.AddDate(0, 0, -3), f.now)

	got, err := f.svc.CheckVouchEligibility(context.Background(), dev.ID)
	require.NoError(t, err)

	assert.False(t, got.IsEligible)
	require.Len(t, got.ReasonsNotEligible, 4)
	assert.Contains(t, got.ReasonsNotEligible[0], "minimum reputation")
	assert.Contains(t, got.ReasonsNotEligible[1], "days old")
	assert.Contains(t, got.ReasonsNotEligible[2], "verified projects")
	assert.Contains(t, got.ReasonsNotEligible[3], "bio, location, github")
}

func TestCheckVouchEligibility_UnknownDeveloper(t *testing.T) {
	f := newVouchFixture(t, midMonth)

	_, err := f.svc.CheckVouchEligibility(context.Background(), "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// CREATE VOUCH
// =========================================================================

func TestCreateVouch_Success(t *testing.T) {
	f := newVouchFixture(t, midMonth)
	voucher := f.developer(t, tier.Tier1, true)
	target := f.developer(t, tier.Tier3, true)

	got, err := f.svc.CreateVouch(context.Background(), voucher.ID, CreateVouchInput{
		VouchedUserID:  target.ID,
		SkillsEndorsed: []string{" Solidity ", "solidity", "Go", ""},
		Message:        "  shipped our bridge  ",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, got.ID)
	assert.True(t, got.IsActive)
	assert.Equal(t, 3.0, got.Weight)
	assert.Equal(t, tier.Tier1, got.VoucherTier)
	assert.Equal(t, tier.Tier3, got.VouchedUserTier)
	assert.Equal(t, []string{"Solidity", "Go"}, got.SkillsEndorsed)
	assert.Equal(t, "shipped our bridge", got.Message)
	assert.Equal(t, midMonth, got.CreatedAt)
}

func TestCreateVouch_WeightFollowsVoucherTier(t *testing.T) {
	f := newVouchFixture(t, midMonth)
	voucher := f.developer(t, tier.Tier2, true)
	target := f.developer(t, tier.Tier4, true)

	got, err := f.svc.CreateVouch(context.Background(), voucher.ID, vouchFor(target.ID))
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Weight)
}

func TestCreateVouch_Rejections(t *testing.T) {
	f := newVouchFixture(t, midMonth)
	ctx := context.Background()

	tier1 := f.developer(t, tier.Tier1, true)
	tier2 := f.developer(t, tier.Tier2, true)
	otherTier2 := f.developer(t, tier.Tier2, true)
	tier3 := f.developer(t, tier.Tier3, true)
	ineligible := f.developer(t, tier.Tier4, false)

	tests := []struct {
		name     string
		voucher  string
		in       CreateVouchInput
		sentinel error
	}{
		{"unknown voucher", "missing", vouchFor(tier3.ID), apperror.ErrNotFound},
		{"unknown target", tier1.ID, vouchFor("missing"), apperror.ErrNotFound},
		{"self vouch", tier1.ID, vouchFor(tier1.ID), apperror.ErrBadRequest},
		{"lower tier vouching upward", tier3.ID, vouchFor(tier2.ID), apperror.ErrForbidden},
		{"same tier", tier2.ID, vouchFor(otherTier2.ID), apperror.ErrForbidden},
		{"ineligible target", tier1.ID, vouchFor(ineligible.ID), apperror.ErrBadRequest},
		{"no skills", tier1.ID, CreateVouchInput{VouchedUserID: tier3.ID}, apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateVouch(ctx, tt.voucher, tt.in)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestCreateVouch_LengthLimitsCountCharacters(t *testing.T) {
	f := newVouchFixture(t, midMonth)
	voucher := f.developer(t, tier.Tier1, true)
	target := f.developer(t, tier.Tier3, true)
	other := f.developer(t, tier.Tier3, true)
	ctx := context.Background()

	// Two bytes per rune, so these exceed the limits only when counted in bytes.
	in := vouchFor(target.ID)
	in.Message = strings.Repeat("é", 600)
	in.SkillsEndorsed = []string{strings.Repeat("ß", MaxSkillLength)}
	v, err := f.svc.CreateVouch(ctx, voucher.ID, in)
	require.NoError(t, err)

	tooLong := vouchFor(other.ID)
	tooLong.Message = strings.Repeat("é", MaxVouchMessage+1)
	_, err = f.svc.CreateVouch(ctx, voucher.ID, tooLong)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.svc.RevokeVouch(ctx, v.ID, voucher.ID, strings.Repeat("ü", MaxRevokeReasonSize+1))
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, err = f.svc.RevokeVouch(ctx, v.ID, voucher.ID, strings.Repeat("ü", MaxRevokeReasonSize))
	assert.NoError(t, err)
}

func TestCreateVouch_TierThreeCannotVouchForTierTwo(t *testing.T) {
	f := newVouchFixture(t, midMonth)
	voucher := f.developer(t, tier.Tier3, true)
	target := f.developer(t, tier.Tier2, true)

	_, err := f.svc.CreateVouch(context.Background(), voucher.ID, vouchFor(target.ID))
	appErr := requireAppError(t, err, apperror.ErrForbidden)
	assert.Contains(t, appErr.Message, "lower tier")
}

func TestCreateVouch_IneligibleTargetCarriesReasons(t *testing.T) {
	f := newVouchFixture(t, midMonth)
	voucher := f.developer(t, tier.Tier1, true)
	target := f.developer(t, tier.Tier4, false)

	_, err := f.svc.CreateVouch(context.Background(), voucher.ID, vouchFor(target.ID))
	appErr := requireAppError(t, err, apperror.ErrBadRequest)
	assert.NotEmpty(t, appErr.Reasons)
}

func TestCreateVouch_Duplicate(t *testing.T) {
	f := newVouchFixture(t, midMonth)
	voucher := f.developer(t, tier.Tier1, true)
	target := f.developer(t, tier.Tier2, true)
	ctx := context.Background()

	_, err := f.svc.CreateVouch(ctx, voucher.ID, vouchFor(target.ID))
	require.NoError(t, err)

	_, err = f.svc.CreateVouch(ctx, voucher.ID, vouchFor(target.ID))
	appErr := requireAppError(t, err, apperror.ErrBadRequest)
	assert.Contains(t, appErr.Message, "already have an active vouch")
}

func TestCreateVouch_MonthlyLimit(t *testing.T) {
	f := newVouchFixture(t, time.Date(2026, 3, 31, 22, 0, 0, 0, time.UTC))
	voucher := f.developer(t, tier.Tier1, true)
	ctx := context.Background()

	var targets []*model.Developer
	for range MonthlyVouchLimit + 2 {
		targets = append(targets, f.developer(t, tier.Tier3, true))
	}

	for i := range MonthlyVouchLimit {
		_, err := f.svc.CreateVouch(ctx, voucher.ID, vouchFor(targets[i].ID))
		require.NoError(t, err, "vouch %d", i+1)
	}

	_, err := f.svc.CreateVouch(ctx, voucher.ID, vouchFor(targets[MonthlyVouchLimit].ID))
	appErr := requireAppError(t, err, apperror.ErrBadRequest)
	assert.Contains(t, appErr.Message, "monthly vouch limit")

	// A new UTC month resets the allowance.
	f.now = time.Date(2026, 4, 1, 0, 30, 0, 0, time.UTC)
	_, err = f.svc.CreateVouch(ctx, voucher.ID, vouchFor(targets[MonthlyVouchLimit].ID))
	require.NoError(t, err)
}

func TestCreateVouch_RevokedVouchesFreeTheAllowance(t *testing.T) {
	f := newVouchFixture(t, midMonth)
	voucher := f.developer(t, tier.Tier1, true)
	ctx := context.Background()

	var first *model.Vouch
	for i := range MonthlyVouchLimit {
		target := f.developer(t, tier.Tier2, true)
		v, err := f.svc.CreateVouch(ctx, voucher.ID, vouchFor(target.ID))
		require.NoError(t, err)
		if i == 0 {
			first = v
		}
	}

	_, err := f.svc.RevokeVouch(ctx, first.ID, voucher.ID, "changed my mind")
	require.NoError(t, err)

	extra := f.developer(t, tier.Tier2, true)
	_, err = f.svc.CreateVouch(ctx, voucher.ID, vouchFor(extra.ID))
	assert.NoError(t, err)
}

// =========================================================================
// REVOKE
// =========================================================================

func TestRevokeVouch(t *testing.T) {
	f := newVouchFixture(t, midMonth)
	voucher := f.developer(t, tier.Tier1, true)
	target := f.developer(t, tier.Tier3, true)
	other := f.developer(t, tier.Tier1, true)
	ctx := context.Background()

	v, err := f.svc.CreateVouch(ctx, voucher.ID, vouchFor(target.ID))
	require.NoError(t, err)

	_, err = f.svc.RevokeVouch(ctx, v.ID, other.ID, "")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.svc.RevokeVouch(ctx, "missing", voucher.ID, "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	f.now = midMonth.Add(time.Hour)
	revoked, err := f.svc.RevokeVouch(ctx, v.ID, voucher.ID, " no longer accurate ")
	require.NoError(t, err)
	assert.False(t, revoked.IsActive)
	require.NotNil(t, revoked.RevokedAt)
	assert.Equal(t, f.now, *revoked.RevokedAt)
	assert.Equal(t, "no longer accurate", revoked.RevokeReason)

	_, err = f.svc.RevokeVouch(ctx, v.ID, voucher.ID, "")
	assert.ErrorIs(t, err, apperror.ErrBadRequest)

	// Revoking re-opens the pair.
	_, err = f.svc.CreateVouch(ctx, voucher.ID, vouchFor(target.ID))
	assert.NoError(t, err)
}

// =========================================================================
// LISTS
// =========================================================================

func TestListReceivedAndGiven(t *testing.T) {
	f := newVouchFixture(t, midMonth)
	ctx := context.Background()

	t1 := f.developer(t, tier.Tier1, true)
	t2 := f.developer(t, tier.Tier2, true)
	target := f.developer(t, tier.Tier3, true)

	_, err := f.svc.CreateVouch(ctx, t1.ID, vouchFor(target.ID))
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	_, err = f.svc.CreateVouch(ctx, t2.ID, vouchFor(target.ID))
	require.NoError(t, err)

	received, err := f.svc.ListReceived(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, received.Count)
	assert.Equal(t, 5.0, received.TotalWeight)
	require.Len(t, received.Vouches, 2)
	assert.Equal(t, t2.ID, received.Vouches[0].VoucherID, "newest first")

	given, err := f.svc.ListGiven(ctx, t1.ID)
	require.NoError(t, err)
	require.Len(t, given, 1)
	assert.Equal(t, target.ID, given[0].VouchedUserID)

	_, err = f.svc.ListReceived(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestNormalizeSkills(t *testing.T) {
	_, err := normalizeSkills([]string{"  ", ""})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	tooMany := make([]string, MaxSkillsEndorsed+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("skill-%d", i)
	}
	_, err = normalizeSkills(tooMany)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	got, err := normalizeSkills([]string{"Rust", "rust", "RUST", "zk"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Rust", "zk"}, got)
}

func TestStartOfMonth(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	// 1 June 01:00 at UTC+3 is still 31 May in UTC.
	got := startOfMonth(time.Date(2026, 6, 1, 1, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), got)
}
