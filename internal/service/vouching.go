package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/vouchnet/internal/apperror"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/repository"
	"github.com/sakif/vouchnet/internal/tier"
)

// Eligibility thresholds a developer must meet to receive a vouch.
const (
	MinEligibleScore           = 10.0
	MinEligibleAccountAgeDays  = 30
	MinEligibleVerifiedProject = 2
)

// MonthlyVouchLimit is how many active vouches a voucher may create per
// calendar month (UTC).
const MonthlyVouchLimit = 5

const (
	MaxSkillsEndorsed   = 20
	MaxSkillLength      = 50
	MaxVouchMessage     = 1000
	MaxRevokeReasonSize = 500
)

// CreateVouchInput is the caller-supplied part of a new vouch.
type CreateVouchInput struct {
	VouchedUserID  string
	SkillsEndorsed []string
	Message        string
}

// ReceivedVouches is the received-vouches view with its aggregates.
type ReceivedVouches struct {
	Vouches     []model.Vouch `json:"vouches"`
	TotalWeight float64       `json:"totalWeight"`
	Count       int           `json:"count"`
}

// VouchService implements the vouching protocol.
//
// CREATE ORDER:
// The checks in CreateVouch run in a fixed order and the first failure wins:
//
//	exists → not self → tier hierarchy → eligibility → duplicate → monthly throttle
//
// Duplicate and throttle checks are read-then-write. Two concurrent requests
// can both pass them; the store's unique index on active pairs stops the
// duplicate case, the throttle may overshoot by the number of racing requests.
type VouchService struct {
	store  repository.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewVouchService(store repository.Store, logger *slog.Logger) *VouchService {
	return &VouchService{store: store, logger: logger, now: time.Now}
}

// SetClock replaces time.Now. Used by tests to cross month boundaries.
func (s *VouchService) SetClock(now func() time.Time) {
	s.now = now
}

// CheckVouchEligibility re-evaluates whether developerID may receive vouches
// and caches the verdict. Every failed rule is reported, not just the first.
func (s *VouchService) CheckVouchEligibility(ctx context.Context, developerID string) (*model.VouchEligibility, error) {
	dev, err := s.store.GetDeveloperByID(ctx, developerID)
	if err != nil {
		return nil, err
	}

	verified, err := s.store.CountVerifiedProjects(ctx, dev.ID)
	if err != nil {
		return nil, fmt.Errorf("counting verified projects: %w", err)
	}

	now := s.now().UTC()
	reasons := []string{}

	if dev.ReputationScore < MinEligibleScore {
		reasons = append(reasons, fmt.Sprintf(
			"reputation score %.2f is below the minimum reputation of %.0f", dev.ReputationScore, MinEligibleScore))
	}
	if age := daysBetween(dev.CreatedAt, now); age < MinEligibleAccountAgeDays {
		reasons = append(reasons, fmt.Sprintf(
			"account is %d days old, at least %d days required", age, MinEligibleAccountAgeDays))
	}
	if verified < MinEligibleVerifiedProject {
		reasons = append(reasons, fmt.Sprintf(
			"%d verified projects, at least %d required", verified, MinEligibleVerifiedProject))
	}
	if missing := dev.MissingProfileFields(); len(missing) > 0 {
		reasons = append(reasons, "incomplete profile, missing: "+strings.Join(missing, ", "))
	}

	result := &model.VouchEligibility{
		DeveloperID:        dev.ID,
		IsEligible:         len(reasons) == 0,
		ReasonsNotEligible: reasons,
		LastCheckedAt:      now,
	}

	// The cache is best effort; a failed write must not change the verdict.
	if err := s.store.UpsertVouchEligibility(ctx, result); err != nil {
		s.logger.Warn("failed to cache vouch eligibility",
			slog.String("developerID", dev.ID),
			slog.String("error", err.Error()),
		)
	}

	return result, nil
}

// CreateVouch records an endorsement from voucherID.
func (s *VouchService) CreateVouch(ctx context.Context, voucherID string, in CreateVouchInput) (*model.Vouch, error) {
	skills, err := normalizeSkills(in.SkillsEndorsed)
	if err != nil {
		return nil, err
	}
	message := strings.TrimSpace(in.Message)
	if utf8.RuneCountInString(message) > MaxVouchMessage {
		return nil, apperror.ValidationFailed("message",
			fmt.Sprintf("message must be %d characters or less", MaxVouchMessage))
	}

	// === 1. BOTH PARTIES EXIST ===
	voucher, err := s.store.GetDeveloperByID(ctx, voucherID)
	if err != nil {
		return nil, err
	}
	vouched, err := s.store.GetDeveloperByID(ctx, in.VouchedUserID)
	if err != nil {
		return nil, err
	}

	// === 2. NO SELF-VOUCH ===
	if voucher.ID == vouched.ID {
		return nil, apperror.BadRequest("cannot vouch for yourself")
	}

	// === 3. TIER HIERARCHY ===
	if !tier.CanVouchFor(voucher.Tier, vouched.Tier) {
		return nil, apperror.Forbidden(fmt.Sprintf(
			"a %s developer cannot vouch for a %s developer; vouches must go to a lower tier",
			voucher.Tier, vouched.Tier))
	}

	// === 4. TARGET ELIGIBILITY ===
	eligibility, err := s.CheckVouchEligibility(ctx, vouched.ID)
	if err != nil {
		return nil, fmt.Errorf("checking eligibility: %w", err)
	}
	if !eligibility.IsEligible {
		return nil, apperror.BadRequest("developer is not eligible to receive vouches",
			eligibility.ReasonsNotEligible...)
	}

	// === 5. NO DUPLICATE ACTIVE VOUCH ===
	exists, err := s.store.HasActiveVouch(ctx, voucher.ID, vouched.ID)
	if err != nil {
		return nil, fmt.Errorf("checking existing vouch: %w", err)
	}
	if exists {
		return nil, errDuplicateVouch()
	}

	// === 6. MONTHLY THROTTLE ===
	now := s.now().UTC()
	given, err := s.store.CountActiveVouchesGivenSince(ctx, voucher.ID, startOfMonth(now))
	if err != nil {
		return nil, fmt.Errorf("counting vouches this month: %w", err)
	}
	if given >= MonthlyVouchLimit {
		return nil, apperror.BadRequest(fmt.Sprintf(
			"monthly vouch limit reached: %d active vouches already given this month", given))
	}

	// === 7-8. WEIGHT AND PERSIST ===
	vouch := &model.Vouch{
		VoucherID:       voucher.ID,
		VouchedUserID:   vouched.ID,
		VoucherTier:     voucher.Tier,
		VouchedUserTier: vouched.Tier,
		SkillsEndorsed:  skills,
		Message:         message,
		Weight:          tier.VouchWeight(voucher.Tier),
		IsActive:        true,
		CreatedAt:       now,
	}
	if err := s.store.CreateVouch(ctx, vouch); err != nil {
		// Lost a race with an identical request.
		if errors.Is(err, apperror.ErrConflict) {
			return nil, errDuplicateVouch()
		}
		return nil, fmt.Errorf("creating vouch: %w", err)
	}

	s.logger.Info("vouch created",
		slog.String("vouchID", vouch.ID),
		slog.String("voucherID", voucher.ID),
		slog.String("vouchedUserID", vouched.ID),
		slog.Float64("weight", vouch.Weight),
	)
	return vouch, nil
}

func errDuplicateVouch() error {
	return apperror.BadRequest("you already have an active vouch for this developer")
}

// RevokeVouch deactivates a vouch. Only its original voucher may revoke it,
// and a revoked vouch stays revoked.
func (s *VouchService) RevokeVouch(ctx context.Context, vouchID, voucherID, reason string) (*model.Vouch, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > MaxRevokeReasonSize {
		return nil, apperror.ValidationFailed("reason",
			fmt.Sprintf("reason must be %d characters or less", MaxRevokeReasonSize))
	}

	vouch, err := s.store.GetVouchByID(ctx, vouchID)
	if err != nil {
		return nil, err
	}
	if vouch.VoucherID != voucherID {
		return nil, apperror.Forbidden("only the original voucher can revoke this vouch")
	}
	if !vouch.IsActive {
		return nil, apperror.BadRequest("vouch is already revoked")
	}

	revokedAt := s.now().UTC()
	if err := s.store.RevokeVouch(ctx, vouch.ID, revokedAt, reason); err != nil {
		// Revoked concurrently between the read and the write.
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.BadRequest("vouch is already revoked")
		}
		return nil, fmt.Errorf("revoking vouch: %w", err)
	}

	vouch.IsActive = false
	vouch.RevokedAt = &revokedAt
	vouch.RevokeReason = reason

	s.logger.Info("vouch revoked",
		slog.String("vouchID", vouch.ID),
		slog.String("voucherID", voucherID),
	)
	return vouch, nil
}

// ListReceived returns active vouches received by developerID, newest first,
// with their total weight.
func (s *VouchService) ListReceived(ctx context.Context, developerID string) (*ReceivedVouches, error) {
	if _, err := s.store.GetDeveloperByID(ctx, developerID); err != nil {
		return nil, err
	}
	vouches, err := s.store.ListActiveVouchesReceived(ctx, developerID)
	if err != nil {
		return nil, fmt.Errorf("listing received vouches: %w", err)
	}

	out := &ReceivedVouches{Vouches: vouches, Count: len(vouches)}
	for _, v := range vouches {
		out.TotalWeight += v.Weight
	}
	return out, nil
}

// ListGiven returns active vouches given by developerID, newest first.
func (s *VouchService) ListGiven(ctx context.Context, developerID string) ([]model.Vouch, error) {
	if _, err := s.store.GetDeveloperByID(ctx, developerID); err != nil {
		return nil, err
	}
	vouches, err := s.store.ListActiveVouchesGiven(ctx, developerID)
	if err != nil {
		return nil, fmt.Errorf("listing given vouches: %w", err)
	}
	return vouches, nil
}

// normalizeSkills trims, drops duplicates (case-insensitive) and validates.
func normalizeSkills(in []string) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, skill := range in {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		if utf8.RuneCountInString(skill) > MaxSkillLength {
			return nil, apperror.ValidationFailed("skillsEndorsed",
				fmt.Sprintf("each skill must be %d characters or less", MaxSkillLength))
		}
		key := strings.ToLower(skill)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, skill)
	}

	if len(out) == 0 {
		return nil, apperror.ValidationFailed("skillsEndorsed", "at least one skill must be endorsed")
	}
	if len(out) > MaxSkillsEndorsed {
		return nil, apperror.ValidationFailed("skillsEndorsed",
			fmt.Sprintf("at most %d skills can be endorsed", MaxSkillsEndorsed))
	}
	return out, nil
}

// startOfMonth is midnight UTC on the first day of t's month.
func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
