// Package repository declares the storage operations the services depend on.
//
// Each entity gets a narrow interface exposing only what the services call.
// Implementations live in sub-packages (sqlite, memory); services never
// import them directly.
package repository

import (
	"context"
	"time"

	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/tier"
)

// Default and maximum page sizes for list operations.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100

	// DefaultHistoryLimit is used when ListReputationHistory gets limit <= 0.
	DefaultHistoryLimit = 50
)

type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize clamps the options to the supported page range.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

type DeveloperRepository interface {
	CreateDeveloper(ctx context.Context, dev *model.Developer) error
	GetDeveloperByID(ctx context.Context, id string) (*model.Developer, error)
	GetDeveloperByUserID(ctx context.Context, userID string) (*model.Developer, error)
	ListDevelopers(ctx context.Context, filter model.DeveloperFilter) ([]model.Developer, error)
	ListDeveloperIDs(ctx context.Context) ([]string, error)
	UpdateDeveloperProfile(ctx context.Context, dev *model.Developer) error
	// UpdateDeveloperReputation refreshes the denormalized score cache.
	UpdateDeveloperReputation(ctx context.Context, id string, score float64, t tier.Tier) error
}

type ProjectRepository interface {
	CreateProject(ctx context.Context, p *model.Project) error
	GetProjectByID(ctx context.Context, id string) (*model.Project, error)
	ListProjectsByDeveloper(ctx context.Context, developerID string) ([]model.Project, error)
	UpdateProject(ctx context.Context, p *model.Project) error
	DeleteProject(ctx context.Context, id string) error
	CountVerifiedProjects(ctx context.Context, developerID string) (int, error)
}

// ActivityRepository stores the hackathon, grant and open-source records the
// reputation engine reads.
type ActivityRepository interface {
	CreateHackathonParticipation(ctx context.Context, h *model.HackathonParticipation) error
	ListVerifiedHackathons(ctx context.Context, developerID string) ([]model.HackathonParticipation, error)
	CreateGrant(ctx context.Context, g *model.GrantRecipient) error
	ListVerifiedGrants(ctx context.Context, developerID string) ([]model.GrantRecipient, error)
	CreateContribution(ctx context.Context, c *model.OpenSourceContribution) error
	ListContributions(ctx context.Context, developerID string) ([]model.OpenSourceContribution, error)
}

type ReputationRepository interface {
	CreateReputationScore(ctx context.Context, s *model.ReputationScore) error
	// GetLatestReputationScore returns apperror.ErrNotFound if none was calculated yet.
	GetLatestReputationScore(ctx context.Context, developerID string) (*model.ReputationScore, error)
	CreateReputationHistory(ctx context.Context, h *model.ReputationHistory) error
	// ListReputationHistory returns newest-first, at most limit entries
	// (DefaultHistoryLimit when limit <= 0).
	ListReputationHistory(ctx context.Context, developerID string, limit int) ([]model.ReputationHistory, error)
}

type VouchRepository interface {
	// CreateVouch returns apperror.ErrConflict when an active vouch already
	// exists for the same (voucher, vouched user) pair.
	CreateVouch(ctx context.Context, v *model.Vouch) error
	GetVouchByID(ctx context.Context, id string) (*model.Vouch, error)
	// HasActiveVouch reports whether voucherID has an active vouch for vouchedUserID.
	HasActiveVouch(ctx context.Context, voucherID, vouchedUserID string) (bool, error)
	ListActiveVouchesReceived(ctx context.Context, developerID string) ([]model.Vouch, error)
	ListActiveVouchesGiven(ctx context.Context, developerID string) ([]model.Vouch, error)
	CountActiveVouchesGivenSince(ctx context.Context, voucherID string, since time.Time) (int, error)
	RevokeVouch(ctx context.Context, id string, revokedAt time.Time, reason string) error
}

type EligibilityRepository interface {
	UpsertVouchEligibility(ctx context.Context, e *model.VouchEligibility) error
	GetVouchEligibility(ctx context.Context, developerID string) (*model.VouchEligibility, error)
}

// Store is the full storage surface plus a transaction primitive.
//
// WithinTx runs fn against a Store bound to a single transaction. If fn
// returns an error (or panics) nothing fn wrote is applied.
type Store interface {
	UserRepository
	DeveloperRepository
	ProjectRepository
	ActivityRepository
	ReputationRepository
	VouchRepository
	EligibilityRepository

	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
