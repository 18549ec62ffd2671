package model

import (
	"time"

	"github.com/sakif/vouchnet/internal/tier"
)

// Vouch is a directed endorsement from a higher-tier developer to a
// lower-tier one.
//
// VoucherTier, VouchedUserTier and Weight are fixed when the vouch is created
// and never recomputed. A vouch is soft-deleted by revoking it.
type Vouch struct {
	ID              string     `json:"id"`
	VoucherID       string     `json:"voucherId"`
	VouchedUserID   string     `json:"vouchedUserId"`
	VoucherTier     tier.Tier  `json:"voucherTier"`
	VouchedUserTier tier.Tier  `json:"vouchedUserTier"`
	SkillsEndorsed  []string   `json:"skillsEndorsed"`
	Message         string     `json:"message,omitempty"`
	Weight          float64    `json:"weight"`
	IsActive        bool       `json:"isActive"`
	CreatedAt       time.Time  `json:"createdAt"`
	RevokedAt       *time.Time `json:"revokedAt,omitempty"`
	RevokeReason    string     `json:"revokeReason,omitempty"`
}

// VouchEligibility is the cached result of the last eligibility check.
// It is a read-cache only; eligibility is always recomputed live.
type VouchEligibility struct {
	DeveloperID        string    `json:"developerId"`
	IsEligible         bool      `json:"isEligible"`
	ReasonsNotEligible []string  `json:"reasonsNotEligible"`
	LastCheckedAt      time.Time `json:"lastCheckedAt"`
}
