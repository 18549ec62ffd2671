package model

import (
	"time"

	"github.com/sakif/vouchnet/internal/tier"
)

// SubScores holds the five independently computed components, each in [0, 100].
type SubScores struct {
	GitHub           float64 `json:"github"`
	Projects         float64 `json:"projects"`
	TimeInvestment   float64 `json:"timeInvestment"`
	HackathonsGrants float64 `json:"hackathonsGrants"`
	Community        float64 `json:"community"`
}

// ReputationScore is an immutable snapshot. The current score of a developer
// is the row with the latest CalculatedAt.
type ReputationScore struct {
	ID           string    `json:"id"`
	DeveloperID  string    `json:"developerId"`
	TotalScore   float64   `json:"totalScore"`
	Tier         tier.Tier `json:"tier"`
	SubScores    SubScores `json:"subScores"`
	CalculatedAt time.Time `json:"calculatedAt"`
}

// ReputationHistory is one append-only point of a developer's score trend.
type ReputationHistory struct {
	ID          string    `json:"id"`
	DeveloperID string    `json:"developerId"`
	Score       float64   `json:"score"`
	Tier        tier.Tier `json:"tier"`
	Date        time.Time `json:"date"`
}
