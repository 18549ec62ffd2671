package model

import "time"

// HackathonParticipation records one hackathon entry. Placement is 1, 2 or 3
// for podium finishes and 0 for any other result or plain participation.
// Only verified entries count toward reputation.
type HackathonParticipation struct {
	ID          string    `json:"id"`
	DeveloperID string    `json:"developerId"`
	Name        string    `json:"name"`
	Placement   int       `json:"placement"`
	PrizeAmount float64   `json:"prizeAmount"`
	IsVerified  bool      `json:"isVerified"`
	CreatedAt   time.Time `json:"createdAt"`
}

// GrantRecipient records a grant awarded to a developer.
type GrantRecipient struct {
	ID          string    `json:"id"`
	DeveloperID string    `json:"developerId"`
	Program     string    `json:"program"`
	Amount      float64   `json:"amount"`
	IsVerified  bool      `json:"isVerified"`
	CreatedAt   time.Time `json:"createdAt"`
}

// OpenSourceContribution records a contribution to a third-party repository.
type OpenSourceContribution struct {
	ID            string    `json:"id"`
	DeveloperID   string    `json:"developerId"`
	RepositoryURL string    `json:"repositoryUrl"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"createdAt"`
}
