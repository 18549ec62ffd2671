package model

import (
	"strings"
	"time"
)

// Project is one entry of a developer's portfolio and a raw input to the
// project sub-score.
type Project struct {
	ID              string    `json:"id"`
	DeveloperID     string    `json:"developerId"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Technologies    []string  `json:"technologies"`
	LivePlatformURL string    `json:"livePlatformUrl"`
	RepositoryURL   string    `json:"repositoryUrl"`
	GitHubStars     int       `json:"githubStars"`
	GitHubForks     int       `json:"githubForks"`
	IsVerified      bool      `json:"isVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// IsDeployed reports whether the project has a live platform URL.
func (p *Project) IsDeployed() bool {
	return strings.TrimSpace(p.LivePlatformURL) != ""
}
