package model

import (
	"strings"
	"time"

	"github.com/sakif/vouchnet/internal/tier"
)

// Developer is the profile a reputation score and vouches hang off.
//
// Tier and ReputationScore are a denormalized cache of the latest
// ReputationScore row. They are written only by the reputation engine, in
// the same transaction that appends the new score.
type Developer struct {
	ID              string            `json:"id"`
	UserID          string            `json:"userId"`
	DisplayName     string            `json:"displayName"`
	Bio             string            `json:"bio"`
	Location        string            `json:"location"`
	GitHubURL       string            `json:"githubUrl"`
	Contact         string            `json:"contact"`
	SocialLinks     map[string]string `json:"socialLinks"`
	Tier            tier.Tier         `json:"tier"`
	ReputationScore float64           `json:"reputationScore"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// MissingProfileFields lists the profile fields required for vouch
// eligibility that are still empty.
func (d *Developer) MissingProfileFields() []string {
	var missing []string
	if strings.TrimSpace(d.Bio) == "" {
		missing = append(missing, "bio")
	}
	if strings.TrimSpace(d.Location) == "" {
		missing = append(missing, "location")
	}
	if strings.TrimSpace(d.GitHubURL) == "" {
		missing = append(missing, "github")
	}
	return missing
}

// DeveloperFilter narrows developer listings.
type DeveloperFilter struct {
	Tier   tier.Tier // empty means any tier
	Limit  int
	Offset int
}
