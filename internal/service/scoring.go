package service

import (
	"math"
	"strings"
	"time"

	"github.com/sakif/vouchnet/internal/github"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/tier"
)

// Weights are the fixed multipliers that combine the five sub-scores into
// the total. They sum to 1.0, so a total built from sub-scores in [0, 100]
// is itself in [0, 100].
type Weights struct {
	GitHub           float64 `json:"github"`
	Projects         float64 `json:"projects"`
	TimeInvestment   float64 `json:"timeInvestment"`
	HackathonsGrants float64 `json:"hackathonsGrants"`
	Community        float64 `json:"community"`
}

var DefaultWeights = Weights{
	GitHub:           0.30,
	Projects:         0.25,
	TimeInvestment:   0.15,
	HackathonsGrants: 0.20,
	Community:        0.10,
}

// Total combines the sub-scores, rounded to two decimals and clamped.
func (w Weights) Total(s model.SubScores) float64 {
	total := s.GitHub*w.GitHub +
		s.Projects*w.Projects +
		s.TimeInvestment*w.TimeInvestment +
		s.HackathonsGrants*w.HackathonsGrants +
		s.Community*w.Community
	return clamp(round2(total), 0, 100)
}

// =========================================================================
// SUB-SCORES
// =========================================================================
//
// Each sub-score is a sum of capped components:
//
//	component = min(value / target * cap, cap)
//
// so a developer reaching the target gets the full cap and nothing beyond.

// githubScore scores public, non-fork GitHub activity. nil stats (no linked
// profile, or the fetch failed) score 0.
func githubScore(stats *github.Stats) float64 {
	if stats == nil {
		return 0
	}
	score := capped(float64(stats.RepoCount), 20, 25) +
		capped(float64(stats.TotalStars), 100, 35) +
		capped(float64(stats.TotalForks), 50, 20) +
		capped(float64(stats.Followers), 100, 20)
	return finish(score)
}

func projectScore(projects []model.Project) float64 {
	if len(projects) == 0 {
		return 0
	}

	techs := make(map[string]struct{})
	deployed, stars := 0, 0
	for _, p := range projects {
		for _, t := range p.Technologies {
			t = strings.ToLower(strings.TrimSpace(t))
			if t != "" {
				techs[t] = struct{}{}
			}
		}
		if p.IsDeployed() {
			deployed++
		}
		stars += p.GitHubStars
	}

	score := capped(float64(len(projects)), 10, 40) +
		capped(float64(len(techs)), 15, 25) +
		capped(float64(deployed), 5, 20) +
		capped(float64(stars), 50, 15)
	return finish(score)
}

// timeInvestmentScore rewards account age, recent profile activity and
// recently touched projects. Recency only counts once the profile has been
// edited after it was created.
func timeInvestmentScore(dev *model.Developer, projects []model.Project, now time.Time) float64 {
	var recency float64
	if dev.UpdatedAt.After(dev.CreatedAt) {
		switch sinceUpdate := daysBetween(dev.UpdatedAt, now); {
		case sinceUpdate <= 7:
			recency = 30
		case sinceUpdate <= 30:
			recency = 20
		case sinceUpdate <= 90:
			recency = 10
		}
	}

	active := 0
	for _, p := range projects {
		if daysBetween(p.UpdatedAt, now) <= 90 {
			active++
		}
	}

	score := capped(accountAgeMonths(dev.CreatedAt, now), 12, 40) +
		recency +
		capped(float64(active), 3, 30)
	return finish(score)
}

// placementPoints maps a verified hackathon placement to its points.
// Anything other than a podium finish counts as participation.
func placementPoints(placement int) float64 {
	switch placement {
	case 1:
		return 20
	case 2:
		return 15
	case 3:
		return 10
	default:
		return 5
	}
}

func hackathonGrantScore(hackathons []model.HackathonParticipation, grants []model.GrantRecipient) float64 {
	var placements, money float64
	for _, h := range hackathons {
		placements += placementPoints(h.Placement)
		money += h.PrizeAmount
	}
	for _, g := range grants {
		money += g.Amount
	}

	score := capped(float64(len(hackathons)), 5, 25) +
		math.Min(placements, 40) +
		capped(float64(len(grants)), 3, 20) +
		capped(money, 10000, 15)
	return finish(score)
}

// communityScore weights each active received vouch by the voucher tier
// recorded on the vouch when it was created.
func communityScore(vouches []model.Vouch) float64 {
	if len(vouches) == 0 {
		return 0
	}
	var weighted float64
	for _, v := range vouches {
		weighted += tier.CommunityWeight(v.VoucherTier)
	}
	return finish(capped(weighted, 20, 100))
}

// =========================================================================
// HELPERS
// =========================================================================

func capped(value, target, limit float64) float64 {
	if value <= 0 {
		return 0
	}
	return math.Min(value/target*limit, limit)
}

// finish caps a summed sub-score at 100 and rounds it for storage.
func finish(score float64) float64 {
	return round2(clamp(score, 0, 100))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// daysBetween returns whole days elapsed from t to now, never negative.
func daysBetween(t, now time.Time) int {
	if t.IsZero() || now.Before(t) {
		return 0
	}
	return int(now.Sub(t).Hours() / 24)
}

// accountAgeMonths measures account age in 30-day months, fractional.
func accountAgeMonths(createdAt, now time.Time) float64 {
	return float64(daysBetween(createdAt, now)) / 30
}
