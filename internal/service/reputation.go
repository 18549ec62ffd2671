// Package service holds the business rules: the reputation engine, the
// vouching protocol, and the developer, project and login workflows built
// around them. Services talk to storage only through repository.Store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/sakif/vouchnet/internal/apperror"
	"github.com/sakif/vouchnet/internal/github"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/repository"
	"github.com/sakif/vouchnet/internal/tier"
)

// ReputationHistoryLimit is how many history points GetReputationHistory returns.
const ReputationHistoryLimit = 30

// DefaultBatchConcurrency bounds parallel calculations in RecalculateAll.
const DefaultBatchConcurrency = 4

// ContributionSource is the external GitHub data the engine reads.
// *github.Client satisfies it.
type ContributionSource interface {
	UserStats(ctx context.Context, username string) (*github.Stats, error)
}

// Breakdown is the full result of one calculation.
type Breakdown struct {
	DeveloperID  string            `json:"developerId"`
	TotalScore   float64           `json:"totalScore"`
	Tier         tier.Tier         `json:"tier"`
	TierLabel    string            `json:"tierLabel"`
	SubScores    model.SubScores   `json:"subScores"`
	Weights      Weights           `json:"weights"`
	Metadata     BreakdownMetadata `json:"metadata"`
	CalculatedAt time.Time         `json:"calculatedAt"`
}

// BreakdownMetadata records the inputs a calculation was based on.
type BreakdownMetadata struct {
	ScoreID           string `json:"scoreId"`
	GitHubLinked      bool   `json:"githubLinked"`
	GitHubUsername    string `json:"githubUsername,omitempty"`
	GitHubAvailable   bool   `json:"githubAvailable"`
	ProjectCount      int    `json:"projectCount"`
	ActiveVouchCount  int    `json:"activeVouchCount"`
	HackathonCount    int    `json:"hackathonCount"`
	GrantCount        int    `json:"grantCount"`
	ContributionCount int    `json:"contributionCount"`
}

// BatchResult is returned by RecalculateAll.
type BatchResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// ReputationService is the reputation engine.
//
// CALCULATION FLOW:
//
//	load developer + related records (Store)
//	  → fetch GitHub stats (degrades to 0 on failure)
//	  → five sub-scores → weighted total → tier
//	  → one transaction: score row + history row + developer cache
type ReputationService struct {
	store       repository.Store
	source      ContributionSource
	logger      *slog.Logger
	weights     Weights
	now         func() time.Time
	concurrency int
}

type ReputationOption func(*ReputationService)

// WithClock replaces time.Now. Tests use it to pin account ages.
func WithClock(now func() time.Time) ReputationOption {
	return func(s *ReputationService) { s.now = now }
}

// WithBatchConcurrency sets how many developers RecalculateAll scores at once.
func WithBatchConcurrency(n int) ReputationOption {
	return func(s *ReputationService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewReputationService wires the engine. source may be nil, in which case
// every GitHub sub-score is 0.
func NewReputationService(store repository.Store, source ContributionSource, logger *slog.Logger, opts ...ReputationOption) *ReputationService {
	s := &ReputationService{
		store:       store,
		source:      source,
		logger:      logger,
		weights:     DefaultWeights,
		now:         time.Now,
		concurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CalculateReputation computes and persists a fresh score for developerID.
// Returns apperror.ErrNotFound if the developer does not exist.
func (s *ReputationService) CalculateReputation(ctx context.Context, developerID string) (*Breakdown, error) {
	dev, err := s.store.GetDeveloperByID(ctx, developerID)
	if err != nil {
		return nil, err
	}

	projects, err := s.store.ListProjectsByDeveloper(ctx, dev.ID)
	if err != nil {
		return nil, fmt.Errorf("loading projects: %w", err)
	}
	vouches, err := s.store.ListActiveVouchesReceived(ctx, dev.ID)
	if err != nil {
		return nil, fmt.Errorf("loading received vouches: %w", err)
	}
	hackathons, err := s.store.ListVerifiedHackathons(ctx, dev.ID)
	if err != nil {
		return nil, fmt.Errorf("loading hackathons: %w", err)
	}
	grants, err := s.store.ListVerifiedGrants(ctx, dev.ID)
	if err != nil {
		return nil, fmt.Errorf("loading grants: %w", err)
	}
	contributions, err := s.store.ListContributions(ctx, dev.ID)
	if err != nil {
		return nil, fmt.Errorf("loading contributions: %w", err)
	}

	now := s.now().UTC()
	meta := BreakdownMetadata{
		ProjectCount:      len(projects),
		ActiveVouchCount:  len(vouches),
		HackathonCount:    len(hackathons),
		GrantCount:        len(grants),
		ContributionCount: len(contributions),
	}

	stats := s.fetchGitHubStats(ctx, dev, &meta)

	sub := model.SubScores{
		GitHub:           githubScore(stats),
		Projects:         projectScore(projects),
		TimeInvestment:   timeInvestmentScore(dev, projects, now),
		HackathonsGrants: hackathonGrantScore(hackathons, grants),
		Community:        communityScore(vouches),
	}
	total := s.weights.Total(sub)
	t := tier.Classify(total)

	score := &model.ReputationScore{
		DeveloperID:  dev.ID,
		TotalScore:   total,
		Tier:         t,
		SubScores:    sub,
		CalculatedAt: now,
	}

	// The score row, the history point and the developer cache must land
	// together or not at all.
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.CreateReputationScore(ctx, score); err != nil {
			return err
		}
		if err := tx.CreateReputationHistory(ctx, &model.ReputationHistory{
			DeveloperID: dev.ID,
			Score:       total,
			Tier:        t,
			Date:        now,
		}); err != nil {
			return err
		}
		return tx.UpdateDeveloperReputation(ctx, dev.ID, total, t)
	})
	if err != nil {
		s.logger.Error("failed to persist reputation",
			slog.String("developerID", dev.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("persisting reputation for %s: %w", dev.ID, err)
	}

	s.logger.Info("reputation calculated",
		slog.String("developerID", dev.ID),
		slog.Float64("total", total),
		slog.String("tier", string(t)),
	)

	meta.ScoreID = score.ID
	return &Breakdown{
		DeveloperID:  dev.ID,
		TotalScore:   total,
		Tier:         t,
		TierLabel:    t.Label(),
		SubScores:    sub,
		Weights:      s.weights,
		Metadata:     meta,
		CalculatedAt: score.CalculatedAt,
	}, nil
}

// fetchGitHubStats returns nil when the developer has no usable GitHub link
// or the lookup fails. Failures are logged and never returned: an unavailable
// GitHub only costs the developer their GitHub sub-score.
func (s *ReputationService) fetchGitHubStats(ctx context.Context, dev *model.Developer, meta *BreakdownMetadata) *github.Stats {
	username, ok := github.UsernameFromURL(dev.GitHubURL)
	if !ok {
		return nil
	}
	meta.GitHubLinked = true
	meta.GitHubUsername = username

	if s.source == nil {
		return nil
	}

	stats, err := s.source.UserStats(ctx, username)
	if err != nil {
		attrs := []any{
			slog.String("developerID", dev.ID),
			slog.String("username", username),
			slog.String("error", err.Error()),
		}
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("github user not found, scoring github as 0", attrs...)
		} else {
			s.logger.Warn("github unavailable, scoring github as 0", attrs...)
		}
		return nil
	}

	meta.GitHubAvailable = true
	return stats
}

// GetReputation returns the latest stored score.
// Returns apperror.ErrNotFound when none has been calculated yet.
func (s *ReputationService) GetReputation(ctx context.Context, developerID string) (*model.ReputationScore, error) {
	return s.store.GetLatestReputationScore(ctx, developerID)
}

// GetOrCalculateReputation returns the latest stored score and calculates
// one first when the developer has never been scored.
func (s *ReputationService) GetOrCalculateReputation(ctx context.Context, developerID string) (*model.ReputationScore, error) {
	score, err := s.store.GetLatestReputationScore(ctx, developerID)
	if err == nil {
		return score, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("loading reputation: %w", err)
	}

	b, err := s.CalculateReputation(ctx, developerID)
	if err != nil {
		return nil, err
	}
	return b.Score(), nil
}

// Score is the stored snapshot this breakdown produced.
func (b *Breakdown) Score() *model.ReputationScore {
	return &model.ReputationScore{
		ID:           b.Metadata.ScoreID,
		DeveloperID:  b.DeveloperID,
		TotalScore:   b.TotalScore,
		Tier:         b.Tier,
		SubScores:    b.SubScores,
		CalculatedAt: b.CalculatedAt,
	}
}

// GetReputationHistory returns the most recent history points, newest first.
func (s *ReputationService) GetReputationHistory(ctx context.Context, developerID string) ([]model.ReputationHistory, error) {
	if _, err := s.store.GetDeveloperByID(ctx, developerID); err != nil {
		return nil, err
	}
	history, err := s.store.ListReputationHistory(ctx, developerID, ReputationHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("loading reputation history: %w", err)
	}
	return history, nil
}

// RecalculateAll scores every developer with bounded parallelism. A failure
// for one developer is logged and counted; it never stops the batch.
func (s *ReputationService) RecalculateAll(ctx context.Context) (*BatchResult, error) {
	ids, err := s.store.ListDeveloperIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing developers: %w", err)
	}

	start := s.now()
	var success, failed atomic.Int64

	p := pool.New().WithContext(ctx).WithMaxGoroutines(s.concurrency)
	for _, id := range ids {
		p.Go(func(ctx context.Context) error {
			if _, err := s.CalculateReputation(ctx, id); err != nil {
				failed.Add(1)
				s.logger.Warn("reputation recalculation failed",
					slog.String("developerID", id),
					slog.String("error", err.Error()),
				)
				return nil
			}
			success.Add(1)
			return nil
		})
	}
	_ = p.Wait()

	result := &BatchResult{Success: int(success.Load()), Failed: int(failed.Load())}
	s.logger.Info("reputation batch finished",
		slog.Int("developers", len(ids)),
		slog.Int("success", result.Success),
		slog.Int("failed", result.Failed),
		slog.Duration("took", s.now().Sub(start)),
	)
	return result, nil
}
