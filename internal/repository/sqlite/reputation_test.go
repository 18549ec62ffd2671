package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/vouchnet/internal/apperror"
	"github.com/sakif/vouchnet/internal/model"
	"github.com/sakif/vouchnet/internal/tier"
)

func TestGetLatestReputationScore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	dev := createTestDeveloper(t, db, "scorer")

	if _, err := db.GetLatestReputationScore(ctx, dev.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetLatestReputationScore() before any calculation = %v, want ErrNotFound", err)
	}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, score := range []float64{20, 55.5, 40} {
		s := &model.ReputationScore{
			DeveloperID:  dev.ID,
			TotalScore:   score,
			Tier:         tier.Classify(score),
			SubScores:    model.SubScores{GitHub: score},
			CalculatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := db.CreateReputationScore(ctx, s); err != nil {
			t.Fatalf("CreateReputationScore() error = %v", err)
		}
	}

	latest, err := db.GetLatestReputationScore(ctx, dev.ID)
	if err != nil {
		t.Fatalf("GetLatestReputationScore() error = %v", err)
	}
	if latest.TotalScore != 40 || latest.Tier != tier.Tier3 {
		t.Errorf("latest = (%v, %s), want (40, TIER_3)", latest.TotalScore, latest.Tier)
	}
	if latest.SubScores.GitHub != 40 {
		t.Errorf("SubScores.GitHub = %v, want 40", latest.SubScores.GitHub)
	}
}

func TestListReputationHistory_NewestFirstAndLimited(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	dev := createTestDeveloper(t, db, "historian")

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		h := &model.ReputationHistory{
			DeveloperID: dev.ID,
			Score:       float64(i * 10),
			Tier:        tier.Classify(float64(i * 10)),
			Date:        base.AddDate(0, 0, i),
		}
		if err := db.CreateReputationHistory(ctx, h); err != nil {
			t.Fatalf("CreateReputationHistory() error = %v", err)
		}
	}

	history, err := db.ListReputationHistory(ctx, dev.ID, 3)
	if err != nil {
		t.Fatalf("ListReputationHistory() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("len = %d, want 3", len(history))
	}
	if history[0].Score != 40 || history[2].Score != 20 {
		t.Errorf("scores = [%v .. %v], want [40 .. 20]", history[0].Score, history[2].Score)
	}

	all, _ := db.ListReputationHistory(ctx, dev.ID, 0)
	if len(all) != 5 {
		t.Errorf("default limit returned %d entries, want 5", len(all))
	}
}
