package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		score float64
		want  Tier
	}{
		{-5, Tier4},
		{0, Tier4},
		{25.99, Tier4},
		{26, Tier3},
		{50.99, Tier3},
		{51, Tier2},
		{75.99, Tier2},
		{76, Tier1},
		{100, Tier1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score), "Classify(%v)", tt.score)
	}
}

func TestClassify_Monotonic(t *testing.T) {
	prev := Rank(Classify(0))
	for s := 0.0; s <= 100.0; s += 0.25 {
		got := Classify(s)
		assert.True(t, got.Valid(), "Classify(%v) returned unknown tier %q", s, got)

		// Higher scores may only move to a better (lower-ranked) tier.
		rank := Rank(got)
		assert.LessOrEqual(t, rank, prev, "tier got worse at score %v", s)
		prev = rank
	}
}

func TestCanVouchFor(t *testing.T) {
	for _, voucher := range All {
		for _, target := range All {
			want := Rank(voucher) < Rank(target)
			assert.Equal(t, want, CanVouchFor(voucher, target), "%s -> %s", voucher, target)
		}
	}

	assert.False(t, CanVouchFor("ADMIN", Tier4))
	assert.False(t, CanVouchFor(Tier1, ""))
}

func TestVouchableTiers(t *testing.T) {
	assert.Equal(t, []Tier{Tier2, Tier3, Tier4}, VouchableTiers(Tier1))
	assert.Equal(t, []Tier{Tier3, Tier4}, VouchableTiers(Tier2))
	assert.Equal(t, []Tier{Tier4}, VouchableTiers(Tier3))
	assert.Empty(t, VouchableTiers(Tier4))
}

func TestWeights(t *testing.T) {
	assert.Equal(t, 3.0, VouchWeight(Tier1))
	assert.Equal(t, 2.0, VouchWeight(Tier2))
	assert.Equal(t, 1.0, VouchWeight(Tier3))
	assert.Equal(t, 0.0, VouchWeight(Tier4))

	assert.Equal(t, 5.0, CommunityWeight(Tier1))
	assert.Equal(t, 3.0, CommunityWeight(Tier2))
	assert.Equal(t, 1.5, CommunityWeight(Tier3))
	assert.Equal(t, 0.5, CommunityWeight(Tier4))
	assert.Equal(t, DefaultCommunityWeight, CommunityWeight("SOMETHING_ELSE"))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Elite", Tier1.Label())
	assert.Equal(t, "Entry", Tier4.Label())
	assert.Equal(t, "Unknown", Tier("x").Label())
}
