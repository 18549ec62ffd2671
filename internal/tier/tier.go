// Package tier classifies reputation scores into the four ordered tiers and
// encodes the rules that depend on tier ordering: who may vouch for whom, and
// how much a vouch is worth.
//
// TIER ORDERING:
// Tiers are compared by rank, where a LOWER rank is a HIGHER tier:
//
//	rank(TIER_1)=1 < rank(TIER_2)=2 < rank(TIER_3)=3 < rank(TIER_4)=4
//
// A developer may vouch for another only when rank(voucher) < rank(target).
package tier

// Tier is one of the four reputation bands. The string values are the ones
// persisted in the store and returned over the API.
type Tier string

const (
	Tier1 Tier = "TIER_1" // Elite
	Tier2 Tier = "TIER_2" // Advanced
	Tier3 Tier = "TIER_3" // Intermediate
	Tier4 Tier = "TIER_4" // Entry
)

// Lower bounds (inclusive) of each band.
const (
	Tier1MinScore = 76.0
	Tier2MinScore = 51.0
	Tier3MinScore = 26.0
)

// All lists the tiers from highest to lowest.
var All = []Tier{Tier1, Tier2, Tier3, Tier4}

// Classify maps a total reputation score to its tier.
func Classify(score float64) Tier {
	switch {
	case score >= Tier1MinScore:
		return Tier1
	case score >= Tier2MinScore:
		return Tier2
	case score >= Tier3MinScore:
		return Tier3
	default:
		return Tier4
	}
}

// Rank returns 1 for TIER_1 through 4 for TIER_4, and 0 for unknown values.
func Rank(t Tier) int {
	switch t {
	case Tier1:
		return 1
	case Tier2:
		return 2
	case Tier3:
		return 3
	case Tier4:
		return 4
	default:
		return 0
	}
}

// Valid reports whether t is one of the four known tiers.
func (t Tier) Valid() bool {
	return Rank(t) != 0
}

// Label is the human-readable band name.
func (t Tier) Label() string {
	switch t {
	case Tier1:
		return "Elite"
	case Tier2:
		return "Advanced"
	case Tier3:
		return "Intermediate"
	case Tier4:
		return "Entry"
	default:
		return "Unknown"
	}
}

// CanVouchFor reports whether a developer in the voucher tier may endorse a
// developer in the target tier. Only strictly descending vouches are allowed;
// unknown tiers never qualify.
func CanVouchFor(voucher, target Tier) bool {
	vr, tr := Rank(voucher), Rank(target)
	if vr == 0 || tr == 0 {
		return false
	}
	return vr < tr
}

// VouchableTiers returns the tiers a voucher in t may vouch for, highest first.
func VouchableTiers(t Tier) []Tier {
	var out []Tier
	for _, candidate := range All {
		if CanVouchFor(t, candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

// vouchWeights is the weight stored on a new vouch, keyed by the voucher's
// tier at creation time. TIER_4 cannot vouch, so it has no entry.
var vouchWeights = map[Tier]float64{
	Tier1: 3.0,
	Tier2: 2.0,
	Tier3: 1.0,
}

// VouchWeight returns the fixed weight a vouch created by a voucher in t
// carries. Zero means the tier cannot vouch.
func VouchWeight(t Tier) float64 {
	return vouchWeights[t]
}

// communityWeights drive the community sub-score, keyed by the voucher tier
// snapshotted on each received vouch.
var communityWeights = map[Tier]float64{
	Tier1: 5.0,
	Tier2: 3.0,
	Tier3: 1.5,
	Tier4: 0.5,
}

// DefaultCommunityWeight applies to vouches whose voucher tier is not recognised.
const DefaultCommunityWeight = 1.0

// CommunityWeight returns the community sub-score contribution of one vouch
// given by a voucher in t.
func CommunityWeight(t Tier) float64 {
	if w, ok := communityWeights[t]; ok {
		return w
	}
	return DefaultCommunityWeight
}
