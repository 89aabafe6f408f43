package services

import (
	"math"
	"sort"

	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
)

const (
	budgetWeight    = 30.0
	lifestyleWeight = 30.0
	interestsWeight = 25.0
	locationWeight  = 15.0

	// budgetUnitsPerPoint is the midpoint difference that costs one budget point
	budgetUnitsPerPoint = 1000.0

	maxScore = 100.0
)

// ScoreBreakdown holds the per-factor contributions to a compatibility score
type ScoreBreakdown struct {
	Budget    float64 `json:"budget"`
	Lifestyle float64 `json:"lifestyle"`
	Interests float64 `json:"interests"`
	Location  float64 `json:"location"`
}

// Total is the unrounded, unclamped sum of the factors
func (b ScoreBreakdown) Total() float64 {
	return b.Budget + b.Lifestyle + b.Interests + b.Location
}

// Match is a ranked candidate profile
type Match struct {
	Profile   *entities.RoommateProfile `json:"profile"`
	Score     int                       `json:"compatibility_score"`
	Breakdown ScoreBreakdown            `json:"breakdown"`
}

// CompatibilityEngine scores and ranks roommate profiles. Scores are
// directional: set overlaps are normalised by the first profile's set sizes,
// so Score(a, b) and Score(b, a) may differ.
type CompatibilityEngine struct{}

// NewCompatibilityEngine creates a compatibility engine
func NewCompatibilityEngine() *CompatibilityEngine {
	return &CompatibilityEngine{}
}

// Score returns an integer compatibility in [0, 100] from a's point of view
func (e *CompatibilityEngine) Score(a, b *entities.RoommateProfile) int {
	return finalScore(e.Breakdown(a, b))
}

// Breakdown returns the factor contributions used by Score
func (e *CompatibilityEngine) Breakdown(a, b *entities.RoommateProfile) ScoreBreakdown {
	diff := math.Abs(a.Preferences.Budget.Midpoint() - b.Preferences.Budget.Midpoint())

	return ScoreBreakdown{
		Budget:    math.Max(0, budgetWeight-diff/budgetUnitsPerPoint),
		Lifestyle: overlap(lifestyleStrings(a.Preferences.Lifestyle), lifestyleStrings(b.Preferences.Lifestyle)) * lifestyleWeight,
		Interests: overlap(a.Interests, b.Interests) * interestsWeight,
		Location:  overlap(a.Preferences.Location, b.Preferences.Location) * locationWeight,
	}
}

// Rank scores every candidate against requester and orders them best first.
// The requester and incomplete profiles are skipped; equal scores keep their
// input order.
func (e *CompatibilityEngine) Rank(requester *entities.RoommateProfile, candidates []*entities.RoommateProfile) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || c.UserID == requester.UserID || !c.ProfileComplete {
			continue
		}
		breakdown := e.Breakdown(requester, c)
		matches = append(matches, Match{Profile: c, Score: finalScore(breakdown), Breakdown: breakdown})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// finalScore clamps to 100 and then rounds half up
func finalScore(b ScoreBreakdown) int {
	total := math.Min(maxScore, b.Total())
	return int(math.Floor(total + 0.5))
}

// overlap returns |a ∩ b| / max(1, |a|)
func overlap(a, b []string) float64 {
	if len(a) == 0 {
		return 0
	}
	other := make(map[string]struct{}, len(b))
	for _, v := range b {
		other[v] = struct{}{}
	}

	seen := make(map[string]struct{}, len(a))
	matches := 0
	for _, v := range a {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := other[v]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(seen))
}

func lifestyleStrings(ls []entities.Lifestyle) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = string(l)
	}
	return out
}
