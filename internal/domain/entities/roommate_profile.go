package entities

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Lifestyle is one of a fixed set of living-habit tags
type Lifestyle string

const (
	LifestyleEarlyRiser Lifestyle = "early_riser"
	LifestyleNightOwl   Lifestyle = "night_owl"
	LifestyleQuiet      Lifestyle = "quiet"
	LifestyleSocial     Lifestyle = "social"
	LifestyleClean      Lifestyle = "clean"
	LifestyleRelaxed    Lifestyle = "relaxed"
)

var lifestyles = map[Lifestyle]struct{}{
	LifestyleEarlyRiser: {},
	LifestyleNightOwl:   {},
	LifestyleQuiet:      {},
	LifestyleSocial:     {},
	LifestyleClean:      {},
	LifestyleRelaxed:    {},
}

const (
	// MaxBioLength is the maximum number of characters in a profile bio
	MaxBioLength = 500

	DefaultBudgetMin = 5000
	DefaultBudgetMax = 50000
)

// Budget is a monthly rent range
type Budget struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Midpoint returns the centre of the range
func (b Budget) Midpoint() float64 {
	return (b.Min + b.Max) / 2
}

// RoommatePreferences holds what a user is looking for
type RoommatePreferences struct {
	Budget    Budget      `json:"budget"`
	Location  []string    `json:"location"`
	Lifestyle []Lifestyle `json:"lifestyle"`
}

// RoommateProfile is a validated roommate profile, owned 1:1 by a user
type RoommateProfile struct {
	UserID          string              `json:"user_id" db:"user_id"`
	Bio             string              `json:"bio" db:"bio"`
	Interests       []string            `json:"interests"`
	Preferences     RoommatePreferences `json:"preferences"`
	ProfileComplete bool                `json:"profile_complete" db:"profile_complete"`
	CreatedAt       time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" db:"updated_at"`
}

// RoommatePreferencesInput is the submitted preferences block. A nil Budget
// takes the default range.
type RoommatePreferencesInput struct {
	Budget    *Budget  `json:"budget"`
	Location  []string `json:"location"`
	Lifestyle []string `json:"lifestyle"`
}

// RoommateProfileInput is an unvalidated profile submission. Nil fields keep
// the value of the existing profile on overwrite.
type RoommateProfileInput struct {
	Bio         *string                   `json:"bio"`
	Interests   []string                  `json:"interests"`
	Preferences *RoommatePreferencesInput `json:"preferences"`
}

// NewRoommateProfile merges input over existing (which may be nil) and
// validates the result.
func NewRoommateProfile(userID string, in RoommateProfileInput, existing *RoommateProfile, now time.Time) (*RoommateProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	p := &RoommateProfile{UserID: userID, CreatedAt: now}
	hasPreferences := false
	if existing != nil {
		p.Bio = existing.Bio
		p.Interests = existing.Interests
		p.Preferences = existing.Preferences
		p.CreatedAt = existing.CreatedAt
		hasPreferences = existing.ProfileComplete
	} else {
		p.Preferences.Budget = Budget{Min: DefaultBudgetMin, Max: DefaultBudgetMax}
	}
	p.UpdatedAt = now

	if in.Bio != nil {
		p.Bio = strings.TrimSpace(*in.Bio)
	}
	if p.Bio == "" {
		return nil, fmt.Errorf("bio is required")
	}
	if utf8.RuneCountInString(p.Bio) > MaxBioLength {
		return nil, fmt.Errorf("bio must be at most %d characters", MaxBioLength)
	}

	if in.Interests != nil {
		p.Interests = normalizeTags(in.Interests)
	}

	if in.Preferences != nil {
		prefs, err := buildPreferences(*in.Preferences)
		if err != nil {
			return nil, err
		}
		p.Preferences = prefs
		hasPreferences = true
	}

	if p.Interests == nil {
		p.Interests = []string{}
	}
	if p.Preferences.Location == nil {
		p.Preferences.Location = []string{}
	}
	if p.Preferences.Lifestyle == nil {
		p.Preferences.Lifestyle = []Lifestyle{}
	}
	p.ProfileComplete = hasPreferences

	return p, nil
}

func buildPreferences(in RoommatePreferencesInput) (RoommatePreferences, error) {
	prefs := RoommatePreferences{Budget: Budget{Min: DefaultBudgetMin, Max: DefaultBudgetMax}}
	if in.Budget != nil {
		prefs.Budget = *in.Budget
	}
	if prefs.Budget.Min < 0 || prefs.Budget.Max < 0 {
		return prefs, fmt.Errorf("budget must not be negative")
	}
	if prefs.Budget.Min > prefs.Budget.Max {
		return prefs, fmt.Errorf("budget min must not exceed max")
	}

	prefs.Location = normalizeTags(in.Location)

	lifestyle, err := ParseLifestyles(in.Lifestyle)
	if err != nil {
		return prefs, err
	}
	prefs.Lifestyle = lifestyle
	return prefs, nil
}

// ParseLifestyles validates and de-duplicates lifestyle tags
func ParseLifestyles(tags []string) ([]Lifestyle, error) {
	out := make([]Lifestyle, 0, len(tags))
	seen := make(map[Lifestyle]struct{}, len(tags))
	for _, raw := range tags {
		l := Lifestyle(strings.TrimSpace(raw))
		if _, ok := lifestyles[l]; !ok {
			return nil, fmt.Errorf("unknown lifestyle %q", raw)
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out, nil
}

// normalizeTags trims, drops empties and de-duplicates keeping first-seen order
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
