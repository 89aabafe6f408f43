package entities

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Category classifies a utility
type Category string

const (
	CategoryMedical    Category = "medical"
	CategoryGrocery    Category = "grocery"
	CategoryXerox      Category = "xerox"
	CategoryStationary Category = "stationary"
	CategoryPharmacy   Category = "pharmacy"
	CategoryCafe       Category = "cafe"
	CategoryLaundry    Category = "laundry"
	CategorySalon      Category = "salon"
	CategoryBank       Category = "bank"
	CategoryATM        Category = "atm"
	CategoryRestaurant Category = "restaurant"
	CategoryOther      Category = "other"
)

var categories = map[Category]struct{}{
	CategoryMedical: {}, CategoryGrocery: {}, CategoryXerox: {}, CategoryStationary: {},
	CategoryPharmacy: {}, CategoryCafe: {}, CategoryLaundry: {}, CategorySalon: {},
	CategoryBank: {}, CategoryATM: {}, CategoryRestaurant: {}, CategoryOther: {},
}

// ParseCategory validates a category. An empty value maps to CategoryOther.
func ParseCategory(raw string) (Category, error) {
	if raw == "" {
		return CategoryOther, nil
	}
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := categories[c]; !ok {
		return "", fmt.Errorf("unknown category %q", raw)
	}
	return c, nil
}

// VerificationState is the moderation state of a utility
type VerificationState string

const (
	VerificationPending  VerificationState = "pending"
	VerificationVerified VerificationState = "verified"
	VerificationRejected VerificationState = "rejected"
)

// Verification is a tagged variant: a reason exists only when Rejected.
type Verification struct {
	state  VerificationState
	reason string
}

// Pending is the state of a freshly submitted utility
func Pending() Verification { return Verification{state: VerificationPending} }

// Verified marks a utility approved for public visibility
func Verified() Verification { return Verification{state: VerificationVerified} }

// Rejected marks a utility rejected with the given reason
func Rejected(reason string) Verification {
	return Verification{state: VerificationRejected, reason: reason}
}

// State returns the variant tag; the zero value reads as pending
func (v Verification) State() VerificationState {
	if v.state == "" {
		return VerificationPending
	}
	return v.state
}

// IsVerified reports whether the utility is publicly visible after moderation
func (v Verification) IsVerified() bool { return v.state == VerificationVerified }

// RejectionReason returns the reason for a rejected utility, or "" otherwise
func (v Verification) RejectionReason() string {
	if v.state != VerificationRejected {
		return ""
	}
	return v.reason
}

type verificationJSON struct {
	Status          VerificationState `json:"status"`
	Verified        bool              `json:"verified"`
	RejectionReason *string           `json:"rejection_reason"`
}

// MarshalJSON exposes the state together with the legacy verified flag
func (v Verification) MarshalJSON() ([]byte, error) {
	out := verificationJSON{Status: v.State(), Verified: v.IsVerified()}
	if v.State() == VerificationRejected {
		reason := v.reason
		out.RejectionReason = &reason
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a verification from its encoded form
func (v *Verification) UnmarshalJSON(data []byte) error {
	var raw verificationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := RestoreVerification(string(raw.Status), raw.RejectionReason)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// RestoreVerification rebuilds a verification from stored columns
func RestoreVerification(state string, reason *string) (Verification, error) {
	switch VerificationState(state) {
	case VerificationPending, "":
		return Pending(), nil
	case VerificationVerified:
		return Verified(), nil
	case VerificationRejected:
		if reason == nil {
			return Rejected(""), nil
		}
		return Rejected(*reason), nil
	}
	return Verification{}, fmt.Errorf("unknown verification state %q", state)
}

// Contact holds utility contact details
type Contact struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`
}

// OpeningWindow is an open/close pair such as "09:00"-"21:00"
type OpeningWindow struct {
	Open  string `json:"open,omitempty"`
	Close string `json:"close,omitempty"`
}

// OperatingHours is keyed by lowercase weekday name
type OperatingHours map[string]OpeningWindow

var weekdays = map[string]struct{}{
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {},
	"friday": {}, "saturday": {}, "sunday": {},
}

// Utility represents a campus point of interest
type Utility struct {
	ID             string         `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	Category       Category       `json:"category" db:"category"`
	Location       GeoPoint       `json:"location" db:"-"`
	Address        string         `json:"address,omitempty" db:"address"`
	Contact        Contact        `json:"contact" db:"-"`
	Description    string         `json:"description,omitempty" db:"description"`
	Image          string         `json:"image,omitempty" db:"image"`
	Tags           []string       `json:"tags" db:"-"`
	OperatingHours OperatingHours `json:"operating_hours,omitempty" db:"-"`
	Reviews        []Review       `json:"reviews" db:"-"`
	Rating         float64        `json:"rating" db:"rating"`
	Verification   Verification   `json:"verification" db:"-"`
	IsActive       bool           `json:"is_active" db:"is_active"`
	AddedBy        string         `json:"added_by" db:"added_by"`
	Version        int64          `json:"-" db:"version"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// Visible reports whether non-admin callers may see the utility
func (u *Utility) Visible() bool {
	return u.IsActive && u.Verification.IsVerified()
}

// Clone returns a deep copy so stores never hand out shared slices
func (u *Utility) Clone() *Utility {
	c := *u
	c.Tags = append([]string(nil), u.Tags...)
	c.Reviews = append([]Review(nil), u.Reviews...)
	if u.OperatingHours != nil {
		c.OperatingHours = make(OperatingHours, len(u.OperatingHours))
		for k, v := range u.OperatingHours {
			c.OperatingHours[k] = v
		}
	}
	return &c
}

// AppendReview adds a review and recomputes the derived rating
func (u *Utility) AppendReview(r Review) {
	u.Reviews = append(u.Reviews, r)
	u.Rating = AverageRating(u.Reviews)
}

// AverageRating is the mean review rating rounded half-up to one decimal
func AverageRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return RoundToTenth(float64(sum) / float64(len(reviews)))
}

// RoundToTenth rounds half-up to one decimal place
func RoundToTenth(v float64) float64 {
	return math.Floor(v*10+0.5) / 10
}

// UtilityInput is an unvalidated utility submission or patch. Nil fields are
// left unchanged by ApplyPatch.
type UtilityInput struct {
	Name           *string        `json:"name"`
	Category       *string        `json:"category"`
	Latitude       *float64       `json:"latitude"`
	Longitude      *float64       `json:"longitude"`
	Address        *string        `json:"address"`
	Contact        *Contact       `json:"contact"`
	Description    *string        `json:"description"`
	Image          *string        `json:"image"`
	Tags           []string       `json:"tags"`
	OperatingHours OperatingHours `json:"operating_hours"`
}

// NewUtility validates a submission; the result is pending and active.
func NewUtility(id, addedBy string, in UtilityInput, now time.Time) (*Utility, error) {
	if addedBy == "" {
		return nil, fmt.Errorf("submitter is required")
	}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, fmt.Errorf("name is required")
	}
	if in.Latitude == nil || in.Longitude == nil {
		return nil, fmt.Errorf("latitude and longitude are required")
	}

	u := &Utility{
		ID:           id,
		Category:     CategoryOther,
		Tags:         []string{},
		Reviews:      []Review{},
		Verification: Pending(),
		IsActive:     true,
		AddedBy:      addedBy,
		CreatedAt:    now,
	}
	if err := u.ApplyPatch(in, now); err != nil {
		return nil, err
	}
	return u, nil
}

// ApplyPatch validates and applies the non-nil fields of in
func (u *Utility) ApplyPatch(in UtilityInput, now time.Time) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return fmt.Errorf("name must not be empty")
		}
		u.Name = name
	}
	if in.Category != nil {
		c, err := ParseCategory(*in.Category)
		if err != nil {
			return err
		}
		u.Category = c
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return fmt.Errorf("latitude and longitude must be supplied together")
	}
	if in.Latitude != nil {
		p, err := NewGeoPoint(*in.Longitude, *in.Latitude)
		if err != nil {
			return err
		}
		u.Location = p
	}
	if in.Address != nil {
		u.Address = strings.TrimSpace(*in.Address)
	}
	if in.Contact != nil {
		u.Contact = *in.Contact
	}
	if in.Description != nil {
		u.Description = *in.Description
	}
	if in.Image != nil {
		u.Image = *in.Image
	}
	if in.Tags != nil {
		u.Tags = normalizeTags(in.Tags)
	}
	if in.OperatingHours != nil {
		hours := make(OperatingHours, len(in.OperatingHours))
		for day, window := range in.OperatingHours {
			key := strings.ToLower(day)
			if _, ok := weekdays[key]; !ok {
				return fmt.Errorf("unknown weekday %q", day)
			}
			hours[key] = window
		}
		u.OperatingHours = hours
	}
	u.UpdatedAt = now
	return nil
}

// ModerationDecision is the admin verdict applied by moderation
type ModerationDecision struct {
	Verify bool
	Reason string
}

// Outcome converts the decision to the resulting verification state
func (d ModerationDecision) Outcome() (Verification, error) {
	if d.Verify {
		return Verified(), nil
	}
	reason := strings.TrimSpace(d.Reason)
	if reason == "" {
		return Verification{}, fmt.Errorf("rejection reason is required")
	}
	return Rejected(reason), nil
}

// UtilityFilter narrows utility listings
type UtilityFilter struct {
	Category *Category
	// OnlyVisible restricts results to verified and active utilities
	OnlyVisible bool
	AddedBy     string
	State       *VerificationState
	// Verified keeps only verified utilities when true and only unverified
	// (pending or rejected) ones when false
	Verified *bool
}

// Matches applies the filter to u
func (f UtilityFilter) Matches(u *Utility) bool {
	if f.OnlyVisible && !u.Visible() {
		return false
	}
	if f.Category != nil && u.Category != *f.Category {
		return false
	}
	if f.AddedBy != "" && u.AddedBy != f.AddedBy {
		return false
	}
	if f.State != nil && u.Verification.State() != *f.State {
		return false
	}
	if f.Verified != nil && u.Verification.IsVerified() != *f.Verified {
		return false
	}
	return true
}

// MatchesText reports a case-insensitive substring hit on name, tags or
// description.
func (u *Utility) MatchesText(query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Description), q) {
		return true
	}
	for _, tag := range u.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}
