package entities

import (
	"fmt"
	"time"
)

// Role is the authorization role carried by an authenticated principal
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal is the authenticated caller as asserted by the identity provider
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the principal holds the admin role
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Review represents a user review of a utility
type Review struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Rating    int       `json:"rating" db:"rating"` // 1-5
	Comment   string    `json:"comment" db:"comment"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewReview validates and builds a review
func NewReview(userID string, rating int, comment string, now time.Time) (Review, error) {
	if userID == "" {
		return Review{}, fmt.Errorf("reviewer id is required")
	}
	if rating < 1 || rating > 5 {
		return Review{}, fmt.Errorf("rating must be between 1 and 5")
	}
	if len(comment) > 1000 {
		return Review{}, fmt.Errorf("comment is too long")
	}
	return Review{UserID: userID, Rating: rating, Comment: comment, CreatedAt: now}, nil
}
