package models

import (
	"time"

	"github.com/lib/pq"
)

// MatchFilters is an optional attribute filter. An empty field means "any".
// It is embedded twice: on User as the saved matching preferences, and on
// QueueEntry as the snapshot taken when the search was queued.
type MatchFilters struct {
	Gender   string `json:"gender,omitempty"`
	Region   string `json:"region,omitempty"`
	Language string `json:"language,omitempty"`
}

// IsEmpty reports whether no filter key is set.
func (f MatchFilters) IsEmpty() bool {
	return f.Gender == "" && f.Region == "" && f.Language == ""
}

// SatisfiedBy reports whether the candidate satisfies every non-empty
// filter key.
func (f MatchFilters) SatisfiedBy(candidate *User) bool {
	if candidate == nil {
		return false
	}
	if f.Gender != "" && candidate.Gender != f.Gender {
		return false
	}
	if f.Region != "" && candidate.Region != f.Region {
		return false
	}
	if f.Language != "" && candidate.Language != f.Language {
		return false
	}
	return true
}

// User is a chat participant. The identity is the stable integer assigned
// by the gateway; users are created on first contact and never destroyed.
type User struct {
	UserID      int64  `gorm:"primaryKey" json:"user_id"`
	Username    string `gorm:"index" json:"username"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Language    string `gorm:"default:en" json:"language"`
	Gender      string `json:"gender"`
	Region      string `json:"region"`
	Country     string `json:"country"`

	// Preferences is the saved default filter for advanced matching.
	Preferences MatchFilters `gorm:"embedded;embeddedPrefix:pref_" json:"matching_preferences"`

	IsPremium     bool       `json:"is_premium"`
	PremiumExpiry *time.Time `json:"premium_expiry,omitempty"`
	Blocked       bool       `json:"blocked"`
	IsOnline      bool       `gorm:"index" json:"is_online"`

	ReferredBy    int64 `json:"referred_by,omitempty"`
	ReferralCount int   `json:"referral_count"`

	// ProfilePhotos holds opaque gateway media handles, newest first.
	ProfilePhotos pq.StringArray `gorm:"type:text[]" json:"profile_photos"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileComplete reports whether the user may enter matchmaking.
func (u *User) ProfileComplete() bool {
	return u.Gender != "" && u.Region != "" && u.Country != ""
}

// PremiumActive reports whether the premium grant is live at the given
// instant. The is_premium flag can lag behind expiry until the next sweep,
// so callers deciding tier use this instead of the flag alone.
func (u *User) PremiumActive(now time.Time) bool {
	if !u.IsPremium {
		return false
	}
	return u.PremiumExpiry == nil || u.PremiumExpiry.After(now)
}
