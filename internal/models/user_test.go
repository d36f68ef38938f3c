package models_test

import (
	"reflect"
	"testing"
	"time"

	"anonchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

// TestMatchFiltersSatisfiedBy covers the filter-equality semantics: every
// non-empty key must equal the candidate's attribute; empty keys match any.
func TestMatchFiltersSatisfiedBy(t *testing.T) {
	candidate := &models.User{
		UserID:   101,
		Gender:   "female",
		Region:   "Asia",
		Language: "id",
	}

	tests := []struct {
		name    string
		filters models.MatchFilters
		want    bool
	}{
		{"empty filters match anyone", models.MatchFilters{}, true},
		{"single key hit", models.MatchFilters{Gender: "female"}, true},
		{"single key miss", models.MatchFilters{Gender: "male"}, false},
		{"all keys hit", models.MatchFilters{Gender: "female", Region: "Asia", Language: "id"}, true},
		{"one key miss among hits", models.MatchFilters{Gender: "female", Region: "Europe"}, false},
		{"language only", models.MatchFilters{Language: "id"}, true},
		{"language miss", models.MatchFilters{Language: "ar"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filters.SatisfiedBy(candidate))
		})
	}
}

func TestMatchFiltersSatisfiedBy_NilCandidate(t *testing.T) {
	f := models.MatchFilters{}
	assert.False(t, f.SatisfiedBy(nil), "nil candidate never satisfies")
}

func TestMatchFiltersIsEmpty(t *testing.T) {
	assert.True(t, models.MatchFilters{}.IsEmpty())
	assert.False(t, models.MatchFilters{Region: "Asia"}.IsEmpty())
}

// TestProfileComplete verifies the matchmaking gate: gender, region and
// country must all be present.
func TestProfileComplete(t *testing.T) {
	tests := []struct {
		name string
		user models.User
		want bool
	}{
		{"complete", models.User{Gender: "male", Region: "Europe", Country: "Turkey"}, true},
		{"missing gender", models.User{Region: "Europe", Country: "Turkey"}, false},
		{"missing region", models.User{Gender: "male", Country: "Turkey"}, false},
		{"missing country", models.User{Gender: "male", Region: "Europe"}, false},
		{"empty profile", models.User{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.ProfileComplete())
		})
	}
}

func TestPremiumActive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name string
		user models.User
		want bool
	}{
		{"not premium", models.User{}, false},
		{"premium without expiry", models.User{IsPremium: true}, true},
		{"premium with future expiry", models.User{IsPremium: true, PremiumExpiry: &future}, true},
		{"premium past expiry before sweep", models.User{IsPremium: true, PremiumExpiry: &past}, false},
		{"expiry set but flag cleared", models.User{PremiumExpiry: &future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.PremiumActive(now))
		})
	}
}

func TestRoomOther(t *testing.T) {
	room := &models.Room{RoomID: "r1", User1ID: 10, User2ID: 20}

	assert.Equal(t, int64(20), room.Other(10))
	assert.Equal(t, int64(10), room.Other(20))
	assert.Equal(t, int64(0), room.Other(30), "stranger has no partner")
	assert.True(t, room.Has(10))
	assert.False(t, room.Has(30))
}

// TestUserStructTags catches accidental tag removal during refactoring:
// the primary key, the unique binding key and the photo array type are
// load-bearing for the store.
func TestUserStructTags(t *testing.T) {
	userType := reflect.TypeOf(models.User{})

	idField, found := userType.FieldByName("UserID")
	assert.True(t, found, "UserID field should exist")
	assert.Contains(t, idField.Tag.Get("gorm"), "primaryKey")

	photosField, found := userType.FieldByName("ProfilePhotos")
	assert.True(t, found, "ProfilePhotos field should exist")
	assert.Contains(t, photosField.Tag.Get("gorm"), "type:text[]")

	bindingType := reflect.TypeOf(models.UserRoomBinding{})
	bindField, found := bindingType.FieldByName("UserID")
	assert.True(t, found, "binding UserID field should exist")
	assert.Contains(t, bindField.Tag.Get("gorm"), "primaryKey", "binding uniqueness rides on the primary key")

	queueType := reflect.TypeOf(models.QueueEntry{})
	queueField, found := queueType.FieldByName("UserID")
	assert.True(t, found)
	assert.Contains(t, queueField.Tag.Get("gorm"), "primaryKey")
}

func TestCatalogValidators(t *testing.T) {
	assert.True(t, models.ValidLanguage("en"))
	assert.True(t, models.ValidLanguage("id"))
	assert.False(t, models.ValidLanguage("fr"))

	assert.True(t, models.ValidGender("female"))
	assert.False(t, models.ValidGender("other"))

	assert.True(t, models.ValidRegion("North America"))
	assert.False(t, models.ValidRegion("Atlantis"))

	assert.True(t, models.ValidCountry("Indonesia"))
	assert.False(t, models.ValidCountry("Mordor"))
}
