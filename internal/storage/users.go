package storage

import (
	"context"
	"errors"
	"log"
	"time"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/errs"
	"anonchat/backend/internal/models"

	"gorm.io/gorm"
)

// EnsureUser returns the user, creating a bare record on first contact.
func (s *Service) EnsureUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	defaults := models.User{UserID: userID, Language: "en"}

	result := s.DB.WithContext(ctx).Where("user_id = ?", userID).FirstOrCreate(&user, defaults)
	if result.Error != nil {
		log.Printf("ERROR: Failed to ensure user %d: %v", userID, result.Error)
		return nil, dbErr("ensure user", result.Error)
	}
	if result.RowsAffected > 0 {
		log.Printf("INFO: New user %d saved on first contact.", userID)
	}
	return &user, nil
}

// GetUser loads a user by gateway identity.
func (s *Service) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &errs.NotFound{What: "user"}
	}
	if err != nil {
		log.Printf("ERROR: Failed to get user %d: %v", userID, err)
		return nil, dbErr("get user", err)
	}
	return &user, nil
}

// GetUserByUsername resolves a username case-insensitively, with or
// without a leading @.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if len(username) > 0 && username[0] == '@' {
		username = username[1:]
	}
	var user models.User
	err := s.DB.WithContext(ctx).
		Where("LOWER(username) = LOWER(?)", username).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &errs.NotFound{What: "user"}
	}
	if err != nil {
		log.Printf("ERROR: Failed to get user by username %q: %v", username, err)
		return nil, dbErr("get user by username", err)
	}
	return &user, nil
}

// SaveUser persists the full user record.
func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	if err := s.DB.WithContext(ctx).Save(user).Error; err != nil {
		log.Printf("ERROR: Failed to save user %d: %v", user.UserID, err)
		return dbErr("save user", err)
	}
	return nil
}

// UpdateUserFields applies a partial update to one user.
func (s *Service) UpdateUserFields(ctx context.Context, userID int64, fields map[string]interface{}) error {
	err := s.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("user_id = ?", userID).
		Updates(fields).Error
	if err != nil {
		log.Printf("ERROR: Failed to update user %d: %v", userID, err)
		return dbErr("update user", err)
	}
	return nil
}

// AllUserIDs lists every known user identity, for broadcasts.
func (s *Service) AllUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Pluck("user_id", &ids).Error; err != nil {
		log.Printf("ERROR: Failed to list user IDs: %v", err)
		return nil, dbErr("list user ids", err)
	}
	return ids, nil
}

// MarkAllUsersOffline resets the coarse online marker at startup.
func (s *Service) MarkAllUsersOffline(ctx context.Context) (int64, error) {
	result := s.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("is_online = ?", true).
		Update("is_online", false)
	if result.Error != nil {
		return 0, dbErr("mark users offline", result.Error)
	}
	return result.RowsAffected, nil
}

// SetUserOnline flips the coarse online marker for one user.
func (s *Service) SetUserOnline(ctx context.Context, userID int64, online bool) error {
	err := s.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("user_id = ?", userID).
		Update("is_online", online).Error
	if err != nil {
		return dbErr("set user online", err)
	}
	return nil
}

// OnlineUnboundUsers lists users eligible for a queue-sweep match: online,
// not blocked, and not bound to any room.
func (s *Service) OnlineUnboundUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	sub := s.DB.Model(&models.UserRoomBinding{}).Select("user_id")
	err := s.DB.WithContext(ctx).
		Where("is_online = ?", true).
		Where("blocked = ?", false).
		Where("user_id NOT IN (?)", sub).
		Find(&users).Error
	if err != nil {
		log.Printf("ERROR: Failed to list online unbound users: %v", err)
		return nil, dbErr("list online unbound users", err)
	}
	return users, nil
}

// ExpiredPremiumUsers lists users whose premium grant lapsed before now.
func (s *Service) ExpiredPremiumUsers(ctx context.Context, now time.Time) ([]models.User, error) {
	var users []models.User
	err := s.DB.WithContext(ctx).
		Where("is_premium = ?", true).
		Where("premium_expiry IS NOT NULL AND premium_expiry < ?", now).
		Find(&users).Error
	if err != nil {
		log.Printf("ERROR: Failed to list expired premium users: %v", err)
		return nil, dbErr("list expired premium users", err)
	}
	return users, nil
}

// ApplyReferral credits a referral exactly once: the new user gains a
// referred_by back-reference, the referrer gains one premium day extending
// from the later of now and their current expiry. Self-referrals, repeat
// referrals and unknown referrers are reported as not applied.
func (s *Service) ApplyReferral(ctx context.Context, newUserID, referrerID int64) (bool, time.Time, error) {
	if newUserID == referrerID {
		return false, time.Time{}, nil
	}

	var newExpiry time.Time
	applied := false

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var newUser models.User
		if err := tx.Where("user_id = ?", newUserID).First(&newUser).Error; err != nil {
			return err
		}
		if newUser.ReferredBy != 0 {
			return nil
		}

		var referrer models.User
		err := tx.Where("user_id = ?", referrerID).First(&referrer).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		now := time.Now()
		base := now
		if referrer.PremiumActive(now) && referrer.PremiumExpiry != nil && referrer.PremiumExpiry.After(now) {
			base = *referrer.PremiumExpiry
		}
		newExpiry = base.Add(time.Duration(config.ReferralRewardDays) * 24 * time.Hour)

		if err := tx.Model(&models.User{}).Where("user_id = ?", newUserID).
			Update("referred_by", referrerID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("user_id = ?", referrerID).
			Updates(map[string]interface{}{
				"is_premium":     true,
				"premium_expiry": newExpiry,
				"referral_count": gorm.Expr("referral_count + 1"),
			}).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		log.Printf("ERROR: Failed to apply referral %d -> %d: %v", referrerID, newUserID, err)
		return false, time.Time{}, dbErr("apply referral", err)
	}
	return applied, newExpiry, nil
}

// GrantPremium sets a premium grant for the given number of days from now
// and returns the resulting expiry.
func (s *Service) GrantPremium(ctx context.Context, userID int64, days int) (time.Time, error) {
	expiry := time.Now().Add(time.Duration(days) * 24 * time.Hour)
	err := s.UpdateUserFields(ctx, userID, map[string]interface{}{
		"is_premium":     true,
		"premium_expiry": expiry,
	})
	if err != nil {
		return time.Time{}, err
	}
	return expiry, nil
}

// ClearPremium downgrades a user to the free tier.
func (s *Service) ClearPremium(ctx context.Context, userID int64) error {
	return s.UpdateUserFields(ctx, userID, map[string]interface{}{
		"is_premium":     false,
		"premium_expiry": nil,
	})
}

// TopReferrers lists the most successful referrers, busiest first.
func (s *Service) TopReferrers(ctx context.Context, limit int) ([]models.User, error) {
	var users []models.User
	err := s.DB.WithContext(ctx).
		Where("referral_count > 0").
		Order("referral_count desc").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		log.Printf("ERROR: Failed to list top referrers: %v", err)
		return nil, dbErr("list top referrers", err)
	}
	return users, nil
}
