package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/errs"
	"anonchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirrorChannel is the Redis Pub/Sub channel carrying moderation feed events.
const MirrorChannel = "moderation:feed"

func blockedKey(userID int64) string {
	return fmt.Sprintf("blocked:%d", userID)
}

// AppendChatLog records one relayed message for a room.
func (s *Service) AppendChatLog(ctx context.Context, entry *models.ChatLog) error {
	if err := s.DB.WithContext(ctx).Create(entry).Error; err != nil {
		log.Printf("ERROR: Failed to append chat log for room %s: %v", entry.RoomID, err)
		return dbErr("append chat log", err)
	}
	return nil
}

// GetChatHistory returns a room's log in send order.
func (s *Service) GetChatHistory(ctx context.Context, roomID string) ([]models.ChatLog, error) {
	var logs []models.ChatLog
	err := s.DB.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at asc, id asc").
		Find(&logs).Error
	if err != nil {
		log.Printf("ERROR: Failed to get chat history for room %s: %v", roomID, err)
		return nil, dbErr("get chat history", err)
	}
	return logs, nil
}

// SaveReport stores a user report together with its chat snapshot.
func (s *Service) SaveReport(ctx context.Context, report *models.Report) error {
	if err := s.DB.WithContext(ctx).Create(report).Error; err != nil {
		log.Printf("ERROR: Failed to save report against user %d: %v", report.ReportedID, err)
		return dbErr("save report", err)
	}
	return nil
}

// CountRecentReports counts reports filed against a user since the cutoff.
func (s *Service) CountRecentReports(ctx context.Context, reportedID int64, since time.Time) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).
		Model(&models.Report{}).
		Where("reported_id = ? AND created_at >= ?", reportedID, since).
		Count(&count).Error
	if err != nil {
		log.Printf("ERROR: Failed to count reports against user %d: %v", reportedID, err)
		return 0, dbErr("count reports", err)
	}
	return count, nil
}

// AddBlockedWord adds a word to the relay filter. Words are stored
// case-folded; re-adding an existing word is a no-op.
func (s *Service) AddBlockedWord(ctx context.Context, word string) error {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return &errs.Validation{Msg: "blocked word must not be empty"}
	}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.BlockedWord{Word: word}).Error
	if err != nil {
		log.Printf("ERROR: Failed to add blocked word %q: %v", word, err)
		return dbErr("add blocked word", err)
	}
	return nil
}

// RemoveBlockedWord removes a word from the relay filter.
func (s *Service) RemoveBlockedWord(ctx context.Context, word string) error {
	word = strings.ToLower(strings.TrimSpace(word))
	err := s.DB.WithContext(ctx).
		Where("word = ?", word).
		Delete(&models.BlockedWord{}).Error
	if err != nil {
		log.Printf("ERROR: Failed to remove blocked word %q: %v", word, err)
		return dbErr("remove blocked word", err)
	}
	return nil
}

// BlockedWords lists every filtered word.
func (s *Service) BlockedWords(ctx context.Context) ([]string, error) {
	var words []string
	err := s.DB.WithContext(ctx).
		Model(&models.BlockedWord{}).
		Order("word asc").
		Pluck("word", &words).Error
	if err != nil {
		log.Printf("ERROR: Failed to list blocked words: %v", err)
		return nil, dbErr("list blocked words", err)
	}
	return words, nil
}

// IsUserBlocked answers the per-message block check. Redis caches the
// answer so the relay hot path stays off the database; cache faults fall
// back to the user row.
func (s *Service) IsUserBlocked(ctx context.Context, userID int64) (bool, error) {
	key := blockedKey(userID)
	cached, err := s.Redis.Get(ctx, key).Result()
	if err == nil {
		return cached == "1", nil
	}
	if !errors.Is(err, redis.Nil) {
		log.Printf("WARN: Blocked-user cache read failed for user %d: %v", userID, err)
	}

	var user models.User
	err = s.DB.WithContext(ctx).Select("blocked").Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to read blocked flag for user %d: %v", userID, err)
		return false, dbErr("read blocked flag", err)
	}

	value := "0"
	if user.Blocked {
		value = "1"
	}
	if err := s.Redis.Set(ctx, key, value, config.BlockedCacheTTL).Err(); err != nil {
		log.Printf("WARN: Blocked-user cache write failed for user %d: %v", userID, err)
	}
	return user.Blocked, nil
}

// SetUserBlocked updates the block flag and refreshes the cache entry so
// the relay sees the change immediately.
func (s *Service) SetUserBlocked(ctx context.Context, userID int64, blocked bool) error {
	err := s.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("user_id = ?", userID).
		Update("blocked", blocked).Error
	if err != nil {
		log.Printf("ERROR: Failed to set blocked=%v for user %d: %v", blocked, userID, err)
		return dbErr("set blocked flag", err)
	}
	value := "0"
	if blocked {
		value = "1"
	}
	if err := s.Redis.Set(ctx, blockedKey(userID), value, config.BlockedCacheTTL).Err(); err != nil {
		log.Printf("WARN: Blocked-user cache refresh failed for user %d: %v", userID, err)
	}
	return nil
}

// GetStats aggregates the counters shown by /stats and the ops API.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	db := s.DB.WithContext(ctx)
	stats := &Stats{}

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.Users, db.Model(&models.User{})},
		{&stats.PremiumUsers, db.Model(&models.User{}).Where("is_premium = ?", true)},
		{&stats.BlockedUsers, db.Model(&models.User{}).Where("blocked = ?", true)},
		{&stats.OnlineUsers, db.Model(&models.User{}).Where("is_online = ?", true)},
		{&stats.Rooms, db.Model(&models.Room{})},
		{&stats.ActiveRooms, db.Model(&models.Room{}).Where("active = ?", true)},
		{&stats.QueueSize, db.Model(&models.QueueEntry{})},
		{&stats.Reports, db.Model(&models.Report{})},
		{&stats.UnreviewedReports, db.Model(&models.Report{}).Where("reviewed = ?", false)},
		{&stats.BlockedWords, db.Model(&models.BlockedWord{})},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			log.Printf("ERROR: Failed to aggregate stats: %v", err)
			return nil, dbErr("aggregate stats", err)
		}
	}

	var err error
	if stats.LanguageDist, err = s.distribution(ctx, "language"); err != nil {
		return nil, err
	}
	if stats.GenderDist, err = s.distribution(ctx, "gender"); err != nil {
		return nil, err
	}
	if stats.RegionDist, err = s.distribution(ctx, "region"); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Service) distribution(ctx context.Context, column string) ([]DistEntry, error) {
	var entries []DistEntry
	err := s.DB.WithContext(ctx).
		Model(&models.User{}).
		Select(column+" as value, count(*) as count").
		Where(column+" <> ''").
		Group(column).
		Order("count desc").
		Scan(&entries).Error
	if err != nil {
		log.Printf("ERROR: Failed to aggregate %s distribution: %v", column, err)
		return nil, dbErr("aggregate "+column+" distribution", err)
	}
	return entries, nil
}

// ExportCollection serializes one collection as indented JSON for the
// /export admin command. The count lets the caller caption the document.
func (s *Service) ExportCollection(ctx context.Context, name string) ([]byte, int, error) {
	db := s.DB.WithContext(ctx)
	var (
		data interface{}
		size int
	)
	switch name {
	case "users":
		var users []models.User
		if err := db.Find(&users).Error; err != nil {
			return nil, 0, dbErr("export users", err)
		}
		data, size = users, len(users)
	case "rooms":
		var rooms []models.Room
		if err := db.Find(&rooms).Error; err != nil {
			return nil, 0, dbErr("export rooms", err)
		}
		data, size = rooms, len(rooms)
	case "reports":
		var reports []models.Report
		if err := db.Find(&reports).Error; err != nil {
			return nil, 0, dbErr("export reports", err)
		}
		data, size = reports, len(reports)
	case "blocked":
		var words []models.BlockedWord
		if err := db.Find(&words).Error; err != nil {
			return nil, 0, dbErr("export blocked words", err)
		}
		data, size = words, len(words)
	default:
		return nil, 0, &errs.Validation{Msg: "unknown collection: " + name}
	}

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, 0, dbErr("marshal export", err)
	}
	return payload, size, nil
}

// PublishMirrorEvent pushes one moderation feed event into Redis Pub/Sub.
// Feed delivery is best effort; a down Redis must not stall the relay.
func (s *Service) PublishMirrorEvent(ctx context.Context, event models.MirrorEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal mirror event: %w", err)
	}
	if err := s.Redis.Publish(ctx, MirrorChannel, payload).Err(); err != nil {
		log.Printf("WARN: Failed to publish mirror event for room %s: %v", event.RoomID, err)
		return &errs.Transient{Msg: "publish mirror event", Cause: err}
	}
	return nil
}

// SubscribeMirrorEvents subscribes to the moderation feed channel. The
// caller owns the returned subscription and must Close it.
func (s *Service) SubscribeMirrorEvents(ctx context.Context) *redis.PubSub {
	return s.Redis.Subscribe(ctx, MirrorChannel)
}
