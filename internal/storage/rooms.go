package storage

import (
	"context"
	"errors"
	"log"
	"time"

	"anonchat/backend/internal/errs"
	"anonchat/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateRoomWithBindings seals a match: the room row and both binding rows
// are written in one transaction. A duplicate binding key means another
// matchmaker sealed one of the two users first; the transaction rolls
// back and the caller gets a Conflict.
func (s *Service) CreateRoomWithBindings(ctx context.Context, room *models.Room) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		bindings := []models.UserRoomBinding{
			{UserID: room.User1ID, RoomID: room.RoomID},
			{UserID: room.User2ID, RoomID: room.RoomID},
		}
		return tx.Create(&bindings).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &errs.Conflict{Msg: "user already bound to a room"}
	}
	if err != nil {
		log.Printf("ERROR: Failed to create room %s: %v", room.RoomID, err)
		return dbErr("create room", err)
	}
	return nil
}

// GetRoom loads a room by its identifier.
func (s *Service) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := s.DB.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &errs.NotFound{What: "room"}
	}
	if err != nil {
		log.Printf("ERROR: Failed to get room %s: %v", roomID, err)
		return nil, dbErr("get room", err)
	}
	return &room, nil
}

// CloseRoom marks a room inactive and stamps its end time. The row is kept
// for history exports until the reconciler deletes it.
func (s *Service) CloseRoom(ctx context.Context, roomID string) error {
	now := time.Now()
	err := s.DB.WithContext(ctx).
		Model(&models.Room{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"active":   false,
			"ended_at": now,
		}).Error
	if err != nil {
		log.Printf("ERROR: Failed to close room %s: %v", roomID, err)
		return dbErr("close room", err)
	}
	return nil
}

// DeleteRoomsClosedBefore garbage-collects rooms that ended before the
// cutoff. Chat logs are retained.
func (s *Service) DeleteRoomsClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.DB.WithContext(ctx).
		Where("active = ?", false).
		Where("ended_at IS NOT NULL AND ended_at < ?", cutoff).
		Delete(&models.Room{})
	if result.Error != nil {
		log.Printf("ERROR: Failed to delete closed rooms: %v", result.Error)
		return 0, dbErr("delete closed rooms", result.Error)
	}
	return result.RowsAffected, nil
}

// GetBinding returns the room a user is bound to, or "" when unbound.
func (s *Service) GetBinding(ctx context.Context, userID int64) (string, error) {
	var binding models.UserRoomBinding
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&binding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to get binding for user %d: %v", userID, err)
		return "", dbErr("get binding", err)
	}
	return binding.RoomID, nil
}

// DeleteBinding removes a user's binding. Deleting an absent binding is a
// no-op, which is what makes `end` idempotent.
func (s *Service) DeleteBinding(ctx context.Context, userID int64) error {
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.UserRoomBinding{}).Error
	if err != nil {
		log.Printf("ERROR: Failed to delete binding for user %d: %v", userID, err)
		return dbErr("delete binding", err)
	}
	return nil
}

// AllBindings lists every user→room binding.
func (s *Service) AllBindings(ctx context.Context) ([]models.UserRoomBinding, error) {
	var bindings []models.UserRoomBinding
	if err := s.DB.WithContext(ctx).Find(&bindings).Error; err != nil {
		log.Printf("ERROR: Failed to list bindings: %v", err)
		return nil, dbErr("list bindings", err)
	}
	return bindings, nil
}

// CleanupStaleBindings deletes bindings whose room is missing or closed.
// Runs at startup and from the reconciliation sweep.
func (s *Service) CleanupStaleBindings(ctx context.Context) (int64, error) {
	result := s.DB.WithContext(ctx).Exec(
		`DELETE FROM user_room_bindings
		 WHERE room_id NOT IN (SELECT room_id FROM rooms WHERE active = ?)`, true)
	if result.Error != nil {
		log.Printf("ERROR: Failed to clean up stale bindings: %v", result.Error)
		return 0, dbErr("cleanup stale bindings", result.Error)
	}
	return result.RowsAffected, nil
}

// UpsertQueueEntry inserts or refreshes a premium queue entry.
func (s *Service) UpsertQueueEntry(ctx context.Context, entry *models.QueueEntry) error {
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(entry).Error
	if err != nil {
		log.Printf("ERROR: Failed to upsert queue entry for user %d: %v", entry.UserID, err)
		return dbErr("upsert queue entry", err)
	}
	return nil
}

// GetQueueEntry returns the user's queue entry, or nil when not queued.
func (s *Service) GetQueueEntry(ctx context.Context, userID int64) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to get queue entry for user %d: %v", userID, err)
		return nil, dbErr("get queue entry", err)
	}
	return &entry, nil
}

// RemoveQueueEntry deletes the user's queue entry, if any.
func (s *Service) RemoveQueueEntry(ctx context.Context, userID int64) error {
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.QueueEntry{}).Error
	if err != nil {
		log.Printf("ERROR: Failed to remove queue entry for user %d: %v", userID, err)
		return dbErr("remove queue entry", err)
	}
	return nil
}

// QueueEntries lists the queue oldest-first, the natural scan order.
func (s *Service) QueueEntries(ctx context.Context) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	if err := s.DB.WithContext(ctx).Order("added_at asc").Find(&entries).Error; err != nil {
		log.Printf("ERROR: Failed to list queue entries: %v", err)
		return nil, dbErr("list queue entries", err)
	}
	return entries, nil
}

// ScanQueueForMatch returns the oldest queue entry whose saved filters are
// satisfied by the candidate's attributes, or nil when none fits. The
// candidate itself is excluded.
func (s *Service) ScanQueueForMatch(ctx context.Context, candidate *models.User) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := s.DB.WithContext(ctx).
		Where("user_id <> ?", candidate.UserID).
		Where("(filter_gender = '' OR filter_gender = ?)", candidate.Gender).
		Where("(filter_region = '' OR filter_region = ?)", candidate.Region).
		Where("(filter_language = '' OR filter_language = ?)", candidate.Language).
		Order("added_at asc").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to scan queue for user %d: %v", candidate.UserID, err)
		return nil, dbErr("scan queue", err)
	}
	return &entry, nil
}
