// Package reports handles user reports: recording them with a chat
// snapshot, mirroring them to the moderators, and flagging repeat
// offenders.
package reports

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/models"
)

// Store is the slice of storage the report service needs.
type Store interface {
	SaveReport(ctx context.Context, report *models.Report) error
	GetChatHistory(ctx context.Context, roomID string) ([]models.ChatLog, error)
	CountRecentReports(ctx context.Context, reportedID int64, since time.Time) (int64, error)
}

// RoomResolver resolves the reporter's current partner.
type RoomResolver interface {
	Partner(ctx context.Context, userID int64) (*models.User, *models.Room, error)
}

// Notifier delivers report notices to the moderator channel.
type Notifier interface {
	MirrorReport(ctx context.Context, reporter, reported *models.User, room *models.Room, report *models.Report)
	FlagRepeatOffender(ctx context.Context, reported *models.User, count int64)
}

// Service files reports against the reporter's current partner.
type Service struct {
	store    Store
	rooms    RoomResolver
	notifier Notifier
}

// NewService builds a report service.
func NewService(store Store, rooms RoomResolver, notifier Notifier) *Service {
	return &Service{store: store, rooms: rooms, notifier: notifier}
}

// File records a report against the reporter's partner, snapshotting the
// room's chat history so moderators can review it after the room is gone.
// A reporter without a room gets the room manager's NotFound.
func (s *Service) File(ctx context.Context, reporter *models.User) (*models.Report, error) {
	reported, room, err := s.rooms.Partner(ctx, reporter.UserID)
	if err != nil {
		return nil, err
	}

	history, err := s.store.GetChatHistory(ctx, room.RoomID)
	if err != nil {
		return nil, err
	}
	snapshot, err := json.Marshal(history)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		RoomID:      room.RoomID,
		ReporterID:  reporter.UserID,
		ReportedID:  reported.UserID,
		ChatHistory: string(snapshot),
	}
	if err := s.store.SaveReport(ctx, report); err != nil {
		return nil, err
	}
	log.Printf("INFO: User %d reported user %d in room %s", reporter.UserID, reported.UserID, room.RoomID)
	s.notifier.MirrorReport(ctx, reporter, reported, room, report)

	s.triage(ctx, reported)
	return report, nil
}

// triage flags a user the first time they cross the report threshold
// inside the window. Blocking stays a moderator decision.
func (s *Service) triage(ctx context.Context, reported *models.User) {
	since := time.Now().Add(-config.FlagWindow)
	count, err := s.store.CountRecentReports(ctx, reported.UserID, since)
	if err != nil {
		log.Printf("WARN: Report triage for user %d failed: %v", reported.UserID, err)
		return
	}
	if count == config.FlagThreshold {
		log.Printf("WARN: User %d reached %d reports in %s", reported.UserID, count, config.FlagWindow)
		s.notifier.FlagRepeatOffender(ctx, reported, count)
	}
}
