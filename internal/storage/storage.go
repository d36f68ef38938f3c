// Package storage is the persistence layer: PostgreSQL (via GORM) for the
// durable collections and Redis for the moderation feed and the hot-path
// blocked-user cache.
package storage

import (
	"context"
	"time"

	"anonchat/backend/internal/errs"
	"anonchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// DistEntry is one bucket of a distribution aggregate.
type DistEntry struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Stats is the aggregate snapshot served to admins and the ops API.
type Stats struct {
	Users             int64       `json:"users"`
	PremiumUsers      int64       `json:"premium_users"`
	BlockedUsers      int64       `json:"blocked_users"`
	OnlineUsers       int64       `json:"online_users"`
	Rooms             int64       `json:"rooms"`
	ActiveRooms       int64       `json:"active_rooms"`
	QueueSize         int64       `json:"queue_size"`
	Reports           int64       `json:"reports"`
	UnreviewedReports int64       `json:"unreviewed_reports"`
	BlockedWords      int64       `json:"blocked_words"`
	LanguageDist      []DistEntry `json:"language_distribution"`
	GenderDist        []DistEntry `json:"gender_distribution"`
	RegionDist        []DistEntry `json:"region_distribution"`
}

// Storage is the full persistence contract. Components that need only a
// slice of it declare their own narrow interface; *Service satisfies all
// of them.
type Storage interface {
	// Users
	EnsureUser(ctx context.Context, userID int64) (*models.User, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	UpdateUserFields(ctx context.Context, userID int64, fields map[string]interface{}) error
	AllUserIDs(ctx context.Context) ([]int64, error)
	MarkAllUsersOffline(ctx context.Context) (int64, error)
	SetUserOnline(ctx context.Context, userID int64, online bool) error
	OnlineUnboundUsers(ctx context.Context) ([]models.User, error)
	ExpiredPremiumUsers(ctx context.Context, now time.Time) ([]models.User, error)
	ApplyReferral(ctx context.Context, newUserID, referrerID int64) (bool, time.Time, error)
	GrantPremium(ctx context.Context, userID int64, days int) (time.Time, error)
	ClearPremium(ctx context.Context, userID int64) error
	TopReferrers(ctx context.Context, limit int) ([]models.User, error)

	// Rooms and bindings
	CreateRoomWithBindings(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	CloseRoom(ctx context.Context, roomID string) error
	DeleteRoomsClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetBinding(ctx context.Context, userID int64) (string, error)
	DeleteBinding(ctx context.Context, userID int64) error
	AllBindings(ctx context.Context) ([]models.UserRoomBinding, error)
	CleanupStaleBindings(ctx context.Context) (int64, error)

	// Premium queue
	UpsertQueueEntry(ctx context.Context, entry *models.QueueEntry) error
	GetQueueEntry(ctx context.Context, userID int64) (*models.QueueEntry, error)
	RemoveQueueEntry(ctx context.Context, userID int64) error
	QueueEntries(ctx context.Context) ([]models.QueueEntry, error)
	ScanQueueForMatch(ctx context.Context, candidate *models.User) (*models.QueueEntry, error)

	// Chat logs and reports
	AppendChatLog(ctx context.Context, entry *models.ChatLog) error
	GetChatHistory(ctx context.Context, roomID string) ([]models.ChatLog, error)
	SaveReport(ctx context.Context, report *models.Report) error
	CountRecentReports(ctx context.Context, reportedID int64, since time.Time) (int64, error)

	// Blocked words and blocked users
	AddBlockedWord(ctx context.Context, word string) error
	RemoveBlockedWord(ctx context.Context, word string) error
	BlockedWords(ctx context.Context) ([]string, error)
	IsUserBlocked(ctx context.Context, userID int64) (bool, error)
	SetUserBlocked(ctx context.Context, userID int64, blocked bool) error

	// Aggregates and exports
	GetStats(ctx context.Context) (*Stats, error)
	ExportCollection(ctx context.Context, kind string) ([]byte, int, error)

	// Moderation feed
	PublishMirrorEvent(ctx context.Context, ev models.MirrorEvent) error
	SubscribeMirrorEvents(ctx context.Context) *redis.PubSub
}

// Service implements Storage over GORM and go-redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewService constructs the storage service.
func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{DB: db, Redis: rdb}
}

// Migrate creates or updates every table this service owns.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.UserRoomBinding{},
		&models.QueueEntry{},
		&models.ChatLog{},
		&models.Report{},
		&models.BlockedWord{},
	)
}

// dbErr wraps a database failure as a transient soft failure for callers
// that branch on the error taxonomy.
func dbErr(op string, err error) error {
	return &errs.Transient{Msg: op, Cause: err}
}
