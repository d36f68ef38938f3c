// Package rooms owns chat rooms and user↔room bindings: sealing matches,
// ending chats, and resolving partners.
package rooms

import (
	"context"
	"log"

	"anonchat/backend/internal/errs"
	"anonchat/backend/internal/models"

	"github.com/google/uuid"
)

// Store is the slice of storage the room manager needs.
type Store interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	CreateRoomWithBindings(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	CloseRoom(ctx context.Context, roomID string) error
	GetBinding(ctx context.Context, userID int64) (string, error)
	DeleteBinding(ctx context.Context, userID int64) error
	RemoveQueueEntry(ctx context.Context, userID int64) error
}

// Notifier delivers match and departure notices. Implementations log
// delivery failures themselves; a failed notice never unwinds the state
// change it announces.
type Notifier interface {
	NotifyMatch(ctx context.Context, room *models.Room, first, second *models.User)
	NotifyPartnerLeft(ctx context.Context, user *models.User)
}

// PoolRemover withdraws a user from the waiting pool. *match.Pool
// satisfies it.
type PoolRemover interface {
	Remove(userID int64) bool
}

// Manager seals and ends rooms.
type Manager struct {
	store    Store
	notifier Notifier
	pool     PoolRemover
}

// NewManager builds a room manager sharing the matchmaker's pool.
func NewManager(store Store, notifier Notifier, pool PoolRemover) *Manager {
	return &Manager{store: store, notifier: notifier, pool: pool}
}

// Seal atomically creates a room with both bindings, withdraws both users
// from the pool and the premium queue, and notifies both sides. A
// Conflict error means one of the users is already bound; no state
// changes in that case.
func (m *Manager) Seal(ctx context.Context, firstID, secondID int64) (*models.Room, error) {
	return m.seal(ctx, firstID, secondID, false)
}

// AdoptAdminRoom seals a privileged room between the admin and a user.
// The user side sees an ordinary match.
func (m *Manager) AdoptAdminRoom(ctx context.Context, adminID, userID int64) (*models.Room, error) {
	return m.seal(ctx, adminID, userID, true)
}

// LinkUsers seals a match between two users on admin request. Both sides
// see an ordinary match; the room is flagged so the moderator mirror can
// tell linked rooms from organic ones.
func (m *Manager) LinkUsers(ctx context.Context, firstID, secondID int64) (*models.Room, error) {
	return m.seal(ctx, firstID, secondID, true)
}

func (m *Manager) seal(ctx context.Context, firstID, secondID int64, adminPair bool) (*models.Room, error) {
	if firstID == secondID {
		return nil, &errs.Validation{Msg: "cannot pair a user with themselves"}
	}

	first, err := m.store.GetUser(ctx, firstID)
	if err != nil {
		return nil, err
	}
	second, err := m.store.GetUser(ctx, secondID)
	if err != nil {
		return nil, err
	}

	room := &models.Room{
		RoomID:    uuid.NewString(),
		User1ID:   firstID,
		User2ID:   secondID,
		Active:    true,
		AdminPair: adminPair,
	}
	if err := m.store.CreateRoomWithBindings(ctx, room); err != nil {
		return nil, err
	}

	// The pair is bound now; clear any leftover search state. The queue
	// sweep catches anything a transient failure leaves behind.
	m.pool.Remove(firstID)
	m.pool.Remove(secondID)
	if err := m.store.RemoveQueueEntry(ctx, firstID); err != nil {
		log.Printf("WARN: Sealed user %d still queued: %v", firstID, err)
	}
	if err := m.store.RemoveQueueEntry(ctx, secondID); err != nil {
		log.Printf("WARN: Sealed user %d still queued: %v", secondID, err)
	}

	log.Printf("INFO: Room %s sealed for users %d and %d", room.RoomID, firstID, secondID)
	m.notifier.NotifyMatch(ctx, room, first, second)
	return room, nil
}

// End closes the caller's room: both bindings go, the room is marked
// inactive, and the partner is notified. Returns the partner's id. A
// caller without a binding gets a NotFound.
func (m *Manager) End(ctx context.Context, callerID int64) (int64, error) {
	roomID, err := m.store.GetBinding(ctx, callerID)
	if err != nil {
		return 0, err
	}
	if roomID == "" {
		return 0, &errs.NotFound{What: "room"}
	}

	room, err := m.store.GetRoom(ctx, roomID)
	if errs.IsNotFound(err) {
		// Stale binding; repair it and report not-in-room.
		if derr := m.store.DeleteBinding(ctx, callerID); derr != nil {
			return 0, derr
		}
		return 0, &errs.NotFound{What: "room"}
	}
	if err != nil {
		return 0, err
	}

	partnerID := room.Other(callerID)
	if err := m.store.DeleteBinding(ctx, callerID); err != nil {
		return 0, err
	}
	if err := m.store.DeleteBinding(ctx, partnerID); err != nil {
		return 0, err
	}
	if err := m.store.CloseRoom(ctx, roomID); err != nil {
		return 0, err
	}
	log.Printf("INFO: Room %s ended by user %d", roomID, callerID)

	if partner, err := m.store.GetUser(ctx, partnerID); err == nil {
		m.notifier.NotifyPartnerLeft(ctx, partner)
	} else if !errs.IsNotFound(err) {
		log.Printf("WARN: Could not load partner %d for departure notice: %v", partnerID, err)
	}
	return partnerID, nil
}

// EndOneSided tears down only the caller's half of a room after a failed
// delivery to the partner. The room is closed so the reconciliation sweep
// removes the partner's stale binding.
func (m *Manager) EndOneSided(ctx context.Context, callerID int64, roomID string) error {
	if err := m.store.DeleteBinding(ctx, callerID); err != nil {
		return err
	}
	if err := m.store.CloseRoom(ctx, roomID); err != nil {
		return err
	}
	log.Printf("INFO: Room %s closed one-sided for user %d", roomID, callerID)
	return nil
}

// Partner resolves the caller's current partner and room. A missing or
// inactive room repairs the caller's binding and reports NotFound.
func (m *Manager) Partner(ctx context.Context, userID int64) (*models.User, *models.Room, error) {
	roomID, err := m.store.GetBinding(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if roomID == "" {
		return nil, nil, &errs.NotFound{What: "room"}
	}

	room, err := m.store.GetRoom(ctx, roomID)
	if errs.IsNotFound(err) || (err == nil && !room.Active) {
		if derr := m.store.DeleteBinding(ctx, userID); derr != nil {
			return nil, nil, derr
		}
		return nil, nil, &errs.NotFound{What: "room"}
	}
	if err != nil {
		return nil, nil, err
	}

	partner, err := m.store.GetUser(ctx, room.Other(userID))
	if err != nil {
		return nil, nil, err
	}
	return partner, room, nil
}
