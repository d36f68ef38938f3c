// Package match pairs searching users: an in-memory pool for free-tier
// searches and a durable queue for filtered premium searches.
package match

import (
	"context"
	"log"
	"time"

	"anonchat/backend/internal/errs"
	"anonchat/backend/internal/models"
)

// Outcome reports what a find attempt did.
type Outcome int

const (
	Matched Outcome = iota
	Searching
	Queued
	AlreadyInRoom
	AlreadySearching
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Searching:
		return "searching"
	case Queued:
		return "queued"
	case AlreadyInRoom:
		return "already_in_room"
	case AlreadySearching:
		return "already_searching"
	default:
		return "unknown"
	}
}

// FindResult carries the outcome plus the sealed room and partner when a
// match happened.
type FindResult struct {
	Outcome   Outcome
	RoomID    string
	PartnerID int64
}

// Store is the slice of storage the matchmaker needs.
type Store interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	GetBinding(ctx context.Context, userID int64) (string, error)
	GetQueueEntry(ctx context.Context, userID int64) (*models.QueueEntry, error)
	UpsertQueueEntry(ctx context.Context, entry *models.QueueEntry) error
	RemoveQueueEntry(ctx context.Context, userID int64) error
	ScanQueueForMatch(ctx context.Context, candidate *models.User) (*models.QueueEntry, error)
}

// Sealer atomically turns a pair of users into a room with two bindings.
// It returns a Conflict error when either user is already bound.
type Sealer interface {
	Seal(ctx context.Context, firstID, secondID int64) (*models.Room, error)
}

// Matchmaker implements the find/cancel search flow.
type Matchmaker struct {
	store  Store
	sealer Sealer
	pool   *Pool
}

// New builds a matchmaker. The pool is passed in because the room manager
// shares it to evict sealed users.
func New(store Store, sealer Sealer, pool *Pool) *Matchmaker {
	return &Matchmaker{store: store, sealer: sealer, pool: pool}
}

// Pool exposes the shared waiting pool.
func (m *Matchmaker) Pool() *Pool {
	return m.pool
}

// Find runs one search attempt for the user. Every tier is first checked
// against the premium queue, so a free searcher can complete a queued
// filtered search; after that premium users with filters scan the pool
// and queue up on a miss, while everyone else takes a random pool partner
// or starts waiting.
func (m *Matchmaker) Find(ctx context.Context, userID int64) (*FindResult, error) {
	user, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.ProfileComplete() {
		return nil, &errs.Validation{Msg: "profile incomplete"}
	}

	roomID, err := m.store.GetBinding(ctx, userID)
	if err != nil {
		return nil, err
	}
	if roomID != "" {
		return &FindResult{Outcome: AlreadyInRoom, RoomID: roomID}, nil
	}

	if m.pool.Contains(userID) {
		return &FindResult{Outcome: AlreadySearching}, nil
	}
	queued, err := m.store.GetQueueEntry(ctx, userID)
	if err != nil {
		return nil, err
	}
	if queued != nil {
		return &FindResult{Outcome: AlreadySearching}, nil
	}

	if res, err := m.matchFromQueue(ctx, user); res != nil || err != nil {
		return res, err
	}

	if user.PremiumActive(time.Now()) && !user.Preferences.IsEmpty() {
		if res, err := m.matchFromPoolFiltered(ctx, user); res != nil || err != nil {
			return res, err
		}
		entry := &models.QueueEntry{UserID: userID, Filters: user.Preferences, AddedAt: time.Now()}
		if err := m.store.UpsertQueueEntry(ctx, entry); err != nil {
			return nil, err
		}
		log.Printf("INFO: User %d queued with filters", userID)
		return &FindResult{Outcome: Queued}, nil
	}

	if res, err := m.matchFromPoolRandom(ctx, user); res != nil || err != nil {
		return res, err
	}
	m.pool.Add(userID)
	log.Printf("INFO: User %d searching in pool", userID)
	return &FindResult{Outcome: Searching}, nil
}

// CancelSearch removes the user from the pool and the queue. It reports
// whether a search was actually cancelled, so callers can tell "stopped"
// apart from "was not searching". Safe to call repeatedly.
func (m *Matchmaker) CancelSearch(ctx context.Context, userID int64) (bool, error) {
	cancelled := m.pool.Remove(userID)

	entry, err := m.store.GetQueueEntry(ctx, userID)
	if err != nil {
		return cancelled, err
	}
	if entry != nil {
		if err := m.store.RemoveQueueEntry(ctx, userID); err != nil {
			return cancelled, err
		}
		cancelled = true
	}
	if cancelled {
		log.Printf("INFO: User %d stopped searching", userID)
	}
	return cancelled, nil
}

// matchFromQueue tries to complete a queued filtered search with this
// user as the candidate. Stale entries found along the way are evicted.
func (m *Matchmaker) matchFromQueue(ctx context.Context, user *models.User) (*FindResult, error) {
	for {
		entry, err := m.store.ScanQueueForMatch(ctx, user)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, nil
		}

		partner, err := m.store.GetUser(ctx, entry.UserID)
		if errs.IsNotFound(err) || (err == nil && partner.Blocked) {
			if err := m.store.RemoveQueueEntry(ctx, entry.UserID); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		room, err := m.sealer.Seal(ctx, user.UserID, entry.UserID)
		if errs.IsConflict(err) {
			res, cerr := m.afterConflict(ctx, user.UserID)
			if cerr != nil {
				return nil, cerr
			}
			if res != nil {
				return res, nil
			}
			// The queued user got bound elsewhere; their entry is stale.
			if err := m.store.RemoveQueueEntry(ctx, entry.UserID); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		// Seal withdrew the partner's queue entry along with the bindings.
		return &FindResult{Outcome: Matched, RoomID: room.RoomID, PartnerID: entry.UserID}, nil
	}
}

// matchFromPoolFiltered scans a pool snapshot for the first candidate
// satisfying the searcher's filters. Candidates are claimed by removal
// before sealing, so two filtered searches cannot seal the same partner.
func (m *Matchmaker) matchFromPoolFiltered(ctx context.Context, user *models.User) (*FindResult, error) {
	for _, candidateID := range m.pool.Members() {
		if candidateID == user.UserID {
			continue
		}
		candidate, err := m.store.GetUser(ctx, candidateID)
		if errs.IsNotFound(err) {
			m.pool.Remove(candidateID)
			continue
		}
		if err != nil {
			return nil, err
		}
		if candidate.Blocked {
			m.pool.Remove(candidateID)
			continue
		}
		if !user.Preferences.SatisfiedBy(candidate) {
			continue
		}
		if !m.pool.Remove(candidateID) {
			// Claimed by a concurrent search since the snapshot.
			continue
		}

		room, err := m.sealer.Seal(ctx, user.UserID, candidateID)
		if errs.IsConflict(err) {
			res, cerr := m.afterConflict(ctx, user.UserID)
			if cerr != nil {
				return nil, cerr
			}
			if res != nil {
				return res, nil
			}
			continue
		}
		if err != nil {
			m.pool.Add(candidateID)
			return nil, err
		}
		return &FindResult{Outcome: Matched, RoomID: room.RoomID, PartnerID: candidateID}, nil
	}
	return nil, nil
}

// matchFromPoolRandom takes uniform-random partners until a seal lands or
// the pool is exhausted.
func (m *Matchmaker) matchFromPoolRandom(ctx context.Context, user *models.User) (*FindResult, error) {
	for {
		partnerID, ok := m.pool.TakeRandomExcluding(user.UserID)
		if !ok {
			return nil, nil
		}

		room, err := m.sealer.Seal(ctx, user.UserID, partnerID)
		if errs.IsConflict(err) {
			res, cerr := m.afterConflict(ctx, user.UserID)
			if cerr != nil {
				return nil, cerr
			}
			if res != nil {
				return res, nil
			}
			continue
		}
		if err != nil {
			m.pool.Add(partnerID)
			return nil, err
		}
		return &FindResult{Outcome: Matched, RoomID: room.RoomID, PartnerID: partnerID}, nil
	}
}

// afterConflict tells whose binding lost the race. If the searcher is now
// bound, someone sealed them concurrently and the search is over; nil
// means the partner was taken and the search should move on.
func (m *Matchmaker) afterConflict(ctx context.Context, userID int64) (*FindResult, error) {
	roomID, err := m.store.GetBinding(ctx, userID)
	if err != nil {
		return nil, err
	}
	if roomID != "" {
		return &FindResult{Outcome: AlreadyInRoom, RoomID: roomID}, nil
	}
	return nil, nil
}
