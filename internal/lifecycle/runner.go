// Package lifecycle runs the background sweeps: premium expiry, queue
// matching, and binding reconciliation.
package lifecycle

import (
	"context"
	"log"
	"time"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/errs"
	"anonchat/backend/internal/models"
)

// Store is the slice of storage the sweeps need.
type Store interface {
	ExpiredPremiumUsers(ctx context.Context, now time.Time) ([]models.User, error)
	ClearPremium(ctx context.Context, userID int64) error
	QueueEntries(ctx context.Context) ([]models.QueueEntry, error)
	GetBinding(ctx context.Context, userID int64) (string, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	RemoveQueueEntry(ctx context.Context, userID int64) error
	OnlineUnboundUsers(ctx context.Context) ([]models.User, error)
	CleanupStaleBindings(ctx context.Context) (int64, error)
	DeleteRoomsClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sealer seals queue matches the same way the matchmaker does.
type Sealer interface {
	Seal(ctx context.Context, firstID, secondID int64) (*models.Room, error)
}

// Notifier tells users their premium lapsed.
type Notifier interface {
	NotifyPremiumExpired(ctx context.Context, user *models.User)
}

// Runner owns the three periodic sweeps. Each runs in its own goroutine
// after an initial delay, and a failing or panicking iteration never
// stops its loop.
type Runner struct {
	store    Store
	sealer   Sealer
	notifier Notifier

	expiryDelay       time.Duration
	expiryInterval    time.Duration
	queueDelay        time.Duration
	queueInterval     time.Duration
	reconcileDelay    time.Duration
	reconcileInterval time.Duration
}

// NewRunner builds a runner with the configured cadences.
func NewRunner(store Store, sealer Sealer, notifier Notifier) *Runner {
	return &Runner{
		store:    store,
		sealer:   sealer,
		notifier: notifier,

		expiryDelay:       config.ExpirySweepDelay,
		expiryInterval:    config.ExpirySweepInterval,
		queueDelay:        config.QueueScanDelay,
		queueInterval:     config.QueueScanInterval,
		reconcileDelay:    config.ReconcileDelay,
		reconcileInterval: config.ReconcileInterval,
	}
}

// Start launches the three loops. They stop when ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	go r.loop(ctx, "premium expiry", r.expiryDelay, r.expiryInterval, r.SweepExpired)
	go r.loop(ctx, "queue scan", r.queueDelay, r.queueInterval, r.ScanQueue)
	go r.loop(ctx, "reconciliation", r.reconcileDelay, r.reconcileInterval, r.Reconcile)
}

func (r *Runner) loop(ctx context.Context, name string, delay, interval time.Duration, sweep func(context.Context) error) {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		r.runOnce(ctx, name, interval, sweep)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, name string, budget time.Duration, sweep func(context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("ERROR: %s sweep panicked: %v", name, rec)
		}
	}()
	// One iteration never outlives its interval, so sweeps cannot pile up.
	sctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	if err := sweep(sctx); err != nil {
		log.Printf("ERROR: %s sweep failed: %v", name, err)
	}
}

// SweepExpired downgrades every user whose premium expiry has passed and
// notifies them. Each user is downgraded exactly once: the flag flip
// removes them from the next sweep's result.
func (r *Runner) SweepExpired(ctx context.Context) error {
	users, err := r.store.ExpiredPremiumUsers(ctx, time.Now())
	if err != nil {
		return err
	}
	downgraded := 0
	for i := range users {
		user := &users[i]
		if err := r.store.ClearPremium(ctx, user.UserID); err != nil {
			log.Printf("ERROR: Failed to downgrade user %d: %v", user.UserID, err)
			continue
		}
		downgraded++
		r.notifier.NotifyPremiumExpired(ctx, user)
	}
	if downgraded > 0 {
		log.Printf("INFO: Premium expired for %d users", downgraded)
	}
	return nil
}

// ScanQueue walks the premium queue: stale entries are evicted, live ones
// are matched against online unbound users and sealed exactly as a find
// would.
func (r *Runner) ScanQueue(ctx context.Context) error {
	entries, err := r.store.QueueEntries(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	candidates, err := r.store.OnlineUnboundUsers(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	sealed := make(map[int64]bool)
	for i := range entries {
		entry := &entries[i]
		if sealed[entry.UserID] {
			continue
		}

		evict, err := r.shouldEvict(ctx, entry, now)
		if err != nil {
			log.Printf("ERROR: Queue scan failed for user %d: %v", entry.UserID, err)
			continue
		}
		if evict {
			if err := r.store.RemoveQueueEntry(ctx, entry.UserID); err != nil {
				log.Printf("ERROR: Failed to evict queue entry for user %d: %v", entry.UserID, err)
			} else {
				log.Printf("INFO: Evicted stale queue entry for user %d", entry.UserID)
			}
			continue
		}

		for j := range candidates {
			candidate := &candidates[j]
			if candidate.UserID == entry.UserID || sealed[candidate.UserID] {
				continue
			}
			if candidate.Blocked || !entry.Filters.SatisfiedBy(candidate) {
				continue
			}

			_, err := r.sealer.Seal(ctx, entry.UserID, candidate.UserID)
			if errs.IsConflict(err) {
				// One of the two got bound since the snapshot; the next
				// sweep sees fresh state.
				break
			}
			if err != nil {
				log.Printf("ERROR: Queue scan could not seal %d with %d: %v", entry.UserID, candidate.UserID, err)
				break
			}
			sealed[entry.UserID] = true
			sealed[candidate.UserID] = true
			break
		}
	}
	return nil
}

// shouldEvict reports whether a queue entry no longer belongs in the
// queue: its owner is bound, gone, blocked, or lapsed from premium.
func (r *Runner) shouldEvict(ctx context.Context, entry *models.QueueEntry, now time.Time) (bool, error) {
	roomID, err := r.store.GetBinding(ctx, entry.UserID)
	if err != nil {
		return false, err
	}
	if roomID != "" {
		return true, nil
	}

	owner, err := r.store.GetUser(ctx, entry.UserID)
	if errs.IsNotFound(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if owner.Blocked || !owner.PremiumActive(now) {
		return true, nil
	}
	return false, nil
}

// Reconcile deletes bindings whose room is missing or closed, and
// garbage-collects rooms that have been closed past the retention period.
// Chat logs are kept.
func (r *Runner) Reconcile(ctx context.Context) error {
	bindings, err := r.store.CleanupStaleBindings(ctx)
	if err != nil {
		return err
	}
	rooms, err := r.store.DeleteRoomsClosedBefore(ctx, time.Now().Add(-config.RoomRetention))
	if err != nil {
		return err
	}
	if bindings > 0 || rooms > 0 {
		log.Printf("INFO: Reconciliation removed %d stale bindings and %d old rooms", bindings, rooms)
	}
	return nil
}
