package match

import (
	"math/rand"
	"sync"
)

// Pool is the in-memory set of free-tier users waiting for any partner.
// Membership is volatile: a restart empties it and waiting users simply
// search again. The slice+index layout keeps add, remove and random
// selection O(1).
type Pool struct {
	mu    sync.Mutex
	index map[int64]int
	order []int64
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{index: make(map[int64]int)}
}

// Add inserts a user. Adding a present member is a no-op.
func (p *Pool) Add(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.index[userID]; ok {
		return
	}
	p.index[userID] = len(p.order)
	p.order = append(p.order, userID)
}

// Remove takes a user out and reports whether they were present.
func (p *Pool) Remove(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remove(userID)
}

func (p *Pool) remove(userID int64) bool {
	pos, ok := p.index[userID]
	if !ok {
		return false
	}
	last := len(p.order) - 1
	moved := p.order[last]
	p.order[pos] = moved
	p.index[moved] = pos
	p.order = p.order[:last]
	delete(p.index, userID)
	return true
}

// Contains reports membership.
func (p *Pool) Contains(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.index[userID]
	return ok
}

// Len returns the member count.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// Members returns a snapshot of the member set. Callers iterate the
// snapshot and must re-check membership before claiming anyone.
func (p *Pool) Members() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	snapshot := make([]int64, len(p.order))
	copy(snapshot, p.order)
	return snapshot
}

// TakeRandomExcluding removes and returns a uniform-random member other
// than exclude. Returns false when no eligible member exists.
func (p *Pool) TakeRandomExcluding(exclude int64) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.order)
	if n == 0 {
		return 0, false
	}

	_, excluded := p.index[exclude]
	if excluded && n == 1 {
		return 0, false
	}

	var pick int64
	if excluded {
		// Draw from n-1 positions, mapping a hit on the excluded slot
		// to the last one. Each eligible member keeps probability 1/(n-1).
		i := rand.Intn(n - 1)
		if p.order[i] == exclude {
			i = n - 1
		}
		pick = p.order[i]
	} else {
		pick = p.order[rand.Intn(n)]
	}
	p.remove(pick)
	return pick, true
}
