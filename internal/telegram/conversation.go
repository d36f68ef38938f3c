package telegram

import (
	"sync"

	"anonchat/backend/internal/models"
)

// Conversation states. State is volatile on purpose: a restart simply
// drops half-finished flows and the user starts the command again.
const stateAwaitProof = "await_proof"

type conversationState struct {
	mu     sync.Mutex
	states map[int64]string
	drafts map[int64]*models.MatchFilters
}

func newConversationState() *conversationState {
	return &conversationState{
		states: make(map[int64]string),
		drafts: make(map[int64]*models.MatchFilters),
	}
}

func (c *conversationState) set(userID int64, state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[userID] = state
}

func (c *conversationState) get(userID int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[userID]
}

func (c *conversationState) clear(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, userID)
}

// draft returns the filter draft under edit, seeding it from the saved
// filters the first time the menu opens.
func (c *conversationState) draft(userID int64, saved models.MatchFilters) *models.MatchFilters {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.drafts[userID]; ok {
		return d
	}
	d := saved
	c.drafts[userID] = &d
	return &d
}

func (c *conversationState) clearDraft(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.drafts, userID)
}
