package models

import "time"

// QueueEntry is a durable waiting-list record for a premium user whose
// filtered search found no candidate. At most one entry per user; mutually
// exclusive with pool membership and room bindings.
type QueueEntry struct {
	UserID int64 `gorm:"primaryKey" json:"user_id"`
	// Filters is the snapshot taken when the search was queued; later edits
	// to the user's saved preferences do not retroactively change it.
	Filters MatchFilters `gorm:"embedded;embeddedPrefix:filter_" json:"filters"`
	AddedAt time.Time    `gorm:"index" json:"added_at"`
}
