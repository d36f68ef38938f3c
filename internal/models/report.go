package models

import "time"

// Report is a user complaint about their current partner, filed from
// inside a room. The chat history is snapshotted into the report so it
// survives room garbage collection.
type Report struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	RoomID     string `gorm:"index" json:"room_id"`
	ReporterID int64  `json:"reporter_id"`
	ReportedID int64  `gorm:"index" json:"reported_id"`
	// ChatHistory is the JSON-encoded room log at filing time.
	ChatHistory string    `gorm:"type:text" json:"chat_history"`
	Reviewed    bool      `gorm:"index" json:"reviewed"`
	CreatedAt   time.Time `json:"created_at"`
}

// BlockedWord is a forbidden substring. Words are stored case-folded and
// matched case-insensitively against message text.
type BlockedWord struct {
	Word      string    `gorm:"primaryKey" json:"word"`
	CreatedAt time.Time `json:"created_at"`
}
