package models

import "time"

// Content types recorded in the chat log and used to rebuild typed sends.
const (
	ContentText      = "text"
	ContentPhoto     = "photo"
	ContentVideo     = "video"
	ContentVoice     = "voice"
	ContentVideoNote = "video_note"
	ContentSticker   = "sticker"
	ContentAnimation = "animation"
	ContentAudio     = "audio"
	ContentDocument  = "document"
	ContentUnknown   = "unknown"
)

// ChatLog is one append-only record per successfully relayed inbound
// message. Within a room, record order equals the order of successful
// inbound handles.
type ChatLog struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// RoomID is the room the message belongs to.
	RoomID string `gorm:"type:uuid;not null;index" json:"room_id"`
	// SenderID is the gateway identity of the author.
	SenderID int64 `gorm:"not null;index" json:"sender_id"`
	// ContentType is one of the Content* constants.
	ContentType string `gorm:"type:text;not null" json:"content_type"`
	// Text holds the message body, or the caption for media messages.
	Text      string    `gorm:"type:text" json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
