package models

import "time"

// Inbound is the gateway-neutral envelope for a user message entering the
// relay. ChatID and MessageID identify the original so it can be copied
// verbatim; FileID carries the opaque media handle when present.
type Inbound struct {
	SenderID    int64  `json:"sender_id"`
	ChatID      int64  `json:"chat_id"`
	MessageID   int    `json:"message_id"`
	ContentType string `json:"content_type"`
	// Text is the message body, or the caption for media messages.
	Text   string `json:"text"`
	FileID string `json:"file_id,omitempty"`
}

// Mirror-event kinds published to the moderation feed.
const (
	MirrorRelay  = "relay"
	MirrorSpam   = "spam"
	MirrorMatch  = "match"
	MirrorReport = "report"
	MirrorSystem = "system"
)

// MirrorEvent is one moderation-feed record: every relayed message, spam
// escalation, sealed match and filed report produces one. The same payload
// feeds the moderator group mirror and the live WebSocket feed.
type MirrorEvent struct {
	Kind        string    `json:"kind"`
	RoomID      string    `json:"room_id,omitempty"`
	SenderID    int64     `json:"sender_id,omitempty"`
	ReceiverID  int64     `json:"receiver_id,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Text        string    `json:"text,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
