package models

import "time"

// Room is a 1-on-1 chat session between two users. The pair is unordered;
// User1/User2 only reflect creation order.
type Room struct {
	// RoomID is the opaque unique identifier for the room (UUID).
	RoomID string `gorm:"primaryKey" json:"room_id"`
	// User1ID and User2ID are the two participants. Disjoint by construction.
	User1ID int64 `gorm:"index" json:"user1_id"`
	User2ID int64 `gorm:"index" json:"user2_id"`
	// Active is true while the session is live. Closed rooms are retained
	// for history exports and deleted later by the reconciler.
	Active bool `gorm:"index" json:"active"`
	// AdminPair marks rooms created through the privileged admin surface.
	AdminPair bool `json:"admin_pair"`

	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Has reports whether the user participates in the room.
func (r *Room) Has(userID int64) bool {
	return r.User1ID == userID || r.User2ID == userID
}

// Other returns the partner of the given participant, or 0 when the user
// is not in the room.
func (r *Room) Other(userID int64) int64 {
	switch userID {
	case r.User1ID:
		return r.User2ID
	case r.User2ID:
		return r.User1ID
	}
	return 0
}

// UserRoomBinding is the durable user→room mapping. The primary key on
// UserID is what makes seal-match races detectable: the second writer hits
// a duplicate-key error and aborts.
type UserRoomBinding struct {
	UserID    int64     `gorm:"primaryKey" json:"user_id"`
	RoomID    string    `gorm:"index" json:"room_id"`
	CreatedAt time.Time `json:"created_at"`
}
