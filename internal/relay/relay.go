// Package relay carries messages between the two sides of a room: filter,
// log, copy to partner, mirror to moderators.
package relay

import (
	"context"
	"log"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/errs"
	"anonchat/backend/internal/filter"
	"anonchat/backend/internal/models"
)

// Disposition reports what happened to one inbound message.
type Disposition int

const (
	Delivered Disposition = iota
	NotInRoom
	DroppedWord
	DroppedLink
	PartnerGone
)

func (d Disposition) String() string {
	switch d {
	case Delivered:
		return "delivered"
	case NotInRoom:
		return "not_in_room"
	case DroppedWord:
		return "dropped_word"
	case DroppedLink:
		return "dropped_link"
	case PartnerGone:
		return "partner_gone"
	default:
		return "unknown"
	}
}

// RoomResolver is the slice of the room manager the relay needs.
type RoomResolver interface {
	Partner(ctx context.Context, userID int64) (*models.User, *models.Room, error)
	EndOneSided(ctx context.Context, callerID int64, roomID string) error
}

// Store persists the chat log.
type Store interface {
	AppendChatLog(ctx context.Context, entry *models.ChatLog) error
}

// Checker classifies message text. *filter.Filter satisfies it.
type Checker interface {
	Check(ctx context.Context, text string) filter.Result
}

// Egress is every outbound effect the relay can cause. The gateway sender
// implements it; only CopyToPartner reports failure, because a failed
// copy changes room state. All other sends are fire and forget.
type Egress interface {
	CopyToPartner(ctx context.Context, partner *models.User, msg *models.Inbound) error
	NotInRoomHint(ctx context.Context, user *models.User)
	WarnBlockedWord(ctx context.Context, user *models.User)
	WarnForbidden(ctx context.Context, user *models.User, strikes int)
	AnnounceStrikeLimit(ctx context.Context, user *models.User)
	EscalateSpam(ctx context.Context, user *models.User)
	PartnerLeft(ctx context.Context, user *models.User)
	MirrorMessage(ctx context.Context, room *models.Room, sender, partner *models.User, msg *models.Inbound)
	MirrorStray(ctx context.Context, sender *models.User, msg *models.Inbound)
}

// Relay wires the message pipeline together.
type Relay struct {
	roomMgr RoomResolver
	store   Store
	filter  Checker
	strikes *filter.Strikes
	egress  Egress
}

// New builds a relay.
func New(roomMgr RoomResolver, store Store, checker Checker, strikes *filter.Strikes, egress Egress) *Relay {
	return &Relay{
		roomMgr: roomMgr,
		store:   store,
		filter:  checker,
		strikes: strikes,
		egress:  egress,
	}
}

// Handle runs one inbound message through the pipeline. The returned
// disposition is meaningful only when err is nil; a non-nil error is a
// store failure the caller reports as transient.
func (r *Relay) Handle(ctx context.Context, sender *models.User, msg *models.Inbound) (Disposition, error) {
	partner, room, err := r.roomMgr.Partner(ctx, sender.UserID)
	if errs.IsNotFound(err) {
		// Strays still reach the moderators so abuse outside rooms is
		// visible.
		r.egress.NotInRoomHint(ctx, sender)
		r.egress.MirrorStray(ctx, sender, msg)
		return NotInRoom, nil
	}
	if err != nil {
		return NotInRoom, err
	}

	verdict := r.filter.Check(ctx, msg.Text)
	switch verdict.Verdict {
	case filter.BlockedWord:
		log.Printf("INFO: Dropped message from user %d in room %s: blocked word", sender.UserID, room.RoomID)
		r.egress.WarnBlockedWord(ctx, sender)
		return DroppedWord, nil
	case filter.Forbidden:
		count := r.strikes.Strike(sender.UserID)
		log.Printf("WARN: User %d sent forbidden link %q in room %s (strike %d)", sender.UserID, verdict.Match, room.RoomID, count)
		switch {
		case count < config.MaxStrikes:
			r.egress.WarnForbidden(ctx, sender, count)
		case count == config.MaxStrikes:
			r.egress.EscalateSpam(ctx, sender)
			r.egress.AnnounceStrikeLimit(ctx, sender)
		default:
			r.egress.AnnounceStrikeLimit(ctx, sender)
		}
		return DroppedLink, nil
	}

	entry := &models.ChatLog{
		RoomID:      room.RoomID,
		SenderID:    sender.UserID,
		ContentType: msg.ContentType,
		Text:        msg.Text,
	}
	if err := r.store.AppendChatLog(ctx, entry); err != nil {
		return Delivered, err
	}

	if err := r.egress.CopyToPartner(ctx, partner, msg); err != nil {
		log.Printf("WARN: Delivery to user %d failed, closing room %s: %v", partner.UserID, room.RoomID, err)
		if terr := r.roomMgr.EndOneSided(ctx, sender.UserID, room.RoomID); terr != nil {
			log.Printf("ERROR: Failed to tear down room %s after lost partner: %v", room.RoomID, terr)
		}
		r.egress.PartnerLeft(ctx, sender)
		return PartnerGone, nil
	}

	// Mirroring is independent of delivery; its failures stay inside the
	// sender.
	r.egress.MirrorMessage(ctx, room, sender, partner, msg)
	return Delivered, nil
}
