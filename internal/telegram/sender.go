package telegram

import (
	"context"
	"fmt"
	"log"
	"time"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Publisher is the slice of storage the sender needs: the moderation feed
// plus the online flag it clears when a delivery bounces.
type Publisher interface {
	PublishMirrorEvent(ctx context.Context, ev models.MirrorEvent) error
	SetUserOnline(ctx context.Context, userID int64, online bool) error
}

// Sender owns every outbound Telegram message: localized user notices,
// verbatim relay copies, the moderator-group mirror and broadcasts. It is
// the delivery side of the room manager, relay, report and lifecycle
// services.
type Sender struct {
	BotAPI       *tgbotapi.BotAPI
	Localizer    *localization.Localizer
	publisher    Publisher
	adminID      int64
	adminGroupID int64
}

// NewSender builds the outbound gateway surface.
func NewSender(bot *tgbotapi.BotAPI, loc *localization.Localizer, pub Publisher, adminID, adminGroupID int64) *Sender {
	return &Sender{
		BotAPI:       bot,
		Localizer:    loc,
		publisher:    pub,
		adminID:      adminID,
		adminGroupID: adminGroupID,
	}
}

// send delivers to a user chat. A failed delivery clears the online flag
// so the queue sweeper stops proposing the user.
func (s *Sender) send(ctx context.Context, chatID int64, c tgbotapi.Chattable) error {
	if _, err := s.BotAPI.Send(c); err != nil {
		log.Printf("WARN: Delivery to %d failed: %v", chatID, err)
		s.markOffline(ctx, chatID)
		return err
	}
	return nil
}

// sendToGroup delivers to the moderator group; failures are logged only.
func (s *Sender) sendToGroup(c tgbotapi.Chattable) {
	if _, err := s.BotAPI.Send(c); err != nil {
		log.Printf("ERROR: Moderator group delivery failed: %v", err)
	}
}

func (s *Sender) markOffline(ctx context.Context, userID int64) {
	if err := s.publisher.SetUserOnline(ctx, userID, false); err != nil {
		log.Printf("WARN: Could not mark user %d offline: %v", userID, err)
	}
}

func (s *Sender) publish(ctx context.Context, ev models.MirrorEvent) {
	ev.Timestamp = time.Now().UTC()
	if err := s.publisher.PublishMirrorEvent(ctx, ev); err != nil {
		log.Printf("WARN: Mirror event dropped: %v", err)
	}
}

// Text sends a plain message to a chat.
func (s *Sender) Text(ctx context.Context, chatID int64, text string) error {
	return s.send(ctx, chatID, tgbotapi.NewMessage(chatID, text))
}

// TextMarkup sends a message with an inline keyboard.
func (s *Sender) TextMarkup(ctx context.Context, chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	return s.send(ctx, chatID, msg)
}

// Markdown sends a Markdown-formatted message.
func (s *Sender) Markdown(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return s.send(ctx, chatID, msg)
}

// Notice sends a localized one-liner to a user, keyed by locale key.
func (s *Sender) Notice(ctx context.Context, user *models.User, prefix, key string) {
	text := s.Localizer.Get(user.Language, key)
	if prefix != "" {
		text = prefix + " " + text
	}
	_ = s.Text(ctx, user.UserID, text)
}

// Probe sends a typing action to verify the user has not blocked the bot.
func (s *Sender) Probe(userID int64) error {
	action := tgbotapi.NewChatAction(userID, tgbotapi.ChatTyping)
	_, err := s.BotAPI.Request(action)
	return err
}

// Document uploads in-memory bytes as a named file.
func (s *Sender) Document(ctx context.Context, chatID int64, name string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	return s.send(ctx, chatID, doc)
}

// Copy delivers an existing message verbatim to another chat.
func (s *Sender) Copy(ctx context.Context, chatID, fromChatID int64, messageID int) error {
	return s.send(ctx, chatID, tgbotapi.NewCopyMessage(chatID, fromChatID, messageID))
}

// Photos sends up to limit profile photo handles to a chat, best effort.
func (s *Sender) Photos(chatID int64, photos []string, limit int) {
	if len(photos) > limit {
		photos = photos[:limit]
	}
	for _, fileID := range photos {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
		if _, err := s.BotAPI.Send(photo); err != nil {
			log.Printf("WARN: Could not send profile photo to %d: %v", chatID, err)
		}
	}
}

// sendTyped rebuilds a typed media send from a logged content type and
// file handle. Stickers and video notes cannot carry captions, so the
// caption follows as a separate message.
func (s *Sender) sendTyped(chatID int64, contentType, fileID, caption string) error {
	var c tgbotapi.Chattable
	captionSeparately := false

	switch contentType {
	case models.ContentPhoto:
		cfg := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
		cfg.Caption = caption
		c = cfg
	case models.ContentVideo:
		cfg := tgbotapi.NewVideo(chatID, tgbotapi.FileID(fileID))
		cfg.Caption = caption
		c = cfg
	case models.ContentAnimation:
		cfg := tgbotapi.NewAnimation(chatID, tgbotapi.FileID(fileID))
		cfg.Caption = caption
		c = cfg
	case models.ContentAudio:
		cfg := tgbotapi.NewAudio(chatID, tgbotapi.FileID(fileID))
		cfg.Caption = caption
		c = cfg
	case models.ContentVoice:
		cfg := tgbotapi.NewVoice(chatID, tgbotapi.FileID(fileID))
		cfg.Caption = caption
		c = cfg
	case models.ContentDocument:
		cfg := tgbotapi.NewDocument(chatID, tgbotapi.FileID(fileID))
		cfg.Caption = caption
		c = cfg
	case models.ContentSticker:
		c = tgbotapi.NewSticker(chatID, tgbotapi.FileID(fileID))
		captionSeparately = caption != ""
	case models.ContentVideoNote:
		c = tgbotapi.NewVideoNote(chatID, 0, tgbotapi.FileID(fileID))
		captionSeparately = caption != ""
	default:
		c = tgbotapi.NewMessage(chatID, caption)
	}

	if _, err := s.BotAPI.Send(c); err != nil {
		return err
	}
	if captionSeparately {
		if _, err := s.BotAPI.Send(tgbotapi.NewMessage(chatID, caption)); err != nil {
			return err
		}
	}
	return nil
}

// --- room manager notices ---

// NotifyMatch tells both participants a room was sealed and mirrors the
// pairing to the moderator group. Admin-side notices are skipped for
// rooms the admin opened against a user.
func (s *Sender) NotifyMatch(ctx context.Context, room *models.Room, first, second *models.User) {
	adminRoom := room.AdminPair && (first.UserID == s.adminID || second.UserID == s.adminID)

	for _, u := range []*models.User{first, second} {
		if adminRoom && u.UserID == s.adminID {
			continue
		}
		s.Notice(ctx, u, "🎉", "match_found")
	}

	if adminRoom {
		// The admin sealed this one personally; no group meta needed.
		return
	}

	header := "🆕 New Room Created"
	if room.AdminPair {
		header = "🔗 Admin Linked Users"
	}
	meta := fmt.Sprintf("%s\nRoomID: %s\n👤 User1:\n%s\n👤 User2:\n%s",
		header, room.RoomID, userMetaLines(first), userMetaLines(second))
	s.sendToGroup(tgbotapi.NewMessage(s.adminGroupID, meta))
	for _, u := range []*models.User{first, second} {
		s.Photos(s.adminGroupID, u.ProfilePhotos, config.MirrorPhotosLimit)
	}

	s.publish(ctx, models.MirrorEvent{
		Kind:       models.MirrorMatch,
		RoomID:     room.RoomID,
		SenderID:   first.UserID,
		ReceiverID: second.UserID,
	})
}

// NotifyPartnerLeft tells a user their partner ended the chat.
func (s *Sender) NotifyPartnerLeft(ctx context.Context, user *models.User) {
	s.Notice(ctx, user, "💔", "partner_left")
}

// NotifyPremiumExpired tells a user their premium grant lapsed.
func (s *Sender) NotifyPremiumExpired(ctx context.Context, user *models.User) {
	text := fmt.Sprintf("⏰ %s\n\n💎 %s",
		s.Localizer.Get(user.Language, "premium_expired"),
		s.Localizer.Get(user.Language, "premium_expired_info"))
	_ = s.Text(ctx, user.UserID, text)
}

// --- relay egress ---

// CopyToPartner relays the original message verbatim, without a forward
// header, so neither side learns the other's identity.
func (s *Sender) CopyToPartner(ctx context.Context, partner *models.User, msg *models.Inbound) error {
	cp := tgbotapi.NewCopyMessage(partner.UserID, msg.ChatID, msg.MessageID)
	if _, err := s.BotAPI.Send(cp); err != nil {
		s.markOffline(ctx, partner.UserID)
		return err
	}
	return nil
}

// NotInRoomHint tells a user their message went nowhere.
func (s *Sender) NotInRoomHint(ctx context.Context, user *models.User) {
	s.Notice(ctx, user, "", "not_in_room")
}

// WarnBlockedWord tells a user their message was dropped by the word list.
func (s *Sender) WarnBlockedWord(ctx context.Context, user *models.User) {
	s.Notice(ctx, user, "", "blocked_word")
}

// WarnForbidden warns about a dropped link or bot handle, with the
// running strike tally.
func (s *Sender) WarnForbidden(ctx context.Context, user *models.User, strikes int) {
	text := fmt.Sprintf("⚠️ %s (%d/%d)",
		s.Localizer.Get(user.Language, "policy_no_links"), strikes, config.MaxStrikes)
	_ = s.Text(ctx, user.UserID, text)
}

// AnnounceStrikeLimit tells a user they hit the strike ceiling.
func (s *Sender) AnnounceStrikeLimit(ctx context.Context, user *models.User) {
	s.Notice(ctx, user, "", "policy_blocked")
}

// EscalateSpam flags a strike-limit offender to the moderator group.
func (s *Sender) EscalateSpam(ctx context.Context, user *models.User) {
	text := fmt.Sprintf("#spam User %d (@%s) sent forbidden links or bot usernames %d times. Please consider blocking.",
		user.UserID, user.Username, config.MaxStrikes)
	s.sendToGroup(tgbotapi.NewMessage(s.adminGroupID, text))
	s.publish(ctx, models.MirrorEvent{
		Kind:     models.MirrorSpam,
		SenderID: user.UserID,
	})
}

// PartnerLeft tells a sender their copy bounced because the partner is
// gone.
func (s *Sender) PartnerLeft(ctx context.Context, user *models.User) {
	s.Notice(ctx, user, "💔", "partner_left")
}

// MirrorMessage mirrors one relayed message to the moderator group with
// the structured header, and feeds the live moderation stream.
func (s *Sender) MirrorMessage(ctx context.Context, room *models.Room, sender, partner *models.User, msg *models.Inbound) {
	header := mirrorHeader(room, sender, partner)
	s.mirrorTyped(header, msg)
	s.publish(ctx, models.MirrorEvent{
		Kind:        models.MirrorRelay,
		RoomID:      room.RoomID,
		SenderID:    sender.UserID,
		ReceiverID:  partner.UserID,
		ContentType: msg.ContentType,
		Text:        msg.Text,
	})
}

// MirrorStray mirrors a message sent outside any room.
func (s *Sender) MirrorStray(ctx context.Context, sender *models.User, msg *models.Inbound) {
	header := mirrorHeader(nil, sender, nil)
	s.mirrorTyped(header, msg)
	s.publish(ctx, models.MirrorEvent{
		Kind:        models.MirrorSystem,
		SenderID:    sender.UserID,
		ContentType: msg.ContentType,
		Text:        msg.Text,
	})
}

func (s *Sender) mirrorTyped(header string, msg *models.Inbound) {
	switch msg.ContentType {
	case models.ContentText:
		s.sendToGroup(tgbotapi.NewMessage(s.adminGroupID, fmt.Sprintf("%s\n💬 Message: %s", header, msg.Text)))
	case models.ContentUnknown:
		fwd := tgbotapi.NewForward(s.adminGroupID, msg.ChatID, msg.MessageID)
		if _, err := s.BotAPI.Send(fwd); err != nil {
			log.Printf("ERROR: Could not forward unknown message %d: %v", msg.MessageID, err)
		}
		s.sendToGroup(tgbotapi.NewMessage(s.adminGroupID, header+"\n[Above: unknown message type forwarded]"))
	default:
		caption := fmt.Sprintf("%s\n[%s]", header, contentLabel(msg.ContentType))
		if err := s.sendTyped(s.adminGroupID, msg.ContentType, msg.FileID, caption); err != nil {
			log.Printf("ERROR: Could not mirror %s message: %v", msg.ContentType, err)
		}
	}
}

// --- report notices ---

// MirrorReport posts a filed report to the moderator group with the
// snapshotted history attached as a document.
func (s *Sender) MirrorReport(ctx context.Context, reporter, reported *models.User, room *models.Room, report *models.Report) {
	text := fmt.Sprintf("User %d reported user %d in room %s.\nChat history attached.",
		reporter.UserID, reported.UserID, room.RoomID)
	s.sendToGroup(tgbotapi.NewMessage(s.adminGroupID, text))

	name := fmt.Sprintf("chat_history_%s.json", room.RoomID)
	doc := tgbotapi.NewDocument(s.adminGroupID, tgbotapi.FileBytes{Name: name, Bytes: []byte(report.ChatHistory)})
	doc.Caption = fmt.Sprintf("💬 Chat history for room %s", room.RoomID)
	s.sendToGroup(doc)

	s.publish(ctx, models.MirrorEvent{
		Kind:       models.MirrorReport,
		RoomID:     room.RoomID,
		SenderID:   reporter.UserID,
		ReceiverID: reported.UserID,
	})
}

// FlagRepeatOffender warns the moderator group about report pileups.
func (s *Sender) FlagRepeatOffender(ctx context.Context, reported *models.User, count int64) {
	text := fmt.Sprintf("⚠️ User %d (@%s) has received %d reports in the last 24h. Please review.",
		reported.UserID, reported.Username, count)
	s.sendToGroup(tgbotapi.NewMessage(s.adminGroupID, text))
	s.publish(ctx, models.MirrorEvent{
		Kind:     models.MirrorSystem,
		SenderID: reported.UserID,
	})
}

// --- moderator notices from the gateway ---

// MirrorNewUser announces a completed profile to the moderator group.
func (s *Sender) MirrorNewUser(ctx context.Context, user *models.User) {
	text := fmt.Sprintf("🆕 New User\nID: %d | Username: %s\nPhone: %s\nLanguage: %s\nGender: %s\nRegion: %s\nCountry: %s\nPremium: %t",
		user.UserID, usernameDisplay(user.Username), orNA(user.PhoneNumber),
		user.Language, user.Gender, user.Region, user.Country, user.IsPremium)
	s.sendToGroup(tgbotapi.NewMessage(s.adminGroupID, text))
	s.Photos(s.adminGroupID, user.ProfilePhotos, config.MaxProfilePhotos)
	s.publish(ctx, models.MirrorEvent{Kind: models.MirrorSystem, SenderID: user.UserID, Text: "new user"})
}

// MirrorProfileChange announces a username or photo-set change.
func (s *Sender) MirrorProfileChange(userID int64, oldUsername, newUsername string, oldPhotos int, photos []string) {
	text := fmt.Sprintf("🔔 User info changed for ID: %d\nOld username: %s\nNew username: %s\nOld photos: %d\nNew photos: %d",
		userID, usernameDisplay(oldUsername), usernameDisplay(newUsername), oldPhotos, len(photos))
	s.sendToGroup(tgbotapi.NewMessage(s.adminGroupID, text))
	s.Photos(s.adminGroupID, photos, config.MaxProfilePhotos)
}

// RequestProofReview tags a payment proof for moderator action.
func (s *Sender) RequestProofReview(user *models.User) {
	msg := tgbotapi.NewMessage(s.adminGroupID, fmt.Sprintf("#upgrade Payment proof from user %d", user.UserID))
	msg.ReplyMarkup = proofReviewKeyboard(user.UserID)
	s.sendToGroup(msg)
}

// --- broadcast ---

// BroadcastText sends a Markdown announcement to every id, paced so the
// gateway's rate limits hold. Returns delivered and failed counts.
func (s *Sender) BroadcastText(ctx context.Context, ids []int64, text string) (sent, failed int) {
	return s.broadcast(ctx, ids, func(chatID int64) error {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		_, err := s.BotAPI.Send(msg)
		return err
	})
}

// BroadcastCopy copies an existing message to every id, paced.
func (s *Sender) BroadcastCopy(ctx context.Context, ids []int64, fromChatID int64, messageID int) (sent, failed int) {
	return s.broadcast(ctx, ids, func(chatID int64) error {
		_, err := s.BotAPI.Send(tgbotapi.NewCopyMessage(chatID, fromChatID, messageID))
		return err
	})
}

func (s *Sender) broadcast(ctx context.Context, ids []int64, deliver func(int64) error) (sent, failed int) {
	for _, id := range ids {
		select {
		case <-ctx.Done():
			log.Printf("WARN: Broadcast aborted after %d sends: %v", sent+failed, ctx.Err())
			return sent, failed
		case <-time.After(config.BroadcastPause):
		}
		if err := deliver(id); err != nil {
			failed++
			s.markOffline(ctx, id)
			continue
		}
		sent++
	}
	return sent, failed
}

// --- formatting helpers ---

func usernameDisplay(username string) string {
	if username == "" {
		return "No username"
	}
	return "@" + username
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// userMetaLines renders the two-line attribute block used in room metas.
func userMetaLines(u *models.User) string {
	return fmt.Sprintf("ID: %d | Username: %s | Phone: %s\nLanguage: %s, Gender: %s, Region: %s, Premium: %t",
		u.UserID, usernameDisplay(u.Username), orNA(u.PhoneNumber),
		u.Language, u.Gender, u.Region, u.IsPremium)
}

// mirrorHeader renders the structured mirror header. A nil room marks a
// stray message sent outside any chat.
func mirrorHeader(room *models.Room, sender, receiver *models.User) string {
	roomLine := "📢 No active room"
	createdLine := "Room Created: N/A"
	if room != nil {
		roomLine = fmt.Sprintf("📢 Room #%s", room.RoomID)
		createdLine = fmt.Sprintf("Room Created: %s", room.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	}

	header := fmt.Sprintf("%s\n👤 Sender: %d (username: %s, phone: %s)",
		roomLine, sender.UserID, usernameDisplay(sender.Username), orNA(sender.PhoneNumber))
	if receiver != nil {
		header += fmt.Sprintf("\n👥 Receiver: %d (username: %s, phone: %s)",
			receiver.UserID, usernameDisplay(receiver.Username), orNA(receiver.PhoneNumber))
	}
	return header + "\n" + createdLine
}

func contentLabel(contentType string) string {
	switch contentType {
	case models.ContentPhoto:
		return "Photo message"
	case models.ContentVideo:
		return "Video message"
	case models.ContentVideoNote:
		return "Video Note (round video)"
	case models.ContentAudio:
		return "Audio message"
	case models.ContentVoice:
		return "Voice message"
	case models.ContentDocument:
		return "Document message"
	case models.ContentSticker:
		return "Sticker"
	case models.ContentAnimation:
		return "Animation message"
	default:
		return "Message"
	}
}
