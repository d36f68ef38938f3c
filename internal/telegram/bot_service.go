// Package telegram is the gateway: it consumes the long-polling update
// stream, routes commands and callbacks, and hands chat traffic to the
// relay. All outbound delivery goes through the Sender.
package telegram

import (
	"context"
	"log"
	"strings"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/errs"
	"anonchat/backend/internal/filter"
	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/match"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/relay"
	"anonchat/backend/internal/reports"
	"anonchat/backend/internal/rooms"
	"anonchat/backend/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/lib/pq"
)

// BotService receives Telegram updates and routes them to the matchmaker,
// room manager, relay and report services.
type BotService struct {
	BotAPI     *tgbotapi.BotAPI
	Config     *config.Config
	Storage    storage.Storage
	Localizer  *localization.Localizer
	Sender     *Sender
	Matchmaker *match.Matchmaker
	Rooms      *rooms.Manager
	Relay      *relay.Relay
	Reports    *reports.Service
	Filter     *filter.Filter
	Strikes    *filter.Strikes

	conv *conversationState
}

// NewBotService wires the gateway over an authorized bot client.
func NewBotService(
	bot *tgbotapi.BotAPI,
	cfg *config.Config,
	store storage.Storage,
	loc *localization.Localizer,
	sender *Sender,
	matchmaker *match.Matchmaker,
	roomMgr *rooms.Manager,
	rel *relay.Relay,
	reps *reports.Service,
	filt *filter.Filter,
	strikes *filter.Strikes,
) *BotService {
	return &BotService{
		BotAPI:     bot,
		Config:     cfg,
		Storage:    store,
		Localizer:  loc,
		Sender:     sender,
		Matchmaker: matchmaker,
		Rooms:      roomMgr,
		Relay:      rel,
		Reports:    reps,
		Filter:     filt,
		Strikes:    strikes,
		conv:       newConversationState(),
	}
}

// Run is the main loop for receiving Telegram updates. It returns when
// ctx is cancelled and the update channel drains.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		s.BotAPI.StopReceivingUpdates()
	}()

	for update := range updates {
		s.dispatch(ctx, update)
	}
	log.Println("INFO: Update stream closed, gateway stopped.")
}

// dispatch routes one update. A panicking handler must not take down the
// polling loop, so each update is fenced.
func (s *BotService) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Recovered from update handler panic: %v", r)
		}
	}()

	switch {
	case update.Message != nil:
		s.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		s.handleCallback(ctx, update.CallbackQuery)
	}
}

func (s *BotService) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}

	// Group chats only carry admin commands; everything else there is
	// ignored so relayed mirrors do not loop back through the gateway.
	if msg.Chat.ID != msg.From.ID {
		if msg.IsCommand() {
			s.handleGroupCommand(ctx, msg)
		}
		return
	}

	user, isNew, err := s.ensureUser(ctx, msg.From)
	if err != nil {
		log.Printf("ERROR: Could not load user %d: %v", msg.From.ID, err)
		return
	}

	if msg.IsCommand() {
		s.handleCommand(ctx, user, isNew, msg)
		return
	}

	if s.isBlocked(ctx, user) {
		s.Sender.Notice(ctx, user, "🚫", "account_blocked")
		return
	}

	if s.conv.get(user.UserID) == stateAwaitProof {
		s.handleProofSubmission(ctx, user, msg)
		return
	}

	inbound := extractInbound(msg)
	if _, err := s.Relay.Handle(ctx, user, inbound); err != nil {
		if errs.IsPartnerGone(err) || errs.IsNotFound(err) {
			return
		}
		log.Printf("ERROR: Relay failed for user %d: %v", user.UserID, err)
		s.Sender.Notice(ctx, user, "", "chat_error")
	}
}

// isBlocked consults the cached block flag on the per-message hot path,
// falling back to the loaded row when the cache lookup fails.
func (s *BotService) isBlocked(ctx context.Context, user *models.User) bool {
	blocked, err := s.Storage.IsUserBlocked(ctx, user.UserID)
	if err != nil {
		log.Printf("WARN: Block check failed for user %d: %v", user.UserID, err)
		return user.Blocked
	}
	return blocked
}

// ensureUser loads (or registers) the sender, refreshes drifted identity
// fields and marks the user online.
func (s *BotService) ensureUser(ctx context.Context, from *tgbotapi.User) (*models.User, bool, error) {
	user, err := s.Storage.GetUser(ctx, from.ID)
	isNew := false
	if errs.IsNotFound(err) {
		user, err = s.Storage.EnsureUser(ctx, from.ID)
		isNew = true
	}
	if err != nil {
		return nil, false, err
	}

	s.refreshIdentity(ctx, user, from, isNew)

	if err := s.Storage.SetUserOnline(ctx, user.UserID, true); err != nil {
		log.Printf("WARN: Could not mark user %d online: %v", user.UserID, err)
	}
	user.IsOnline = true
	return user, isNew, nil
}

// refreshIdentity keeps username and display name in sync with Telegram.
// A username change re-captures profile photos and is mirrored to the
// moderator group, since it is the identity moderators act on.
func (s *BotService) refreshIdentity(ctx context.Context, user *models.User, from *tgbotapi.User, isNew bool) {
	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	usernameChanged := user.Username != from.UserName

	if !usernameChanged && user.Name == name {
		return
	}

	fields := map[string]interface{}{
		"username": from.UserName,
		"name":     name,
	}

	var photos []string
	if usernameChanged {
		photos = s.fetchProfilePhotos(from.ID)
		fields["profile_photos"] = pq.StringArray(photos)
	}

	if err := s.Storage.UpdateUserFields(ctx, user.UserID, fields); err != nil {
		log.Printf("WARN: Could not refresh identity for user %d: %v", user.UserID, err)
		return
	}

	if usernameChanged && !isNew {
		s.Sender.MirrorProfileChange(user.UserID, user.Username, from.UserName, len(user.ProfilePhotos), photos)
	}

	user.Username = from.UserName
	user.Name = name
	if usernameChanged {
		user.ProfilePhotos = pq.StringArray(photos)
	}
}

// fetchProfilePhotos captures the largest size of each profile photo set,
// capped at the retention limit.
func (s *BotService) fetchProfilePhotos(userID int64) []string {
	cfg := tgbotapi.NewUserProfilePhotos(userID)
	photos, err := s.BotAPI.GetUserProfilePhotos(cfg)
	if err != nil {
		log.Printf("WARN: Could not fetch profile photos for %d: %v", userID, err)
		return nil
	}

	ids := make([]string, 0, len(photos.Photos))
	for _, set := range photos.Photos {
		if len(set) == 0 {
			continue
		}
		ids = append(ids, set[len(set)-1].FileID)
		if len(ids) >= config.MaxProfilePhotos {
			break
		}
	}
	return ids
}

// handleProofSubmission consumes the message a user sends while the
// upgrade flow waits for payment proof. Content filters still run first;
// a filtered message keeps the flow open.
func (s *BotService) handleProofSubmission(ctx context.Context, user *models.User, msg *tgbotapi.Message) {
	if content := messageContent(msg); content != "" {
		switch s.Filter.Check(ctx, content).Verdict {
		case filter.BlockedWord:
			s.Sender.WarnBlockedWord(ctx, user)
			return
		case filter.Forbidden:
			count := s.Strikes.Strike(user.UserID)
			if count >= config.MaxStrikes {
				s.Sender.AnnounceStrikeLimit(ctx, user)
				s.Sender.EscalateSpam(ctx, user)
				s.Strikes.Reset(user.UserID)
				return
			}
			s.Sender.WarnForbidden(ctx, user, count)
			return
		}
	}

	if !hasMedia(msg) {
		s.Sender.Notice(ctx, user, "📸", "upgrade_send_proof")
		return
	}

	s.conv.clear(user.UserID)
	s.Sender.MirrorStray(ctx, user, extractInbound(msg))
	s.Sender.RequestProofReview(user)
	s.Sender.Notice(ctx, user, "✅", "upgrade_sent")
}

// handleGroupCommand serves admin commands issued inside the moderator
// group. Non-admin members get a flat refusal.
func (s *BotService) handleGroupCommand(ctx context.Context, msg *tgbotapi.Message) {
	if !isAdminCommand(msg.Command()) {
		return
	}
	if msg.From.ID != s.Config.AdminID {
		_ = s.Sender.Text(ctx, msg.Chat.ID, "Unauthorized.")
		return
	}
	s.handleAdminCommand(ctx, msg)
}
