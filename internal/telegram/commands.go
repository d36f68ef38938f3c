package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"anonchat/backend/internal/errs"
	"anonchat/backend/internal/match"
	"anonchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/lib/pq"
)

// adminCommands is the moderator command set; everyone else gets a flat
// refusal no matter where the command was typed.
var adminCommands = map[string]bool{
	"block":          true,
	"unblock":        true,
	"setpremium":     true,
	"resetpremium":   true,
	"message":        true,
	"ad":             true,
	"adminroom":      true,
	"linkusers":      true,
	"blockword":      true,
	"unblockword":    true,
	"stats":          true,
	"export":         true,
	"userinfo":       true,
	"roominfo":       true,
	"viewhistory":    true,
	"checkreferrals": true,
}

func isAdminCommand(cmd string) bool {
	return adminCommands[cmd]
}

func (s *BotService) handleCommand(ctx context.Context, user *models.User, isNew bool, msg *tgbotapi.Message) {
	cmd := msg.Command()

	if isAdminCommand(cmd) {
		if user.UserID != s.Config.AdminID {
			_ = s.Sender.Text(ctx, msg.Chat.ID, "Unauthorized.")
			return
		}
		s.handleAdminCommand(ctx, msg)
		return
	}

	switch cmd {
	case "start":
		s.cmdStart(ctx, user, isNew, msg.CommandArguments())
	case "find", "search":
		s.cmdFind(ctx, user)
	case "end", "stop":
		s.cmdEnd(ctx, user)
	case "next":
		s.cmdNext(ctx, user)
	case "filters":
		s.cmdFilters(ctx, user)
	case "upgrade":
		s.cmdUpgrade(ctx, user)
	case "report":
		s.cmdReport(ctx, user)
	case "referral", "invite":
		s.cmdReferral(ctx, user)
	case "profile":
		s.cmdProfile(ctx, user)
	case "menu":
		s.sendMainMenu(ctx, user)
	default:
		s.Sender.Notice(ctx, user, "", "unknown_option")
	}
}

// cmdStart registers the user, credits a referral payload on first
// contact, and either resumes onboarding or shows the main menu.
func (s *BotService) cmdStart(ctx context.Context, user *models.User, isNew bool, payload string) {
	if isNew {
		if photos := s.fetchProfilePhotos(user.UserID); len(photos) > 0 {
			if err := s.Storage.UpdateUserFields(ctx, user.UserID, map[string]interface{}{"profile_photos": pq.StringArray(photos)}); err != nil {
				log.Printf("WARN: Could not save profile photos for %d: %v", user.UserID, err)
			} else {
				user.ProfilePhotos = pq.StringArray(photos)
			}
		}
		s.applyReferralPayload(ctx, user, payload)
	}

	if isNew || user.Gender == "" {
		text := fmt.Sprintf("👋 %s\n\n🌐 %s",
			s.Localizer.Get(user.Language, "welcome"),
			s.Localizer.Get(user.Language, "choose_language"))
		_ = s.Sender.TextMarkup(ctx, user.UserID, text, languageKeyboard())
		return
	}
	if !user.ProfileComplete() {
		s.resumeOnboarding(ctx, user)
		return
	}
	s.sendMainMenu(ctx, user)
}

// applyReferralPayload credits a "ref_<id>" start payload and tells the
// referrer about the reward.
func (s *BotService) applyReferralPayload(ctx context.Context, user *models.User, payload string) {
	if !strings.HasPrefix(payload, "ref_") {
		return
	}
	referrerID, err := strconv.ParseInt(strings.TrimPrefix(payload, "ref_"), 10, 64)
	if err != nil || referrerID == user.UserID {
		return
	}

	applied, expiry, err := s.Storage.ApplyReferral(ctx, user.UserID, referrerID)
	if err != nil {
		log.Printf("WARN: Referral %d -> %d not applied: %v", referrerID, user.UserID, err)
		return
	}
	if !applied {
		return
	}
	log.Printf("INFO: User %d referred by %d", user.UserID, referrerID)

	referrer, err := s.Storage.GetUser(ctx, referrerID)
	if err != nil {
		return
	}
	text := fmt.Sprintf("🎉 %s", s.Localizer.Format(referrer.Language, "referral_reward", expiry.Format("2006-01-02")))
	_ = s.Sender.Text(ctx, referrer.UserID, text)
}

// resumeOnboarding asks for the first missing profile attribute.
func (s *BotService) resumeOnboarding(ctx context.Context, user *models.User) {
	lang := user.Language
	switch {
	case user.Gender == "":
		_ = s.Sender.TextMarkup(ctx, user.UserID, s.Localizer.Get(lang, "ask_gender"), genderKeyboard(s.Localizer, lang))
	case user.Region == "":
		_ = s.Sender.TextMarkup(ctx, user.UserID, s.Localizer.Get(lang, "ask_region"), regionKeyboard())
	case user.Country == "":
		_ = s.Sender.TextMarkup(ctx, user.UserID, s.Localizer.Get(lang, "ask_country"), countryKeyboard())
	default:
		s.sendMainMenu(ctx, user)
	}
}

func (s *BotService) sendMainMenu(ctx context.Context, user *models.User) {
	text := s.Localizer.Get(user.Language, "main_menu")
	_ = s.Sender.TextMarkup(ctx, user.UserID, text, mainMenuKeyboard(s.Localizer, user.Language))
}

// cmdFind runs one matchmaking attempt and tells the user where they
// landed. A sealed match is announced by the room manager, not here.
func (s *BotService) cmdFind(ctx context.Context, user *models.User) {
	if s.isBlocked(ctx, user) {
		s.Sender.Notice(ctx, user, "🚫", "account_blocked")
		return
	}

	res, err := s.Matchmaker.Find(ctx, user.UserID)
	if errs.IsValidation(err) {
		s.Sender.Notice(ctx, user, "📝", "profile_setup_required")
		s.resumeOnboarding(ctx, user)
		return
	}
	if err != nil {
		log.Printf("ERROR: Find failed for user %d: %v", user.UserID, err)
		s.Sender.Notice(ctx, user, "", "chat_error")
		return
	}

	lang := user.Language
	switch res.Outcome {
	case match.Matched:
		// NotifyMatch already told both sides.
	case match.Searching:
		_ = s.Sender.TextMarkup(ctx, user.UserID, "🔍 "+s.Localizer.Get(lang, "searching_partner"), stopSearchKeyboard(s.Localizer, lang))
	case match.Queued:
		_ = s.Sender.TextMarkup(ctx, user.UserID, "⏳ "+s.Localizer.Get(lang, "queue_waiting"), cancelSearchKeyboard(s.Localizer, lang))
	case match.AlreadyInRoom:
		s.Sender.Notice(ctx, user, "💬", "already_in_room")
	case match.AlreadySearching:
		_ = s.Sender.TextMarkup(ctx, user.UserID, "⏳ "+s.Localizer.Get(lang, "already_searching"), stopSearchKeyboard(s.Localizer, lang))
	}
}

// cmdEnd closes the caller's room. The partner's notice comes from the
// room manager.
func (s *BotService) cmdEnd(ctx context.Context, user *models.User) {
	_, err := s.Rooms.End(ctx, user.UserID)
	if errs.IsNotFound(err) {
		// Not in a room; maybe searching. Stopping a search is the
		// closest thing to ending.
		if cancelled, cerr := s.Matchmaker.CancelSearch(ctx, user.UserID); cerr == nil && cancelled {
			s.Sender.Notice(ctx, user, "❌", "search_stopped")
			return
		}
		s.Sender.Notice(ctx, user, "", "not_in_room")
		return
	}
	if err != nil {
		log.Printf("ERROR: End failed for user %d: %v", user.UserID, err)
		s.Sender.Notice(ctx, user, "", "chat_error")
		return
	}
	s.Sender.Notice(ctx, user, "👋", "end_chat")
}

// cmdNext ends the current chat, if any, and immediately searches again.
func (s *BotService) cmdNext(ctx context.Context, user *models.User) {
	if _, err := s.Rooms.End(ctx, user.UserID); err != nil && !errs.IsNotFound(err) {
		log.Printf("ERROR: Next could not end room for user %d: %v", user.UserID, err)
		s.Sender.Notice(ctx, user, "", "chat_error")
		return
	}
	s.cmdFind(ctx, user)
}

// cmdFilters opens the matching-preferences menu, premium only.
func (s *BotService) cmdFilters(ctx context.Context, user *models.User) {
	if !user.PremiumActive(time.Now()) {
		text := fmt.Sprintf("⭐ %s\n\n%s",
			s.Localizer.Get(user.Language, "premium_only"),
			s.Localizer.Get(user.Language, "upgrade_tip"))
		_ = s.Sender.Text(ctx, user.UserID, text)
		return
	}

	draft := s.conv.draft(user.UserID, user.Preferences)
	text := fmt.Sprintf("⚙️ %s\n\n%s",
		s.Localizer.Get(user.Language, "select_filters"),
		s.Localizer.Get(user.Language, "filter_info"))
	_ = s.Sender.TextMarkup(ctx, user.UserID, text, filterMenuKeyboard(s.Localizer, user.Language, *draft))
}

// cmdUpgrade starts the payment-proof flow or reports the current grant.
func (s *BotService) cmdUpgrade(ctx context.Context, user *models.User) {
	if user.PremiumActive(time.Now()) {
		text := fmt.Sprintf("⭐ %s: %s",
			s.Localizer.Get(user.Language, "premium_until"),
			user.PremiumExpiry.Format("2006-01-02"))
		_ = s.Sender.Text(ctx, user.UserID, text)
		return
	}

	if roomID, err := s.Storage.GetBinding(ctx, user.UserID); err == nil && roomID != "" {
		s.Sender.Notice(ctx, user, "💬", "upgrade_in_room")
		return
	}

	s.conv.set(user.UserID, stateAwaitProof)
	text := fmt.Sprintf("💎 %s\n\n📸 %s",
		s.Localizer.Get(user.Language, "upgrade_tip"),
		s.Localizer.Get(user.Language, "upgrade_send_proof"))
	_ = s.Sender.Text(ctx, user.UserID, text)
}

// cmdReport files a report against the current partner.
func (s *BotService) cmdReport(ctx context.Context, user *models.User) {
	_, err := s.Reports.File(ctx, user)
	if errs.IsNotFound(err) {
		s.Sender.Notice(ctx, user, "", "report_not_in_room")
		return
	}
	if err != nil {
		log.Printf("ERROR: Report failed for user %d: %v", user.UserID, err)
		s.Sender.Notice(ctx, user, "", "chat_error")
		return
	}
	s.Sender.Notice(ctx, user, "✅", "report_sent")
}

// cmdReferral renders the personal referral card with the share link.
func (s *BotService) cmdReferral(ctx context.Context, user *models.User) {
	link := fmt.Sprintf("https://t.me/%s?start=ref_%d", s.BotAPI.Self.UserName, user.UserID)
	lang := user.Language

	text := fmt.Sprintf("🎁 *%s*\n━━━━━━━━━━━━━━━━\n📊 %s:\n👥 %s: %d\n⭐ %s: %d\n\n🔗 %s:\n`%s`\n\n📣 %s:\n1️⃣ %s\n2️⃣ %s\n3️⃣ %s\n\n♾ %s",
		s.Localizer.Get(lang, "referral_program"),
		s.Localizer.Get(lang, "your_stats"),
		s.Localizer.Get(lang, "referrals"), user.ReferralCount,
		s.Localizer.Get(lang, "premium_earned"), user.ReferralCount,
		s.Localizer.Get(lang, "your_link"),
		link,
		s.Localizer.Get(lang, "how_it_works"),
		s.Localizer.Get(lang, "referral_step1"),
		s.Localizer.Get(lang, "referral_step2"),
		s.Localizer.Get(lang, "referral_step3"),
		s.Localizer.Get(lang, "referral_unlimited"))

	msg := tgbotapi.NewMessage(user.UserID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = referralKeyboard(s.Localizer, lang, link)
	if _, err := s.BotAPI.Send(msg); err != nil {
		log.Printf("WARN: Could not send referral card to %d: %v", user.UserID, err)
	}
}

// cmdProfile shows the profile card with the edit entry point.
func (s *BotService) cmdProfile(ctx context.Context, user *models.User) {
	_ = s.Sender.TextMarkup(ctx, user.UserID, s.profileSummary(user), profileKeyboard(s.Localizer, user.Language))
}

func (s *BotService) profileSummary(user *models.User) string {
	lang := user.Language
	var b strings.Builder
	fmt.Fprintf(&b, "👤 %s\n━━━━━━━━━━━━━━━━\n", s.Localizer.Get(lang, "profile"))
	fmt.Fprintf(&b, "🆔 ID: %d\n", user.UserID)
	fmt.Fprintf(&b, "👤 Username: %s\n", usernameDisplay(user.Username))
	fmt.Fprintf(&b, "👫 %s: %s\n", s.Localizer.Get(lang, "gender"), orNA(user.Gender))
	fmt.Fprintf(&b, "🌍 %s: %s\n", s.Localizer.Get(lang, "region"), orNA(user.Region))
	fmt.Fprintf(&b, "🏳️ %s: %s\n", s.Localizer.Get(lang, "country"), orNA(user.Country))
	if user.PremiumActive(time.Now()) {
		fmt.Fprintf(&b, "⭐ %s: %s", s.Localizer.Get(lang, "premium_until"), user.PremiumExpiry.Format("2006-01-02"))
	} else {
		fmt.Fprintf(&b, "💎 %s", s.Localizer.Get(lang, "not_premium"))
	}
	return b.String()
}
