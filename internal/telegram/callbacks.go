package telegram

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (s *BotService) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Respond to the callback query to remove the "loading" state.
	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := s.BotAPI.Request(callback); err != nil {
		log.Printf("failed to send callback response: %v", err)
	}
	if cb.From == nil || cb.Message == nil {
		return
	}
	data := cb.Data

	// Payment review buttons live in the moderator group.
	if strings.HasPrefix(data, "approve:") || strings.HasPrefix(data, "decline:") {
		s.handleProofReview(ctx, cb)
		return
	}

	user, _, err := s.ensureUser(ctx, cb.From)
	if err != nil {
		log.Printf("ERROR: Could not load user %d for callback: %v", cb.From.ID, err)
		return
	}

	switch {
	case strings.HasPrefix(data, "lang_"):
		s.cbLanguage(ctx, user, strings.TrimPrefix(data, "lang_"))
	case strings.HasPrefix(data, "gender_"):
		s.cbGender(ctx, user, strings.TrimPrefix(data, "gender_"))
	case strings.HasPrefix(data, "region_"):
		s.cbRegion(ctx, user, strings.TrimPrefix(data, "region_"))
	case strings.HasPrefix(data, "country_"):
		s.cbCountry(ctx, user, strings.TrimPrefix(data, "country_"))
	case data == "edit_profile":
		_ = s.Sender.TextMarkup(ctx, user.UserID, s.Localizer.Get(user.Language, "ask_gender"), genderKeyboard(s.Localizer, user.Language))
	case data == "menu_profile":
		s.cmdProfile(ctx, user)
	case data == "menu_find", data == "menu_search":
		s.cmdFind(ctx, user)
	case data == "menu_filter":
		s.cmdFilters(ctx, user)
	case data == "menu_referral":
		s.cmdReferral(ctx, user)
	case data == "menu_upgrade":
		s.cmdUpgrade(ctx, user)
	case data == "menu_back":
		s.sendMainMenu(ctx, user)
	case data == "filter_gender":
		_ = s.Sender.TextMarkup(ctx, user.UserID, s.Localizer.Get(user.Language, "gender"), filterGenderKeyboard(s.Localizer, user.Language))
	case data == "filter_region":
		_ = s.Sender.TextMarkup(ctx, user.UserID, s.Localizer.Get(user.Language, "region"), filterRegionKeyboard(s.Localizer, user.Language))
	case data == "filter_language":
		_ = s.Sender.TextMarkup(ctx, user.UserID, s.Localizer.Get(user.Language, "language"), filterLanguageKeyboard(s.Localizer, user.Language))
	case strings.HasPrefix(data, "fgender_"):
		s.cbFilterValue(ctx, user, "gender", strings.TrimPrefix(data, "fgender_"))
	case strings.HasPrefix(data, "fregion_"):
		s.cbFilterValue(ctx, user, "region", strings.TrimPrefix(data, "fregion_"))
	case strings.HasPrefix(data, "flanguage_"):
		s.cbFilterValue(ctx, user, "language", strings.TrimPrefix(data, "flanguage_"))
	case data == "fmenu_back":
		s.showFilterMenu(ctx, user)
	case data == "save_filters":
		s.cbSaveFilters(ctx, user)
	case data == "stop_search", data == "cancel_search":
		s.cbStopSearch(ctx, user)
	default:
		s.Sender.Notice(ctx, user, "", "unknown_option")
	}
}

// cbLanguage saves the chosen locale and moves the wizard along.
func (s *BotService) cbLanguage(ctx context.Context, user *models.User, code string) {
	if !models.ValidLanguage(code) {
		s.Sender.Notice(ctx, user, "", "unknown_option")
		return
	}
	if err := s.Storage.UpdateUserFields(ctx, user.UserID, map[string]interface{}{"language": code}); err != nil {
		log.Printf("ERROR: Could not save language for user %d: %v", user.UserID, err)
		return
	}
	user.Language = code
	s.Sender.Notice(ctx, user, "✅", "language_saved")

	if user.Gender == "" {
		_ = s.Sender.TextMarkup(ctx, user.UserID, s.Localizer.Get(code, "ask_gender"), genderKeyboard(s.Localizer, code))
		return
	}
	s.sendMainMenu(ctx, user)
}

func (s *BotService) cbGender(ctx context.Context, user *models.User, value string) {
	if !models.ValidGender(value) {
		s.Sender.Notice(ctx, user, "", "unknown_option")
		return
	}
	if err := s.Storage.UpdateUserFields(ctx, user.UserID, map[string]interface{}{"gender": value}); err != nil {
		log.Printf("ERROR: Could not save gender for user %d: %v", user.UserID, err)
		return
	}
	user.Gender = value
	_ = s.Sender.TextMarkup(ctx, user.UserID, s.Localizer.Get(user.Language, "ask_region"), regionKeyboard())
}

func (s *BotService) cbRegion(ctx context.Context, user *models.User, value string) {
	if !models.ValidRegion(value) {
		s.Sender.Notice(ctx, user, "", "unknown_option")
		return
	}
	if err := s.Storage.UpdateUserFields(ctx, user.UserID, map[string]interface{}{"region": value}); err != nil {
		log.Printf("ERROR: Could not save region for user %d: %v", user.UserID, err)
		return
	}
	user.Region = value
	_ = s.Sender.TextMarkup(ctx, user.UserID, s.Localizer.Get(user.Language, "ask_country"), countryKeyboard())
}

// cbCountry is the last wizard step; first-time completion announces the
// user to the moderator group.
func (s *BotService) cbCountry(ctx context.Context, user *models.User, value string) {
	if !models.ValidCountry(value) {
		s.Sender.Notice(ctx, user, "", "unknown_option")
		return
	}
	firstCompletion := user.Country == ""
	if err := s.Storage.UpdateUserFields(ctx, user.UserID, map[string]interface{}{"country": value}); err != nil {
		log.Printf("ERROR: Could not save country for user %d: %v", user.UserID, err)
		return
	}
	user.Country = value

	s.Sender.Notice(ctx, user, "✅", "profile_saved")
	if firstCompletion && user.ProfileComplete() {
		s.Sender.MirrorNewUser(ctx, user)
	}
	s.sendMainMenu(ctx, user)
}

// cbFilterValue stages one filter key on the draft. "skip" clears the key.
func (s *BotService) cbFilterValue(ctx context.Context, user *models.User, key, value string) {
	if value == "skip" {
		value = ""
	}

	valid := value == ""
	switch key {
	case "gender":
		valid = valid || models.ValidGender(value)
	case "region":
		valid = valid || models.ValidRegion(value)
	case "language":
		valid = valid || models.ValidLanguage(value)
	}
	if !valid {
		s.Sender.Notice(ctx, user, "", "unknown_option")
		return
	}

	draft := s.conv.draft(user.UserID, user.Preferences)
	switch key {
	case "gender":
		draft.Gender = value
	case "region":
		draft.Region = value
	case "language":
		draft.Language = value
	}
	s.showFilterMenu(ctx, user)
}

func (s *BotService) showFilterMenu(ctx context.Context, user *models.User) {
	draft := s.conv.draft(user.UserID, user.Preferences)
	text := fmt.Sprintf("⚙️ %s\n\n%s",
		s.Localizer.Get(user.Language, "select_filters"),
		s.Localizer.Get(user.Language, "filter_info"))
	_ = s.Sender.TextMarkup(ctx, user.UserID, text, filterMenuKeyboard(s.Localizer, user.Language, *draft))
}

// cbSaveFilters persists the staged draft as the saved preferences.
func (s *BotService) cbSaveFilters(ctx context.Context, user *models.User) {
	draft := s.conv.draft(user.UserID, user.Preferences)
	fields := map[string]interface{}{
		"pref_gender":   draft.Gender,
		"pref_region":   draft.Region,
		"pref_language": draft.Language,
	}
	if err := s.Storage.UpdateUserFields(ctx, user.UserID, fields); err != nil {
		log.Printf("ERROR: Could not save filters for user %d: %v", user.UserID, err)
		s.Sender.Notice(ctx, user, "", "chat_error")
		return
	}
	s.conv.clearDraft(user.UserID)
	s.Sender.Notice(ctx, user, "✅", "filters_saved")
}

func (s *BotService) cbStopSearch(ctx context.Context, user *models.User) {
	cancelled, err := s.Matchmaker.CancelSearch(ctx, user.UserID)
	if err != nil {
		log.Printf("ERROR: Cancel search failed for user %d: %v", user.UserID, err)
		s.Sender.Notice(ctx, user, "", "chat_error")
		return
	}
	if cancelled {
		s.Sender.Notice(ctx, user, "❌", "search_stopped")
		return
	}
	s.Sender.Notice(ctx, user, "", "not_searching")
}

// handleProofReview resolves a payment proof from the review buttons.
// Only the admin may act on them.
func (s *BotService) handleProofReview(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From.ID != s.Config.AdminID {
		log.Printf("WARN: Non-admin %d tapped a proof review button", cb.From.ID)
		return
	}

	approve := strings.HasPrefix(cb.Data, "approve:")
	raw := strings.TrimPrefix(strings.TrimPrefix(cb.Data, "approve:"), "decline:")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("WARN: Malformed proof review payload %q", cb.Data)
		return
	}

	user, err := s.Storage.GetUser(ctx, userID)
	if err != nil {
		s.adminReply(ctx, cb.Message.Chat.ID, "User not found.")
		return
	}

	if !approve {
		s.Sender.Notice(ctx, user, "❌", "upgrade_declined")
		s.adminReply(ctx, cb.Message.Chat.ID, fmt.Sprintf("❌ Payment proof from user %d declined.", userID))
		return
	}

	expiry, err := s.Storage.GrantPremium(ctx, userID, config.DefaultPremiumDays)
	if err != nil {
		s.adminReply(ctx, cb.Message.Chat.ID, fmt.Sprintf("❌ Could not promote user %d.", userID))
		return
	}

	text := fmt.Sprintf("🎉 %s\n⭐ %s: %s",
		s.Localizer.Get(user.Language, "upgrade_approved"),
		s.Localizer.Get(user.Language, "premium_until"),
		expiry.Format("2006-01-02"))
	_ = s.Sender.Text(ctx, user.UserID, text)
	s.adminReply(ctx, cb.Message.Chat.ID, fmt.Sprintf("✅ Premium granted to user %d until %s", userID, expiry.Format("2006-01-02")))
}
