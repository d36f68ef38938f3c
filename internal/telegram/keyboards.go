package telegram

import (
	"fmt"
	"net/url"

	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// langLabels maps supported locale codes to their picker labels.
var langLabels = map[string]string{
	"en": "🇬🇧 English",
	"ar": "🇸🇦 العربية",
	"hi": "🇮🇳 हिंदी",
	"id": "🇮🇩 Indonesia",
}

func languageKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(models.Languages))
	for _, code := range models.Languages {
		label, ok := langLabels[code]
		if !ok {
			label = code
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "lang_"+code),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func mainMenuKeyboard(loc *localization.Localizer, lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👤 "+loc.Get(lang, "profile"), "menu_profile"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔍 "+loc.Get(lang, "find"), "menu_find"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔎 "+loc.Get(lang, "search"), "menu_search"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚙️ "+loc.Get(lang, "filters"), "menu_filter"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎁 "+loc.Get(lang, "referral_program"), "menu_referral"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⭐ "+loc.Get(lang, "upgrade"), "menu_upgrade"),
		),
	)
}

func genderKeyboard(loc *localization.Localizer, lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(loc.Get(lang, "gender_male"), "gender_male"),
			tgbotapi.NewInlineKeyboardButtonData(loc.Get(lang, "gender_female"), "gender_female"),
		),
	)
}

func regionKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(models.Regions))
	for _, region := range models.Regions {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(region, "region_"+region),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func countryKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(models.Countries))
	for _, country := range models.Countries {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(country, "country_"+country),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func profileKeyboard(loc *localization.Localizer, lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(loc.Get(lang, "edit_profile"), "edit_profile"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 "+loc.Get(lang, "menu_back"), "menu_back"),
		),
	)
}

// filterMenuKeyboard renders the advanced-search filter menu with the
// current draft selections inlined into the button labels.
func filterMenuKeyboard(loc *localization.Localizer, lang string, draft models.MatchFilters) tgbotapi.InlineKeyboardMarkup {
	display := func(value, labelKey string) string {
		if value == "" {
			return loc.Get(lang, "gender_skip")
		}
		if labelKey != "" {
			return "✅ " + loc.Get(lang, labelKey)
		}
		return "✅ " + value
	}

	genderLabel := display(draft.Gender, "")
	if draft.Gender != "" {
		genderLabel = display(draft.Gender, "gender_"+draft.Gender)
	}
	languageLabel := display(draft.Language, "")
	if draft.Language != "" {
		if native, ok := langLabels[draft.Language]; ok {
			languageLabel = "✅ " + native
		}
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("👤 %s: %s", loc.Get(lang, "gender"), genderLabel), "filter_gender"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🌍 %s: %s", loc.Get(lang, "region"), display(draft.Region, "")), "filter_region"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("💬 %s: %s", loc.Get(lang, "language"), languageLabel), "filter_language"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💾 "+loc.Get(lang, "save_filters"), "save_filters"),
		),
	)
}

func filterGenderKeyboard(loc *localization.Localizer, lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👨 "+loc.Get(lang, "gender_male"), "fgender_male"),
			tgbotapi.NewInlineKeyboardButtonData("👩 "+loc.Get(lang, "gender_female"), "fgender_female"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ "+loc.Get(lang, "gender_skip"), "fgender_skip"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 "+loc.Get(lang, "menu_back"), "fmenu_back"),
		),
	)
}

func filterRegionKeyboard(loc *localization.Localizer, lang string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(models.Regions)+2)
	for _, region := range models.Regions {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🌍 "+region, "fregion_"+region),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ "+loc.Get(lang, "gender_skip"), "fregion_skip"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 "+loc.Get(lang, "menu_back"), "fmenu_back"),
		),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func filterLanguageKeyboard(loc *localization.Localizer, lang string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(models.Languages)+2)
	for _, code := range models.Languages {
		label, ok := langLabels[code]
		if !ok {
			label = code
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "flanguage_"+code),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ "+loc.Get(lang, "gender_skip"), "flanguage_skip"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 "+loc.Get(lang, "menu_back"), "fmenu_back"),
		),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func stopSearchKeyboard(loc *localization.Localizer, lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ "+loc.Get(lang, "stop_searching"), "stop_search"),
		),
	)
}

func cancelSearchKeyboard(loc *localization.Localizer, lang string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ "+loc.Get(lang, "cancel_search"), "cancel_search"),
		),
	)
}

func proofReviewKeyboard(userID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Approve", fmt.Sprintf("approve:%d", userID)),
			tgbotapi.NewInlineKeyboardButtonData("Decline", fmt.Sprintf("decline:%d", userID)),
		),
	)
}

func referralKeyboard(loc *localization.Localizer, lang, link string) tgbotapi.InlineKeyboardMarkup {
	shareText := loc.Get(lang, "referral_share_text")
	shareURL := fmt.Sprintf("https://t.me/share/url?url=%s&text=%s",
		url.QueryEscape(link), url.QueryEscape(shareText))
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📤 "+loc.Get(lang, "share_link"), shareURL),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔙 "+loc.Get(lang, "menu_back"), "menu_back"),
		),
	)
}
