package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/errs"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleAdminCommand routes a command already authorized as the admin.
// Replies go back to wherever the command was typed.
func (s *BotService) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case "block":
		s.adminSetBlocked(ctx, chatID, args, true)
	case "unblock":
		s.adminSetBlocked(ctx, chatID, args, false)
	case "setpremium":
		s.adminSetPremium(ctx, chatID, args)
	case "resetpremium":
		s.adminResetPremium(ctx, chatID, args)
	case "message":
		s.adminMessage(ctx, chatID, msg)
	case "ad":
		s.adminBroadcast(ctx, chatID, msg)
	case "adminroom":
		s.adminRoom(ctx, chatID, args)
	case "linkusers":
		s.adminLinkUsers(ctx, chatID, args)
	case "blockword":
		s.adminBlockWord(ctx, chatID, args, true)
	case "unblockword":
		s.adminBlockWord(ctx, chatID, args, false)
	case "stats":
		s.adminStats(ctx, chatID)
	case "export":
		s.adminExport(ctx, chatID, args)
	case "userinfo":
		s.adminUserInfo(ctx, chatID, args)
	case "roominfo":
		s.adminRoomInfo(ctx, chatID, args)
	case "viewhistory":
		s.adminViewHistory(ctx, chatID, args)
	case "checkreferrals":
		s.adminCheckReferrals(ctx, chatID, args)
	}
}

// resolveUserArg accepts a numeric id or a @username.
func (s *BotService) resolveUserArg(ctx context.Context, arg string) (*models.User, error) {
	if strings.HasPrefix(arg, "@") {
		return s.Storage.GetUserByUsername(ctx, strings.TrimPrefix(arg, "@"))
	}
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return s.Storage.GetUser(ctx, id)
	}
	return s.Storage.GetUserByUsername(ctx, arg)
}

func (s *BotService) adminReply(ctx context.Context, chatID int64, text string) {
	_ = s.Sender.Text(ctx, chatID, text)
}

func (s *BotService) adminReplyMarkdown(ctx context.Context, chatID int64, text string) {
	_ = s.Sender.Markdown(ctx, chatID, text)
}

func (s *BotService) adminSetBlocked(ctx context.Context, chatID int64, args []string, blocked bool) {
	verb := "block"
	if !blocked {
		verb = "unblock"
	}
	if len(args) < 1 {
		s.adminReply(ctx, chatID, fmt.Sprintf("Usage: /%s <user_id or @username>", verb))
		return
	}

	user, err := s.resolveUserArg(ctx, args[0])
	if errs.IsNotFound(err) {
		s.adminReply(ctx, chatID, "User not found.")
		return
	}
	if err != nil {
		s.adminReply(ctx, chatID, "❌ Lookup failed: "+err.Error())
		return
	}

	if err := s.Storage.SetUserBlocked(ctx, user.UserID, blocked); err != nil {
		s.adminReply(ctx, chatID, fmt.Sprintf("❌ Could not %s user %d.", verb, user.UserID))
		return
	}
	if blocked {
		// A blocked user should not linger in matchmaking.
		if _, err := s.Matchmaker.CancelSearch(ctx, user.UserID); err != nil {
			log.Printf("WARN: Could not clear search for blocked user %d: %v", user.UserID, err)
		}
		s.adminReply(ctx, chatID, fmt.Sprintf("✅ User %d blocked.", user.UserID))
		return
	}
	s.adminReply(ctx, chatID, fmt.Sprintf("✅ User %d unblocked.", user.UserID))
}

func (s *BotService) adminSetPremium(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		s.adminReply(ctx, chatID, "Usage: /setpremium <user_id or @username> [days]")
		return
	}

	user, err := s.resolveUserArg(ctx, args[0])
	if errs.IsNotFound(err) {
		s.adminReply(ctx, chatID, "User not found.")
		return
	}
	if err != nil {
		s.adminReply(ctx, chatID, "❌ Lookup failed: "+err.Error())
		return
	}

	days := config.DefaultPremiumDays
	if len(args) > 1 {
		if d, err := strconv.Atoi(args[1]); err == nil && d > 0 {
			days = d
		}
	}

	expiry, err := s.Storage.GrantPremium(ctx, user.UserID, days)
	if err != nil {
		s.adminReply(ctx, chatID, fmt.Sprintf("❌ Could not promote user %d.", user.UserID))
		return
	}
	s.adminReply(ctx, chatID, fmt.Sprintf("✅ User %d promoted to premium until %s", user.UserID, expiry.Format("2006-01-02")))

	text := fmt.Sprintf("⭐ %s: %s",
		s.Localizer.Get(user.Language, "premium_until"), expiry.Format("2006-01-02"))
	_ = s.Sender.Text(ctx, user.UserID, text)
}

func (s *BotService) adminResetPremium(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		s.adminReply(ctx, chatID, "Usage: /resetpremium <user_id or @username>")
		return
	}

	user, err := s.resolveUserArg(ctx, args[0])
	if errs.IsNotFound(err) {
		s.adminReply(ctx, chatID, "User not found.")
		return
	}
	if err != nil {
		s.adminReply(ctx, chatID, "❌ Lookup failed: "+err.Error())
		return
	}

	if err := s.Storage.ClearPremium(ctx, user.UserID); err != nil {
		s.adminReply(ctx, chatID, fmt.Sprintf("❌ Could not downgrade user %d.", user.UserID))
		return
	}
	s.adminReply(ctx, chatID, fmt.Sprintf("✅ User %d downgraded to normal user.", user.UserID))
}

// adminMessage sends a one-off bot message to a user. /message with text
// sends it; /message as a reply copies the replied-to message instead.
func (s *BotService) adminMessage(ctx context.Context, chatID int64, msg *tgbotapi.Message) {
	parts := strings.SplitN(strings.TrimSpace(msg.CommandArguments()), " ", 2)
	text := ""
	if len(parts) > 1 {
		text = strings.TrimSpace(parts[1])
	}
	if parts[0] == "" || (text == "" && msg.ReplyToMessage == nil) {
		s.adminReply(ctx, chatID, "Usage: /message <user_id or @username> <text> (or reply to a message)")
		return
	}

	user, err := s.resolveUserArg(ctx, parts[0])
	if errs.IsNotFound(err) {
		s.adminReply(ctx, chatID, "User not found.")
		return
	}
	if err != nil {
		s.adminReply(ctx, chatID, "❌ Lookup failed: "+err.Error())
		return
	}

	if text != "" {
		err = s.Sender.Text(ctx, user.UserID, text)
	} else {
		reply := msg.ReplyToMessage
		err = s.Sender.Copy(ctx, user.UserID, reply.Chat.ID, reply.MessageID)
	}
	if err != nil {
		s.adminReply(ctx, chatID, fmt.Sprintf("❌ Failed to send message to user %d. User may have blocked the bot.", user.UserID))
		return
	}
	s.adminReply(ctx, chatID, fmt.Sprintf("✅ Message sent to user %d.", user.UserID))
}

// adminBroadcast announces to every registered user. /ad with text sends
// a Markdown message; /ad as a reply copies the replied-to message. The
// paced delivery runs off the update loop so the gateway stays live.
func (s *BotService) adminBroadcast(ctx context.Context, chatID int64, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" && msg.ReplyToMessage == nil {
		s.adminReply(ctx, chatID, "Usage: /ad <text> (or reply to a message with /ad)")
		return
	}

	ids, err := s.Storage.AllUserIDs(ctx)
	if err != nil {
		s.adminReply(ctx, chatID, "❌ Could not list users: "+err.Error())
		return
	}
	s.adminReply(ctx, chatID, fmt.Sprintf("📣 Broadcast started to %d users.", len(ids)))

	reply := msg.ReplyToMessage
	go func() {
		var sent, failed int
		if text != "" {
			sent, failed = s.Sender.BroadcastText(ctx, ids, text)
		} else {
			sent, failed = s.Sender.BroadcastCopy(ctx, ids, reply.Chat.ID, reply.MessageID)
		}

		rate := 0.0
		if len(ids) > 0 {
			rate = float64(sent) / float64(len(ids)) * 100
		}
		summary := fmt.Sprintf("✅ *Broadcast Complete*\n\nTotal Users: %d\n✅ Successfully sent: %d\n❌ Failed: %d\nSuccess Rate: %.1f%%",
			len(ids), sent, failed, rate)
		s.adminReplyMarkdown(ctx, chatID, summary)
	}()
}

// adminRoom opens a covert room between the admin and a user. The user
// sees an ordinary match.
func (s *BotService) adminRoom(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		s.adminReply(ctx, chatID, "Usage: /adminroom <user_id or @username>")
		return
	}

	user, err := s.resolveUserArg(ctx, args[0])
	if errs.IsNotFound(err) {
		s.adminReply(ctx, chatID, "User not found.")
		return
	}
	if err != nil {
		s.adminReply(ctx, chatID, "❌ Lookup failed: "+err.Error())
		return
	}

	if err := s.Sender.Probe(user.UserID); err != nil {
		s.adminReply(ctx, chatID, fmt.Sprintf(
			"❌ Cannot create room with user %d.\nThe user may have blocked the bot or stopped it.\nError: %v",
			user.UserID, err))
		return
	}

	room, err := s.Rooms.AdoptAdminRoom(ctx, s.Config.AdminID, user.UserID)
	if errs.IsConflict(err) {
		s.adminReply(ctx, chatID, fmt.Sprintf("❌ User %d is already in a chat room.", user.UserID))
		return
	}
	if err != nil {
		s.adminReply(ctx, chatID, "❌ Could not create room: "+err.Error())
		return
	}

	s.adminReplyMarkdown(ctx, chatID, fmt.Sprintf(
		"✅ Private room with user %d created successfully!\n🆔 Room ID: `%s`\n💬 You can now chat normally. The user will see it as a regular match.\n🚪 Use /end to leave the room when done.",
		user.UserID, room.RoomID))
}

// adminLinkUsers force-pairs two users into a room.
func (s *BotService) adminLinkUsers(ctx context.Context, chatID int64, args []string) {
	if len(args) < 2 {
		s.adminReply(ctx, chatID, "Usage: /linkusers <user1> <user2>")
		return
	}

	first, err := s.resolveUserArg(ctx, args[0])
	if err != nil {
		s.adminReply(ctx, chatID, "❌ User 1 not found: "+args[0])
		return
	}
	second, err := s.resolveUserArg(ctx, args[1])
	if err != nil {
		s.adminReply(ctx, chatID, "❌ User 2 not found: "+args[1])
		return
	}
	if first.UserID == second.UserID {
		s.adminReply(ctx, chatID, "❌ Cannot link a user with themselves.")
		return
	}

	for _, u := range []*models.User{first, second} {
		if roomID, err := s.Storage.GetBinding(ctx, u.UserID); err == nil && roomID != "" {
			s.adminReply(ctx, chatID, fmt.Sprintf("❌ User %d is already in a chat room.", u.UserID))
			return
		}
	}

	for _, u := range []*models.User{first, second} {
		if err := s.Sender.Probe(u.UserID); err != nil {
			s.adminReply(ctx, chatID, fmt.Sprintf(
				"❌ Cannot link users. User %d may have blocked the bot.\nError: %v", u.UserID, err))
			return
		}
	}

	room, err := s.Rooms.LinkUsers(ctx, first.UserID, second.UserID)
	if err != nil {
		s.adminReply(ctx, chatID, "❌ Could not link users: "+err.Error())
		return
	}

	s.adminReplyMarkdown(ctx, chatID, fmt.Sprintf(
		"✅ *Successfully linked users!*\n\n👤 User 1: %d (%s)\n👤 User 2: %d (%s)\n🆔 Room ID: `%s`\n\nThey can now chat with each other.",
		first.UserID, usernameDisplay(first.Username),
		second.UserID, usernameDisplay(second.Username),
		room.RoomID))
}

func (s *BotService) adminBlockWord(ctx context.Context, chatID int64, args []string, add bool) {
	verb := "blockword"
	if !add {
		verb = "unblockword"
	}
	if len(args) < 1 {
		s.adminReply(ctx, chatID, fmt.Sprintf("Usage: /%s <word>", verb))
		return
	}

	word := strings.ToLower(strings.Join(args, " "))
	var err error
	if add {
		err = s.Storage.AddBlockedWord(ctx, word)
	} else {
		err = s.Storage.RemoveBlockedWord(ctx, word)
	}
	if err != nil {
		s.adminReply(ctx, chatID, "❌ Word list update failed: "+err.Error())
		return
	}
	if err := s.Filter.Reload(ctx); err != nil {
		log.Printf("WARN: Word list reload failed: %v", err)
	}

	if add {
		s.adminReply(ctx, chatID, fmt.Sprintf("✅ Blocked word '%s' added.", word))
		return
	}
	s.adminReply(ctx, chatID, fmt.Sprintf("✅ Blocked word '%s' removed.", word))
}

func (s *BotService) adminStats(ctx context.Context, chatID int64) {
	stats, err := s.Storage.GetStats(ctx)
	if err != nil {
		s.adminReply(ctx, chatID, "❌ Could not gather stats: "+err.Error())
		return
	}

	var b strings.Builder
	b.WriteString("📊 *Bot Statistics*\n\n")
	fmt.Fprintf(&b, "👥 Total Users: %d\n", stats.Users)
	fmt.Fprintf(&b, "⭐ Premium Users: %d\n", stats.PremiumUsers)
	fmt.Fprintf(&b, "🚫 Blocked Users: %d\n", stats.BlockedUsers)
	fmt.Fprintf(&b, "🟢 Online Users: %d\n", stats.OnlineUsers)
	fmt.Fprintf(&b, "💬 Total Rooms: %d\n", stats.Rooms)
	fmt.Fprintf(&b, "🔥 Active Rooms: %d\n", stats.ActiveRooms)
	fmt.Fprintf(&b, "⏳ Queue Size: %d\n", stats.QueueSize)
	fmt.Fprintf(&b, "🚨 Reports: %d (%d unreviewed)\n", stats.Reports, stats.UnreviewedReports)
	fmt.Fprintf(&b, "🔇 Blocked Words: %d\n", stats.BlockedWords)
	writeDist(&b, "🌐 *Languages*", stats.LanguageDist)
	writeDist(&b, "👫 *Genders*", stats.GenderDist)
	writeDist(&b, "🌍 *Regions*", stats.RegionDist)
	b.WriteString("\nUse /export <users|rooms|reports|blocked> for raw data.")

	s.adminReplyMarkdown(ctx, chatID, b.String())
}

func writeDist(b *strings.Builder, title string, entries []storage.DistEntry) {
	if len(entries) == 0 {
		return
	}
	b.WriteString("\n" + title + "\n")
	for _, e := range entries {
		fmt.Fprintf(b, "  • %s: %d\n", e.Value, e.Count)
	}
}

func (s *BotService) adminExport(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		s.adminReply(ctx, chatID, "Usage: /export <users|rooms|reports|blocked>")
		return
	}

	kind := strings.ToLower(args[0])
	payload, count, err := s.Storage.ExportCollection(ctx, kind)
	if errs.IsValidation(err) {
		s.adminReply(ctx, chatID, "Usage: /export <users|rooms|reports|blocked>")
		return
	}
	if err != nil {
		s.adminReply(ctx, chatID, "❌ Export failed: "+err.Error())
		return
	}

	name := fmt.Sprintf("%s_export_%s.json", kind, time.Now().UTC().Format("20060102_150405"))
	caption := fmt.Sprintf("📊 %s data export\nTotal records: %d", strings.ToUpper(kind[:1])+kind[1:], count)
	if err := s.Sender.Document(ctx, chatID, name, payload, caption); err != nil {
		s.adminReply(ctx, chatID, "❌ Could not upload export: "+err.Error())
	}
}

func (s *BotService) adminUserInfo(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		s.adminReply(ctx, chatID, "Usage: /userinfo <user_id or @username>")
		return
	}

	user, err := s.resolveUserArg(ctx, args[0])
	if errs.IsNotFound(err) {
		s.adminReply(ctx, chatID, "User not found.")
		return
	}
	if err != nil {
		s.adminReply(ctx, chatID, "❌ Lookup failed: "+err.Error())
		return
	}

	premium := "false"
	if user.PremiumActive(time.Now()) {
		premium = "true (until " + user.PremiumExpiry.Format("2006-01-02") + ")"
	}
	referredBy := "None"
	if user.ReferredBy != 0 {
		referredBy = strconv.FormatInt(user.ReferredBy, 10)
	}

	var b strings.Builder
	b.WriteString("👤 *User Info*\n\n")
	fmt.Fprintf(&b, "🆔 ID: %d\n", user.UserID)
	fmt.Fprintf(&b, "Username: %s\n", usernameDisplay(user.Username))
	fmt.Fprintf(&b, "Name: %s\n", orNA(user.Name))
	fmt.Fprintf(&b, "Phone: %s\n", orNA(user.PhoneNumber))
	fmt.Fprintf(&b, "Language: %s\n", user.Language)
	fmt.Fprintf(&b, "Gender: %s\n", orNA(user.Gender))
	fmt.Fprintf(&b, "Region: %s\n", orNA(user.Region))
	fmt.Fprintf(&b, "Country: %s\n", orNA(user.Country))
	fmt.Fprintf(&b, "Premium: %s\n", premium)
	fmt.Fprintf(&b, "Blocked: %t\n", user.Blocked)
	fmt.Fprintf(&b, "Online: %t\n", user.IsOnline)
	fmt.Fprintf(&b, "Referrals: %d\n", user.ReferralCount)
	fmt.Fprintf(&b, "Referred by: %s\n", referredBy)
	fmt.Fprintf(&b, "Created: %s", user.CreatedAt.UTC().Format("2006-01-02 15:04:05"))

	s.adminReplyMarkdown(ctx, chatID, b.String())
	s.Sender.Photos(chatID, user.ProfilePhotos, config.MirrorPhotosLimit)
}

func (s *BotService) adminRoomInfo(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		s.adminReply(ctx, chatID, "Usage: /roominfo <room_id>")
		return
	}

	room, err := s.Storage.GetRoom(ctx, args[0])
	if errs.IsNotFound(err) {
		s.adminReply(ctx, chatID, "Room not found.")
		return
	}
	if err != nil {
		s.adminReply(ctx, chatID, "❌ Lookup failed: "+err.Error())
		return
	}

	ended := "N/A"
	if room.EndedAt != nil {
		ended = room.EndedAt.UTC().Format("2006-01-02 15:04:05")
	}

	var b strings.Builder
	b.WriteString("🏠 *Room Info*\n\n")
	fmt.Fprintf(&b, "🆔 Room ID: `%s`\n", room.RoomID)
	fmt.Fprintf(&b, "Active: %t\n", room.Active)
	fmt.Fprintf(&b, "Admin pair: %t\n", room.AdminPair)
	fmt.Fprintf(&b, "Created: %s\n", room.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Ended: %s\n", ended)

	for i, id := range []int64{room.User1ID, room.User2ID} {
		u, err := s.Storage.GetUser(ctx, id)
		if err != nil {
			fmt.Fprintf(&b, "\n👤 User%d: %d (record missing)\n", i+1, id)
			continue
		}
		fmt.Fprintf(&b, "\n👤 User%d:\n%s\n", i+1, userMetaLines(u))
	}
	s.adminReplyMarkdown(ctx, chatID, b.String())

	for _, id := range []int64{room.User1ID, room.User2ID} {
		if u, err := s.Storage.GetUser(ctx, id); err == nil {
			s.Sender.Photos(chatID, u.ProfilePhotos, config.RoomInfoPhotos)
		}
	}
}

func (s *BotService) adminViewHistory(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		s.adminReply(ctx, chatID, "Usage: /viewhistory <room_id>")
		return
	}

	logs, err := s.Storage.GetChatHistory(ctx, args[0])
	if err != nil {
		s.adminReply(ctx, chatID, "❌ Lookup failed: "+err.Error())
		return
	}
	if len(logs) == 0 {
		s.adminReply(ctx, chatID, "No chat history found.")
		return
	}

	payload, err := json.MarshalIndent(logs, "", "  ")
	if err != nil {
		s.adminReply(ctx, chatID, "❌ Could not serialize history: "+err.Error())
		return
	}

	name := fmt.Sprintf("chat_history_%s.json", args[0])
	caption := fmt.Sprintf("💬 Chat history for room %s (%d messages)", args[0], len(logs))
	if err := s.Sender.Document(ctx, chatID, name, payload, caption); err != nil {
		s.adminReply(ctx, chatID, "❌ Could not upload history: "+err.Error())
	}
}

func (s *BotService) adminCheckReferrals(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		top, err := s.Storage.TopReferrers(ctx, 10)
		if err != nil {
			s.adminReply(ctx, chatID, "❌ Lookup failed: "+err.Error())
			return
		}
		if len(top) == 0 {
			s.adminReply(ctx, chatID, "No referrals yet.")
			return
		}

		var b strings.Builder
		b.WriteString("🏆 *Top Referrers*\n\n")
		for _, u := range top {
			fmt.Fprintf(&b, "👤 %d (%s): %d referrals\n", u.UserID, usernameDisplay(u.Username), u.ReferralCount)
		}
		s.adminReplyMarkdown(ctx, chatID, b.String())
		return
	}

	user, err := s.resolveUserArg(ctx, args[0])
	if errs.IsNotFound(err) {
		s.adminReply(ctx, chatID, "User not found.")
		return
	}
	if err != nil {
		s.adminReply(ctx, chatID, "❌ Lookup failed: "+err.Error())
		return
	}

	referredBy := "None"
	if user.ReferredBy != 0 {
		referredBy = strconv.FormatInt(user.ReferredBy, 10)
	}
	s.adminReplyMarkdown(ctx, chatID, fmt.Sprintf(
		"👤 *Referral Info for %d*\n\n📊 Referrals made: %d\n🔗 Referred by: %s",
		user.UserID, user.ReferralCount, referredBy))
}
