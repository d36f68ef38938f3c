package telegram

import (
	"anonchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// messageContent uniformly extracts text or a caption from a message.
func messageContent(msg *tgbotapi.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

// extractInbound converts a Telegram message into the gateway-neutral
// envelope the relay consumes. For photos the largest rendition wins.
func extractInbound(msg *tgbotapi.Message) *models.Inbound {
	in := &models.Inbound{
		SenderID:  msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      messageContent(msg),
	}

	switch {
	case msg.Photo != nil:
		in.ContentType = models.ContentPhoto
		in.FileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Video != nil:
		in.ContentType = models.ContentVideo
		in.FileID = msg.Video.FileID
	case msg.Animation != nil:
		in.ContentType = models.ContentAnimation
		in.FileID = msg.Animation.FileID
	case msg.Sticker != nil:
		in.ContentType = models.ContentSticker
		in.FileID = msg.Sticker.FileID
	case msg.Voice != nil:
		in.ContentType = models.ContentVoice
		in.FileID = msg.Voice.FileID
	case msg.VideoNote != nil:
		in.ContentType = models.ContentVideoNote
		in.FileID = msg.VideoNote.FileID
	case msg.Audio != nil:
		in.ContentType = models.ContentAudio
		in.FileID = msg.Audio.FileID
	case msg.Document != nil:
		in.ContentType = models.ContentDocument
		in.FileID = msg.Document.FileID
	case msg.Text != "":
		in.ContentType = models.ContentText
	default:
		in.ContentType = models.ContentUnknown
	}
	return in
}

// hasMedia reports whether the message carries an attachment usable as
// payment proof.
func hasMedia(msg *tgbotapi.Message) bool {
	return msg.Photo != nil || msg.Document != nil || msg.Video != nil
}
