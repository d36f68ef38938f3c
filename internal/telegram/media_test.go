package telegram

import (
	"testing"

	"anonchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
)

func baseMessage() *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 42,
		From:      &tgbotapi.User{ID: 7},
		Chat:      tgbotapi.Chat{ID: 7},
	}
}

func TestExtractInbound(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*tgbotapi.Message)
		wantType   string
		wantFileID string
		wantText   string
	}{
		{
			name:     "plain text",
			mutate:   func(m *tgbotapi.Message) { m.Text = "hello" },
			wantType: models.ContentText,
			wantText: "hello",
		},
		{
			name: "photo keeps largest rendition and caption",
			mutate: func(m *tgbotapi.Message) {
				m.Photo = []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}}
				m.Caption = "look"
			},
			wantType:   models.ContentPhoto,
			wantFileID: "large",
			wantText:   "look",
		},
		{
			name:       "video",
			mutate:     func(m *tgbotapi.Message) { m.Video = &tgbotapi.Video{FileID: "vid"} },
			wantType:   models.ContentVideo,
			wantFileID: "vid",
		},
		{
			name: "animation wins over its document shadow",
			mutate: func(m *tgbotapi.Message) {
				m.Animation = &tgbotapi.Animation{FileID: "anim"}
				m.Document = &tgbotapi.Document{FileID: "doc"}
			},
			wantType:   models.ContentAnimation,
			wantFileID: "anim",
		},
		{
			name:       "sticker",
			mutate:     func(m *tgbotapi.Message) { m.Sticker = &tgbotapi.Sticker{FileID: "stk"} },
			wantType:   models.ContentSticker,
			wantFileID: "stk",
		},
		{
			name:       "voice",
			mutate:     func(m *tgbotapi.Message) { m.Voice = &tgbotapi.Voice{FileID: "vc"} },
			wantType:   models.ContentVoice,
			wantFileID: "vc",
		},
		{
			name:       "video note",
			mutate:     func(m *tgbotapi.Message) { m.VideoNote = &tgbotapi.VideoNote{FileID: "vn"} },
			wantType:   models.ContentVideoNote,
			wantFileID: "vn",
		},
		{
			name:       "audio",
			mutate:     func(m *tgbotapi.Message) { m.Audio = &tgbotapi.Audio{FileID: "au"} },
			wantType:   models.ContentAudio,
			wantFileID: "au",
		},
		{
			name:       "document",
			mutate:     func(m *tgbotapi.Message) { m.Document = &tgbotapi.Document{FileID: "doc"} },
			wantType:   models.ContentDocument,
			wantFileID: "doc",
		},
		{
			name:     "contact falls through to unknown",
			mutate:   func(m *tgbotapi.Message) { m.Contact = &tgbotapi.Contact{PhoneNumber: "123"} },
			wantType: models.ContentUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := baseMessage()
			tt.mutate(msg)

			in := extractInbound(msg)
			assert.Equal(t, int64(7), in.SenderID)
			assert.Equal(t, int64(7), in.ChatID)
			assert.Equal(t, 42, in.MessageID)
			assert.Equal(t, tt.wantType, in.ContentType)
			assert.Equal(t, tt.wantFileID, in.FileID)
			assert.Equal(t, tt.wantText, in.Text)
		})
	}
}

func TestMessageContent(t *testing.T) {
	assert.Equal(t, "", messageContent(nil))

	msg := baseMessage()
	msg.Caption = "cap"
	assert.Equal(t, "cap", messageContent(msg), "caption when no text")

	msg.Text = "txt"
	assert.Equal(t, "txt", messageContent(msg), "text wins over caption")
}

func TestHasMedia(t *testing.T) {
	msg := baseMessage()
	assert.False(t, hasMedia(msg))

	msg.Sticker = &tgbotapi.Sticker{FileID: "stk"}
	assert.False(t, hasMedia(msg), "stickers are not proof material")

	msg.Photo = []tgbotapi.PhotoSize{{FileID: "p"}}
	assert.True(t, hasMedia(msg))

	doc := baseMessage()
	doc.Document = &tgbotapi.Document{FileID: "d"}
	assert.True(t, hasMedia(doc))

	vid := baseMessage()
	vid.Video = &tgbotapi.Video{FileID: "v"}
	assert.True(t, hasMedia(vid))
}
