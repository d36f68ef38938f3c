package relay_test

import (
	"context"
	"errors"
	"testing"

	"anonchat/backend/internal/errs"
	"anonchat/backend/internal/filter"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/relay"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEgress struct {
	mock.Mock
}

func (m *mockEgress) CopyToPartner(ctx context.Context, partner *models.User, msg *models.Inbound) error {
	args := m.Called(ctx, partner, msg)
	return args.Error(0)
}

func (m *mockEgress) NotInRoomHint(ctx context.Context, user *models.User) {
	m.Called(ctx, user)
}

func (m *mockEgress) WarnBlockedWord(ctx context.Context, user *models.User) {
	m.Called(ctx, user)
}

func (m *mockEgress) WarnForbidden(ctx context.Context, user *models.User, strikes int) {
	m.Called(ctx, user, strikes)
}

func (m *mockEgress) AnnounceStrikeLimit(ctx context.Context, user *models.User) {
	m.Called(ctx, user)
}

func (m *mockEgress) EscalateSpam(ctx context.Context, user *models.User) {
	m.Called(ctx, user)
}

func (m *mockEgress) PartnerLeft(ctx context.Context, user *models.User) {
	m.Called(ctx, user)
}

func (m *mockEgress) MirrorMessage(ctx context.Context, room *models.Room, sender, partner *models.User, msg *models.Inbound) {
	m.Called(ctx, room, sender, partner, msg)
}

func (m *mockEgress) MirrorStray(ctx context.Context, sender *models.User, msg *models.Inbound) {
	m.Called(ctx, sender, msg)
}

type fakeResolver struct {
	partner    *models.User
	room       *models.Room
	err        error
	endedUser  int64
	endedRoom  string
	endedCalls int
}

func (f *fakeResolver) Partner(ctx context.Context, userID int64) (*models.User, *models.Room, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.partner, f.room, nil
}

func (f *fakeResolver) EndOneSided(ctx context.Context, callerID int64, roomID string) error {
	f.endedUser = callerID
	f.endedRoom = roomID
	f.endedCalls++
	return nil
}

type fakeLogStore struct {
	entries []*models.ChatLog
	err     error
}

func (f *fakeLogStore) AppendChatLog(ctx context.Context, entry *models.ChatLog) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

type stubWords struct{ words []string }

func (s *stubWords) BlockedWords(ctx context.Context) ([]string, error) {
	return s.words, nil
}

type harness struct {
	relay    *relay.Relay
	egress   *mockEgress
	resolver *fakeResolver
	store    *fakeLogStore
	strikes  *filter.Strikes
	sender   *models.User
	partner  *models.User
	room     *models.Room
}

func newHarness(blockedWords ...string) *harness {
	sender := &models.User{UserID: 1, Username: "alice", Language: "en"}
	partner := &models.User{UserID: 2, Username: "bob", Language: "en"}
	room := &models.Room{RoomID: "room-1", User1ID: 1, User2ID: 2, Active: true}

	egress := &mockEgress{}
	resolver := &fakeResolver{partner: partner, room: room}
	store := &fakeLogStore{}
	strikes := filter.NewStrikes()
	f := filter.New(&stubWords{words: blockedWords})

	return &harness{
		relay:    relay.New(resolver, store, f, strikes, egress),
		egress:   egress,
		resolver: resolver,
		store:    store,
		strikes:  strikes,
		sender:   sender,
		partner:  partner,
		room:     room,
	}
}

func textMsg(text string) *models.Inbound {
	return &models.Inbound{SenderID: 1, ChatID: 1, MessageID: 100, ContentType: models.ContentText, Text: text}
}

func TestHandleDeliversLogsAndMirrors(t *testing.T) {
	h := newHarness()
	h.egress.On("CopyToPartner", mock.Anything, h.partner, mock.Anything).Return(nil)
	h.egress.On("MirrorMessage", mock.Anything, h.room, h.sender, h.partner, mock.Anything).Return()

	msg := textMsg("hello")
	disp, err := h.relay.Handle(context.Background(), h.sender, msg)
	require.NoError(t, err)
	assert.Equal(t, relay.Delivered, disp)

	require.Len(t, h.store.entries, 1)
	entry := h.store.entries[0]
	assert.Equal(t, "room-1", entry.RoomID)
	assert.Equal(t, int64(1), entry.SenderID)
	assert.Equal(t, models.ContentText, entry.ContentType)
	assert.Equal(t, "hello", entry.Text)

	h.egress.AssertCalled(t, "CopyToPartner", mock.Anything, h.partner, msg)
	h.egress.AssertCalled(t, "MirrorMessage", mock.Anything, h.room, h.sender, h.partner, msg)
}

func TestHandleNotInRoom(t *testing.T) {
	h := newHarness()
	h.resolver.err = &errs.NotFound{What: "room"}
	h.egress.On("NotInRoomHint", mock.Anything, h.sender).Return()
	h.egress.On("MirrorStray", mock.Anything, h.sender, mock.Anything).Return()

	disp, err := h.relay.Handle(context.Background(), h.sender, textMsg("anyone there?"))
	require.NoError(t, err)
	assert.Equal(t, relay.NotInRoom, disp)

	assert.Empty(t, h.store.entries)
	h.egress.AssertCalled(t, "NotInRoomHint", mock.Anything, h.sender)
	h.egress.AssertCalled(t, "MirrorStray", mock.Anything, h.sender, mock.Anything)
	h.egress.AssertNotCalled(t, "CopyToPartner", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleDropsBlockedWord(t *testing.T) {
	h := newHarness("badword")
	h.egress.On("WarnBlockedWord", mock.Anything, h.sender).Return()

	disp, err := h.relay.Handle(context.Background(), h.sender, textMsg("this has BadWord inside"))
	require.NoError(t, err)
	assert.Equal(t, relay.DroppedWord, disp)

	assert.Empty(t, h.store.entries, "filtered messages are never logged")
	h.egress.AssertNotCalled(t, "CopyToPartner", mock.Anything, mock.Anything, mock.Anything)
	h.egress.AssertNotCalled(t, "MirrorMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleStrikeEscalation(t *testing.T) {
	h := newHarness()
	h.egress.On("WarnForbidden", mock.Anything, h.sender, mock.Anything).Return()
	h.egress.On("EscalateSpam", mock.Anything, h.sender).Return()
	h.egress.On("AnnounceStrikeLimit", mock.Anything, h.sender).Return()

	ctx := context.Background()
	msg := textMsg("visit https://x.me")

	for i := 1; i <= 2; i++ {
		disp, err := h.relay.Handle(ctx, h.sender, msg)
		require.NoError(t, err)
		assert.Equal(t, relay.DroppedLink, disp)
		h.egress.AssertCalled(t, "WarnForbidden", mock.Anything, h.sender, i)
	}
	h.egress.AssertNotCalled(t, "EscalateSpam", mock.Anything, mock.Anything)

	// Third strike escalates to the moderators, with a terminal notice.
	disp, err := h.relay.Handle(ctx, h.sender, msg)
	require.NoError(t, err)
	assert.Equal(t, relay.DroppedLink, disp)
	h.egress.AssertNumberOfCalls(t, "EscalateSpam", 1)
	h.egress.AssertNumberOfCalls(t, "AnnounceStrikeLimit", 1)

	// Further offenses repeat the notice but not the escalation.
	_, err = h.relay.Handle(ctx, h.sender, msg)
	require.NoError(t, err)
	h.egress.AssertNumberOfCalls(t, "EscalateSpam", 1)
	h.egress.AssertNumberOfCalls(t, "AnnounceStrikeLimit", 2)

	assert.Empty(t, h.store.entries, "no offending message reaches the log")
	h.egress.AssertNotCalled(t, "CopyToPartner", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleStrikesAreIndependentPerUser(t *testing.T) {
	h := newHarness()
	other := &models.User{UserID: 3, Language: "en"}
	h.egress.On("WarnForbidden", mock.Anything, mock.Anything, mock.Anything).Return()

	ctx := context.Background()
	_, err := h.relay.Handle(ctx, h.sender, textMsg("www.spam"))
	require.NoError(t, err)
	_, err = h.relay.Handle(ctx, other, textMsg("www.spam"))
	require.NoError(t, err)

	h.egress.AssertCalled(t, "WarnForbidden", mock.Anything, h.sender, 1)
	h.egress.AssertCalled(t, "WarnForbidden", mock.Anything, other, 1)
}

func TestHandlePartnerGone(t *testing.T) {
	h := newHarness()
	h.egress.On("CopyToPartner", mock.Anything, h.partner, mock.Anything).Return(errors.New("forbidden: bot was blocked by the user"))
	h.egress.On("PartnerLeft", mock.Anything, h.sender).Return()

	disp, err := h.relay.Handle(context.Background(), h.sender, textMsg("hello?"))
	require.NoError(t, err)
	assert.Equal(t, relay.PartnerGone, disp)

	assert.Equal(t, 1, h.resolver.endedCalls)
	assert.Equal(t, int64(1), h.resolver.endedUser, "only the caller side is torn down")
	assert.Equal(t, "room-1", h.resolver.endedRoom)
	h.egress.AssertCalled(t, "PartnerLeft", mock.Anything, h.sender)
	h.egress.AssertNotCalled(t, "MirrorMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	// The message was accepted before the copy failed, so it stays logged.
	assert.Len(t, h.store.entries, 1)
}

func TestHandleLogFailureStopsDelivery(t *testing.T) {
	h := newHarness()
	h.store.err = &errs.Transient{Msg: "append chat log", Cause: errors.New("timeout")}

	_, err := h.relay.Handle(context.Background(), h.sender, textMsg("hello"))
	assert.True(t, errs.IsTransient(err))
	h.egress.AssertNotCalled(t, "CopyToPartner", mock.Anything, mock.Anything, mock.Anything)
}
