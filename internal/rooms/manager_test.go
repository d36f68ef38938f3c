package rooms_test

import (
	"context"
	"testing"
	"time"

	"anonchat/backend/internal/errs"
	"anonchat/backend/internal/match"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/rooms"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeRoomStore struct {
	users    map[int64]*models.User
	bindings map[int64]string
	rooms    map[string]*models.Room
	queued   map[int64]bool
}

func newFakeRoomStore(users ...*models.User) *fakeRoomStore {
	f := &fakeRoomStore{
		users:    make(map[int64]*models.User),
		bindings: make(map[int64]string),
		rooms:    make(map[string]*models.Room),
		queued:   make(map[int64]bool),
	}
	for _, u := range users {
		f.users[u.UserID] = u
	}
	return f
}

func (f *fakeRoomStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, &errs.NotFound{What: "user"}
	}
	return u, nil
}

func (f *fakeRoomStore) CreateRoomWithBindings(ctx context.Context, room *models.Room) error {
	if f.bindings[room.User1ID] != "" || f.bindings[room.User2ID] != "" {
		return &errs.Conflict{}
	}
	f.rooms[room.RoomID] = room
	f.bindings[room.User1ID] = room.RoomID
	f.bindings[room.User2ID] = room.RoomID
	return nil
}

func (f *fakeRoomStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	r, ok := f.rooms[roomID]
	if !ok {
		return nil, &errs.NotFound{What: "room"}
	}
	return r, nil
}

func (f *fakeRoomStore) CloseRoom(ctx context.Context, roomID string) error {
	if r, ok := f.rooms[roomID]; ok {
		now := time.Now()
		r.Active = false
		r.EndedAt = &now
	}
	return nil
}

func (f *fakeRoomStore) GetBinding(ctx context.Context, userID int64) (string, error) {
	return f.bindings[userID], nil
}

func (f *fakeRoomStore) DeleteBinding(ctx context.Context, userID int64) error {
	delete(f.bindings, userID)
	return nil
}

func (f *fakeRoomStore) RemoveQueueEntry(ctx context.Context, userID int64) error {
	delete(f.queued, userID)
	return nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyMatch(ctx context.Context, room *models.Room, first, second *models.User) {
	m.Called(ctx, room, first, second)
}

func (m *mockNotifier) NotifyPartnerLeft(ctx context.Context, user *models.User) {
	m.Called(ctx, user)
}

func user(id int64) *models.User {
	return &models.User{UserID: id, Language: "en", Gender: "male", Region: "Asia", Country: "India"}
}

func newManager(store *fakeRoomStore, notifier *mockNotifier) (*rooms.Manager, *match.Pool) {
	pool := match.NewPool()
	return rooms.NewManager(store, notifier, pool), pool
}

func TestSealCreatesRoomAndWithdrawsSearchState(t *testing.T) {
	ctx := context.Background()
	store := newFakeRoomStore(user(1), user(2))
	store.queued[1] = true
	notifier := &mockNotifier{}
	notifier.On("NotifyMatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()
	mgr, pool := newManager(store, notifier)
	pool.Add(2)

	room, err := mgr.Seal(ctx, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, room)

	assert.True(t, room.Active)
	assert.False(t, room.AdminPair)
	assert.Equal(t, room.RoomID, store.bindings[1])
	assert.Equal(t, room.RoomID, store.bindings[2])
	assert.False(t, pool.Contains(2), "sealed user leaves the pool")
	assert.False(t, store.queued[1], "sealed user leaves the queue")
	notifier.AssertCalled(t, "NotifyMatch", mock.Anything, room, store.users[1], store.users[2])
}

func TestSealRejectsSelfPair(t *testing.T) {
	store := newFakeRoomStore(user(1))
	notifier := &mockNotifier{}
	mgr, _ := newManager(store, notifier)

	_, err := mgr.Seal(context.Background(), 1, 1)
	assert.True(t, errs.IsValidation(err))
	notifier.AssertNotCalled(t, "NotifyMatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSealUnknownUser(t *testing.T) {
	store := newFakeRoomStore(user(1))
	notifier := &mockNotifier{}
	mgr, _ := newManager(store, notifier)

	_, err := mgr.Seal(context.Background(), 1, 99)
	assert.True(t, errs.IsNotFound(err))
}

func TestSealConflictLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store := newFakeRoomStore(user(1), user(2))
	store.bindings[2] = "room-elsewhere"
	notifier := &mockNotifier{}
	mgr, pool := newManager(store, notifier)
	pool.Add(1)

	_, err := mgr.Seal(ctx, 1, 2)
	assert.True(t, errs.IsConflict(err))
	assert.Empty(t, store.bindings[1])
	assert.True(t, pool.Contains(1), "losing seal must not drain the pool")
	notifier.AssertNotCalled(t, "NotifyMatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEndClosesRoomAndNotifiesPartner(t *testing.T) {
	ctx := context.Background()
	store := newFakeRoomStore(user(1), user(2))
	notifier := &mockNotifier{}
	notifier.On("NotifyMatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()
	notifier.On("NotifyPartnerLeft", mock.Anything, mock.Anything).Return()
	mgr, _ := newManager(store, notifier)

	room, err := mgr.Seal(ctx, 1, 2)
	require.NoError(t, err)

	partnerID, err := mgr.End(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), partnerID)

	assert.Empty(t, store.bindings[1])
	assert.Empty(t, store.bindings[2])
	assert.False(t, store.rooms[room.RoomID].Active)
	assert.NotNil(t, store.rooms[room.RoomID].EndedAt)
	notifier.AssertCalled(t, "NotifyPartnerLeft", mock.Anything, store.users[2])

	// Second end is a no-op: the caller is no longer in a room.
	_, err = mgr.End(ctx, 1)
	assert.True(t, errs.IsNotFound(err))
}

func TestEndWithoutBinding(t *testing.T) {
	store := newFakeRoomStore(user(5))
	notifier := &mockNotifier{}
	mgr, _ := newManager(store, notifier)

	_, err := mgr.End(context.Background(), 5)
	assert.True(t, errs.IsNotFound(err))
}

func TestEndRepairsStaleBinding(t *testing.T) {
	ctx := context.Background()
	store := newFakeRoomStore(user(1))
	store.bindings[1] = "ghost-room"
	notifier := &mockNotifier{}
	mgr, _ := newManager(store, notifier)

	_, err := mgr.End(ctx, 1)
	assert.True(t, errs.IsNotFound(err))
	assert.Empty(t, store.bindings[1], "stale binding should be deleted on discovery")
}

func TestEndOneSided(t *testing.T) {
	ctx := context.Background()
	store := newFakeRoomStore(user(1), user(2))
	notifier := &mockNotifier{}
	notifier.On("NotifyMatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()
	mgr, _ := newManager(store, notifier)

	room, err := mgr.Seal(ctx, 1, 2)
	require.NoError(t, err)

	require.NoError(t, mgr.EndOneSided(ctx, 1, room.RoomID))
	assert.Empty(t, store.bindings[1])
	assert.Equal(t, room.RoomID, store.bindings[2], "partner side is left for reconciliation")
	assert.False(t, store.rooms[room.RoomID].Active)
}

func TestPartnerResolvesOtherSide(t *testing.T) {
	ctx := context.Background()
	store := newFakeRoomStore(user(1), user(2))
	notifier := &mockNotifier{}
	notifier.On("NotifyMatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()
	mgr, _ := newManager(store, notifier)

	sealed, err := mgr.Seal(ctx, 1, 2)
	require.NoError(t, err)

	partner, room, err := mgr.Partner(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), partner.UserID)
	assert.Equal(t, sealed.RoomID, room.RoomID)
}

func TestPartnerRepairsBindingToClosedRoom(t *testing.T) {
	ctx := context.Background()
	store := newFakeRoomStore(user(1), user(2))
	notifier := &mockNotifier{}
	notifier.On("NotifyMatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()
	mgr, _ := newManager(store, notifier)

	room, err := mgr.Seal(ctx, 1, 2)
	require.NoError(t, err)
	require.NoError(t, store.CloseRoom(ctx, room.RoomID))

	_, _, err = mgr.Partner(ctx, 2)
	assert.True(t, errs.IsNotFound(err))
	assert.Empty(t, store.bindings[2])
}

func TestAdoptAdminRoom(t *testing.T) {
	ctx := context.Background()
	store := newFakeRoomStore(user(500), user(1))
	notifier := &mockNotifier{}
	notifier.On("NotifyMatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()
	mgr, _ := newManager(store, notifier)

	room, err := mgr.AdoptAdminRoom(ctx, 500, 1)
	require.NoError(t, err)
	assert.True(t, room.AdminPair)
	assert.Equal(t, room.RoomID, store.bindings[500])
	assert.Equal(t, room.RoomID, store.bindings[1])
	notifier.AssertCalled(t, "NotifyMatch", mock.Anything, room, store.users[500], store.users[1])
}

func TestLinkUsersWithdrawsFromPool(t *testing.T) {
	ctx := context.Background()
	store := newFakeRoomStore(user(1), user(2))
	notifier := &mockNotifier{}
	notifier.On("NotifyMatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()
	mgr, pool := newManager(store, notifier)
	pool.Add(2)

	room, err := mgr.LinkUsers(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, room.AdminPair)
	assert.False(t, pool.Contains(2))
	assert.Equal(t, room.RoomID, store.bindings[1])
	assert.Equal(t, room.RoomID, store.bindings[2])
	notifier.AssertCalled(t, "NotifyMatch", mock.Anything, room, mock.Anything, mock.Anything)
}
