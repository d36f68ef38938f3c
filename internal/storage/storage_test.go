package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"anonchat/backend/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewService(nil, rdb), mr
}

func TestIsUserBlockedCacheHit(t *testing.T) {
	svc, mr := newRedisService(t)
	ctx := context.Background()

	// Arrange: seed the cache directly. With a hit the DB is never
	// consulted, so a nil DB handle proves the hot path stays in Redis.
	require.NoError(t, mr.Set("blocked:42", "1"))
	require.NoError(t, mr.Set("blocked:43", "0"))

	// Act & Assert
	blocked, err := svc.IsUserBlocked(ctx, 42)
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = svc.IsUserBlocked(ctx, 43)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestPublishMirrorEventRoundTrip(t *testing.T) {
	svc, _ := newRedisService(t)
	ctx := context.Background()

	sub := svc.SubscribeMirrorEvents(ctx)
	defer func() { _ = sub.Close() }()

	// Wait for the subscription to be registered before publishing.
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	sent := models.MirrorEvent{
		Kind:        models.MirrorRelay,
		RoomID:      "room-1",
		SenderID:    7,
		ReceiverID:  8,
		ContentType: models.ContentText,
		Text:        "hello",
		Timestamp:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, svc.PublishMirrorEvent(ctx, sent))

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	require.NoError(t, err)
	assert.Equal(t, MirrorChannel, msg.Channel)

	var got models.MirrorEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, sent.Kind, got.Kind)
	assert.Equal(t, sent.RoomID, got.RoomID)
	assert.Equal(t, sent.SenderID, got.SenderID)
	assert.Equal(t, sent.Text, got.Text)
}

func TestPublishMirrorEventRedisDown(t *testing.T) {
	svc, mr := newRedisService(t)
	mr.Close()

	err := svc.PublishMirrorEvent(context.Background(), models.MirrorEvent{
		Kind:   models.MirrorRelay,
		RoomID: "room-1",
	})
	assert.Error(t, err, "feed publish should surface transport errors to the caller")
}
