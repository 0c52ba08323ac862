package redisstate

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collaborative-rooms/internal/domain"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestPresenceRepository_HighestHeartbeatWins(t *testing.T) {
	mr, client := newTestClient(t)
	repo := NewRedisPresenceRepository(client, "test:")
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.RecordHeartbeat(ctx, 1, 7, now))
	// 乱序到达的旧心跳不应覆盖
	require.NoError(t, repo.RecordHeartbeat(ctx, 1, 7, now.Add(-time.Minute)))
	require.NoError(t, repo.RecordHeartbeat(ctx, 1, 8, now.Add(-time.Hour)))

	seen, err := repo.LastSeen(ctx, 1)
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.True(t, seen[7].Equal(now))
	assert.True(t, seen[8].Equal(now.Add(-time.Hour)))

	assert.True(t, mr.Exists("test:room:1:presence"))
	assert.Equal(t, presenceTTL, mr.TTL("test:room:1:presence"))

	require.NoError(t, repo.ClearRoom(ctx, 1))
	seen, err = repo.LastSeen(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, seen)
}

func TestEventPublisher_PublishesToRoomChannel(t *testing.T) {
	_, client := newTestClient(t)
	pub := NewRedisEventPublisher(client, "")
	ctx := context.Background()

	sub := client.PSubscribe(ctx, RoomEventsPattern(""))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	ev, err := domain.NewRoomEvent(domain.EventChatMessage, 42, 3, map[string]string{"text": "hi"})
	require.NoError(t, err)
	require.NoError(t, pub.PublishRoomEvent(ctx, ev))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "rooms:room:42:events", msg.Channel)
		var got domain.RoomEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, domain.EventChatMessage, got.Type)
		assert.Equal(t, uint(42), got.RoomID)
		assert.JSONEq(t, `{"text":"hi"}`, string(got.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("没有收到事件")
	}
}

func TestRoomIDFromChannel(t *testing.T) {
	id, ok := RoomIDFromChannel("app:", RoomEventsChannel("app:", 17))
	assert.True(t, ok)
	assert.Equal(t, uint(17), id)

	_, ok = RoomIDFromChannel("app:", "other:room:17:events")
	assert.False(t, ok)
	_, ok = RoomIDFromChannel("app:", "app:room:abc:events")
	assert.False(t, ok)
	_, ok = RoomIDFromChannel("app:", "app:room:17:presence")
	assert.False(t, ok)
}

func TestCacheProbe(t *testing.T) {
	mr, client := newTestClient(t)
	probe := NewRedisCacheProbe(client, "")
	ctx := context.Background()

	require.NoError(t, probe.Probe(ctx))
	assert.Empty(t, mr.Keys(), "探测键应被删除")

	mr.Close()
	assert.Error(t, probe.Probe(ctx))
}

func TestRunMarkerRepository_ClaimDue(t *testing.T) {
	mr, client := newTestClient(t)
	repo := NewRedisRunMarkerRepository(client, "test:")
	ctx := context.Background()
	every := 21 * 24 * time.Hour
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// 第一次只开始计时
	_, claimed, err := repo.ClaimDue(ctx, "round_reset", start, every)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.True(t, mr.Exists("test:job:round_reset:last_run"))

	_, claimed, err = repo.ClaimDue(ctx, "round_reset", start.Add(every-time.Minute), every)
	require.NoError(t, err)
	assert.False(t, claimed)

	due := start.Add(every)
	previous, claimed, err := repo.ClaimDue(ctx, "round_reset", due, every)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.True(t, previous.Equal(start))

	// 同一时刻的第二个实例抢不到
	_, claimed, err = repo.ClaimDue(ctx, "round_reset", due, every)
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, repo.Restore(ctx, "round_reset", previous))
	_, claimed, err = repo.ClaimDue(ctx, "round_reset", due, every)
	require.NoError(t, err)
	assert.True(t, claimed, "恢复之后可以重新抢到")

	require.NoError(t, repo.Restore(ctx, "round_reset", time.Time{}))
	assert.False(t, mr.Exists("test:job:round_reset:last_run"))
}
