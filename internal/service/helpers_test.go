package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"collaborative-rooms/internal/domain"
	gormpersistence "collaborative-rooms/internal/infra/persistence/gorm"
	"collaborative-rooms/internal/infra/setup"
	"collaborative-rooms/internal/repository/mocks"
	"collaborative-rooms/internal/service"
)

// fakeClock 是可以手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv 把所有服务连接到一个 SQLite 内存数据库
type testEnv struct {
	clock     *fakeClock
	publisher *mocks.EventPublisher
	presence  *mocks.PresenceRepository

	users   *gormpersistence.GormUserRepository
	roomsR  *gormpersistence.GormRoomRepository
	rounds  *gormpersistence.GormRoundRepository
	strokes *gormpersistence.GormStrokeRepository
	chats   *gormpersistence.GormChatRepository

	identity  *service.IdentityService
	rooms     *service.RoomService
	round     *service.RoundService
	canvas    *service.CanvasService
	chat      *service.ChatService
	retention *service.RetentionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := setup.InitDB(setup.DBOptions{Driver: "sqlite", SQLitePath: ":memory:", LogLevel: gormlogger.Silent})
	require.NoError(t, err)
	require.NoError(t, setup.MigrateDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{
		clock:     newFakeClock(),
		publisher: new(mocks.EventPublisher),
		presence:  new(mocks.PresenceRepository),
		users:     gormpersistence.NewGormUserRepository(db),
		roomsR:    gormpersistence.NewGormRoomRepository(db),
		rounds:    gormpersistence.NewGormRoundRepository(db),
	}
	env.publisher.On("PublishRoomEvent", mock.Anything, mock.Anything).Return(nil).Maybe()
	env.presence.On("ClearRoom", mock.Anything, mock.Anything).Return(nil).Maybe()

	env.strokes = gormpersistence.NewGormStrokeRepository(db)
	env.chats = gormpersistence.NewGormChatRepository(db)

	env.identity, err = service.NewIdentityService(env.users, "test-secret", 1, env.clock.Now)
	require.NoError(t, err)
	env.rooms = service.NewRoomService(env.roomsR, env.users, env.publisher, env.clock.Now)
	env.round = service.NewRoundService(env.rounds, env.roomsR, env.rooms, env.publisher, env.clock.Now)
	env.canvas = service.NewCanvasService(env.strokes, env.rooms, env.publisher, env.clock.Now)
	env.chat = service.NewChatService(env.chats, env.users, env.rooms, env.publisher, env.clock.Now)
	env.retention = service.NewRetentionService(env.roomsR, env.rounds, env.strokes, env.chats, env.presence, nil, service.DefaultRetentionPolicy(), env.clock.Now)
	return env
}

// newUser 创建一个匿名用户并返回其 token
func (e *testEnv) newUser(t *testing.T, name string) string {
	t.Helper()
	id, err := e.identity.Identify(context.Background(), name, "")
	require.NoError(t, err)
	return id.Token
}

// newRoom 由 owner 创建房间并让 members 加入
func (e *testEnv) newRoom(t *testing.T, owner string, members ...string) *domain.Room {
	t.Helper()
	ctx := context.Background()
	room, err := e.rooms.CreateRoom(ctx, "Sprint planning", owner)
	require.NoError(t, err)
	for _, m := range members {
		_, err := e.rooms.JoinRoom(ctx, room.Code, m)
		require.NoError(t, err)
	}
	return room
}

// publishedTypes 返回已发布事件的类型列表
func (e *testEnv) publishedTypes() []string {
	var types []string
	for _, call := range e.publisher.Calls {
		if call.Method == "PublishRoomEvent" {
			types = append(types, call.Arguments.Get(1).(domain.RoomEvent).Type)
		}
	}
	return types
}
