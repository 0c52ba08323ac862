package websocket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	wshandler "collaborative-rooms/internal/handler/websocket"
	"collaborative-rooms/internal/hub"
	gormpersistence "collaborative-rooms/internal/infra/persistence/gorm"
	"collaborative-rooms/internal/infra/setup"
	redisstate "collaborative-rooms/internal/infra/state/redis"
	"collaborative-rooms/internal/middleware"
	"collaborative-rooms/internal/service"
)

const testSecret = "ws-test-secret"

type wsEnv struct {
	server   *httptest.Server
	identity *service.IdentityService
	rooms    *service.RoomService
}

func newWSEnv(t *testing.T, allowedOrigins []string) *wsEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := setup.InitDB(setup.DBOptions{Driver: "sqlite", SQLitePath: ":memory:", LogLevel: gormlogger.Silent})
	require.NoError(t, err)
	require.NoError(t, setup.MigrateDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := gormpersistence.NewGormUserRepository(db)
	roomsR := gormpersistence.NewGormRoomRepository(db)
	publisher := redisstate.NewRedisEventPublisher(rdb, "ws:")
	identity, err := service.NewIdentityService(users, testSecret, 1, nil)
	require.NoError(t, err)
	rooms := service.NewRoomService(roomsR, users, publisher, nil)
	presence := service.NewPresenceService(redisstate.NewRedisPresenceRepository(rdb, "ws:"), users, publisher, 0, nil)
	canvas := service.NewCanvasService(gormpersistence.NewGormStrokeRepository(db), rooms, publisher, nil)
	chat := service.NewChatService(gormpersistence.NewGormChatRepository(db), users, rooms, publisher, nil)

	h := hub.NewHub(presence, canvas, chat, hub.Options{RedisClient: rdb, KeyPrefix: "ws:"})
	h.Start(context.Background())
	t.Cleanup(h.Stop)
	require.Eventually(t, func() bool { return rdb.PubSubNumPat(context.Background()).Val() >= 1 }, 2*time.Second, 10*time.Millisecond)

	router := gin.New()
	router.GET("/ws/rooms/:code", middleware.Auth(testSecret), wshandler.NewWebSocketHandler(h, rooms, allowedOrigins).HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &wsEnv{server: srv, identity: identity, rooms: rooms}
}

// user 返回 (匿名 token, 会话 JWT)
func (e *wsEnv) user(t *testing.T, name string) (string, string) {
	t.Helper()
	id, err := e.identity.Identify(context.Background(), name, "")
	require.NoError(t, err)
	return id.Token, id.Session
}

func (e *wsEnv) dial(code, session string, header http.Header) (*gorillaws.Conn, *http.Response, error) {
	u := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/rooms/" + code + "?token=" + url.QueryEscape(session)
	return gorillaws.DefaultDialer.Dial(u, header)
}

func readType(t *testing.T, conn *gorillaws.Conn, msgType string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &msg))
		if msg["type"] == msgType {
			return msg
		}
	}
}

func TestHandleConnection_MemberChatsAndSeesEvents(t *testing.T) {
	env := newWSEnv(t, nil)
	ctx := context.Background()
	aliceToken, aliceSession := env.user(t, "Alice")
	bobToken, bobSession := env.user(t, "Bob")
	room, err := env.rooms.CreateRoom(ctx, "Scribble", aliceToken)
	require.NoError(t, err)
	_, err = env.rooms.JoinRoom(ctx, room.Code, bobToken)
	require.NoError(t, err)

	alice, _, err := env.dial(room.Code, aliceSession, nil)
	require.NoError(t, err)
	defer alice.Close()
	bob, _, err := env.dial(strings.ToLower(room.Code), bobSession, nil)
	require.NoError(t, err)
	defer bob.Close()

	// 连接即心跳，两人都会收到在线列表
	readType(t, bob, "presence")

	require.NoError(t, alice.WriteJSON(map[string]interface{}{"type": "chat", "ref": "m1", "text": "hi bob"}))
	ack := readType(t, alice, "ack")
	assert.Equal(t, "m1", ack["ref"])

	ev := readType(t, bob, "chat:message")
	payload := ev["payload"].(map[string]interface{})
	assert.Equal(t, "hi bob", payload["text"])
	assert.Equal(t, "Alice", payload["author_name"])

	require.NoError(t, bob.WriteJSON(map[string]interface{}{
		"type": "stroke:start", "ref": "s1", "tool": "pen", "color": "#123abc", "width": 2,
	}))
	ack = readType(t, bob, "ack")
	strokeID := ack["stroke_id"]
	require.NotNil(t, strokeID)

	// 其他人不能修改 bob 的笔画
	require.NoError(t, alice.WriteJSON(map[string]interface{}{
		"type": "stroke:append", "ref": "s2", "stroke_id": strokeID, "points": []map[string]float64{{"x": 1, "y": 1}},
	}))
	errMsg := readType(t, alice, "error")
	assert.Equal(t, "s2", errMsg["ref"])
	assert.Equal(t, service.ErrNotAuthor.Error(), errMsg["message"])
}

func TestHandleConnection_RejectsBeforeUpgrade(t *testing.T) {
	env := newWSEnv(t, nil)
	ctx := context.Background()
	aliceToken, _ := env.user(t, "Alice")
	_, carolSession := env.user(t, "Carol")
	room, err := env.rooms.CreateRoom(ctx, "Private", aliceToken)
	require.NoError(t, err)

	_, resp, err := env.dial(room.Code, carolSession, nil)
	require.ErrorIs(t, err, gorillaws.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = env.dial("NOPE00", carolSession, nil)
	require.ErrorIs(t, err, gorillaws.ErrBadHandshake)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = env.dial(room.Code, "not-a-jwt", nil)
	require.ErrorIs(t, err, gorillaws.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleConnection_OriginCheck(t *testing.T) {
	env := newWSEnv(t, []string{"https://rooms.example"})
	aliceToken, aliceSession := env.user(t, "Alice")
	room, err := env.rooms.CreateRoom(context.Background(), "Origins", aliceToken)
	require.NoError(t, err)

	_, resp, err := env.dial(room.Code, aliceSession, http.Header{"Origin": []string{"https://evil.example"}})
	require.ErrorIs(t, err, gorillaws.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := env.dial(room.Code, aliceSession, http.Header{"Origin": []string{"https://rooms.example"}})
	require.NoError(t, err)
	conn.Close()
}
