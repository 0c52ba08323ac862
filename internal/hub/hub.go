package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/domain"
	redisstate "collaborative-rooms/internal/infra/state/redis"
	"collaborative-rooms/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// 一条 stroke 消息最多约 5000 个点
	maxMessageSize = 256 * 1024

	// DefaultPresenceInterval 是在线列表的定时推送间隔
	DefaultPresenceInterval = 5 * time.Second
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型。
// 客户端的业务消息不经过这里，由每个客户端自己的 goroutine 顺序处理。
type HubMessage struct {
	Type   string  // "register", "unregister"
	Client *Client // 消息来源
}

// PresenceTracker 是 Hub 需要的在线状态操作
type PresenceTracker interface {
	Heartbeat(ctx context.Context, roomID, userID uint) error
	Broadcast(ctx context.Context, roomID uint)
}

// Canvas 是 Hub 需要的画布操作
type Canvas interface {
	StartStroke(ctx context.Context, code, token string, style service.StrokeStyle, points []domain.Point) (*domain.StrokeView, error)
	AppendPoints(ctx context.Context, strokeID uint, token string, points []domain.Point) (*domain.StrokeView, error)
	FinishStroke(ctx context.Context, strokeID uint, token string, points []domain.Point) (*domain.StrokeView, error)
}

// Chat 是 Hub 需要的聊天操作
type Chat interface {
	Send(ctx context.Context, code, token, text string) (*domain.ChatEntry, error)
}

// Options 配置 Hub 的 Redis 订阅和在线推送
type Options struct {
	RedisClient      *redis.Client
	KeyPrefix        string
	PresenceInterval time.Duration
}

// Hub 维护本实例的客户端集合。房间事件由服务发布到 Redis，
// 每个实例通过模式订阅接收并转发给本地客户端。
type Hub struct {
	messageChan chan HubMessage

	// map[roomID]map[*Client]bool
	rooms   map[uint]map[*Client]bool
	roomsMu sync.RWMutex

	presence PresenceTracker
	canvas   Canvas
	chat     Chat

	redisClient      *redis.Client
	keyPrefix        string
	presenceInterval time.Duration

	done     chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      *logrus.Entry
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(presence PresenceTracker, canvas Canvas, chat Chat, opts Options) *Hub {
	if presence == nil || canvas == nil || chat == nil {
		panic("presence, canvas and chat services cannot be nil for Hub")
	}
	if opts.PresenceInterval <= 0 {
		opts.PresenceInterval = DefaultPresenceInterval
	}
	return &Hub{
		messageChan:      make(chan HubMessage, 512),
		rooms:            make(map[uint]map[*Client]bool),
		presence:         presence,
		canvas:           canvas,
		chat:             chat,
		redisClient:      opts.RedisClient,
		keyPrefix:        opts.KeyPrefix,
		presenceInterval: opts.PresenceInterval,
		done:             make(chan struct{}),
		log:              logrus.WithField("component", "hub"),
	}
}

// Start 启动 Hub 主循环、Redis 订阅和在线推送定时器
func (h *Hub) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	go h.Run()
	if h.redisClient != nil {
		h.wg.Add(1)
		go h.subscribe(ctx)
	}
	h.wg.Add(1)
	go h.presenceLoop(ctx)
}

// Stop 停止订阅和定时器，并关闭所有客户端连接
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		if h.cancel != nil {
			h.cancel()
		}
		h.wg.Wait()
		close(h.done)
	})

	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	for roomID, clients := range h.rooms {
		for client := range clients {
			client.CloseConn()
		}
		delete(h.rooms, roomID)
	}
	h.log.Info("Hub stopped")
}

// Run 启动 Hub 的主事件处理循环，Stop 之后退出
func (h *Hub) Run() {
	h.log.Info("Hub is running...")
	for {
		var msg HubMessage
		select {
		case <-h.done:
			h.log.Info("Hub is shutting down...")
			return
		case msg = <-h.messageChan:
		}
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		default:
			h.log.Warnf("Hub: Received unknown message type: %s", msg.Type)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	if client == nil {
		h.log.Error("Hub: Attempted to register a nil client")
		return
	}
	logCtx := h.log.WithFields(logrus.Fields{"room_id": client.RoomID(), "user_id": client.UserID()})

	h.roomsMu.Lock()
	if _, ok := h.rooms[client.RoomID()]; !ok {
		h.rooms[client.RoomID()] = make(map[*Client]bool)
	}
	h.rooms[client.RoomID()][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to Hub")

	// 连接即视为一次心跳
	go func() {
		if err := h.presence.Heartbeat(context.Background(), client.RoomID(), client.UserID()); err != nil {
			logCtx.WithError(err).Warn("Failed to record connect heartbeat")
		}
	}()
}

func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		return
	}
	logCtx := h.log.WithFields(logrus.Fields{"room_id": client.RoomID(), "user_id": client.UserID()})

	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	roomClients, ok := h.rooms[client.RoomID()]
	if !ok {
		return
	}
	if _, ok := roomClients[client]; !ok {
		return
	}
	delete(roomClients, client)
	close(client.send)
	if len(roomClients) == 0 {
		delete(h.rooms, client.RoomID())
		logCtx.Debug("Room empty, removed from Hub")
	}
	logCtx.Info("Client unregistered from Hub")
}

// deliver 把消息发送给本实例中指定房间的所有客户端
func (h *Hub) deliver(roomID uint, message []byte) {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	for client := range h.rooms[roomID] {
		// 非阻塞发送，避免单个慢客户端阻塞广播
		select {
		case client.send <- message:
		default:
			h.log.WithFields(logrus.Fields{"room_id": roomID, "user_id": client.UserID()}).
				Warn("Client send channel full during broadcast, skipping this client")
		}
	}
}

// subscribe 模式订阅所有房间的事件频道，并转发给本地客户端
func (h *Hub) subscribe(ctx context.Context) {
	defer h.wg.Done()
	pattern := redisstate.RoomEventsPattern(h.keyPrefix)
	pubsub := h.redisClient.PSubscribe(ctx, pattern)
	defer pubsub.Close()
	h.log.WithField("pattern", pattern).Info("Subscribed to room events")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			roomID, ok := redisstate.RoomIDFromChannel(h.keyPrefix, msg.Channel)
			if !ok {
				h.log.WithField("channel", msg.Channel).Warn("Ignoring message on unexpected channel")
				continue
			}
			h.deliver(roomID, []byte(msg.Payload))
		}
	}
}

// presenceLoop 定时推送本实例活跃房间的在线列表
func (h *Hub) presenceLoop(ctx context.Context) {
	defer h.wg.Done()
	ticker := time.NewTicker(h.presenceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, roomID := range h.ActiveRooms() {
				if h.claimPresenceTick(ctx, roomID) {
					h.presence.Broadcast(ctx, roomID)
				}
			}
		}
	}
}

// claimPresenceTick 多个实例共享同一房间时，每个周期只由抢到 key 的实例推送。
// Redis 不可用时仍然推送。
func (h *Hub) claimPresenceTick(ctx context.Context, roomID uint) bool {
	if h.redisClient == nil {
		return true
	}
	key := redisstate.PresenceTickKey(h.keyPrefix, roomID)
	ok, err := h.redisClient.SetNX(ctx, key, 1, h.presenceInterval*9/10).Result()
	if err != nil {
		h.log.WithError(err).WithField("room_id", roomID).Warn("Failed to claim presence tick")
		return true
	}
	return ok
}

// ActiveRooms 返回本实例中有客户端连接的房间
func (h *Hub) ActiveRooms() []uint {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	ids := make([]uint, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)，队列已满时返回 false
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.messageChan <- msg:
		return true
	case <-h.done:
		return false
	default:
		h.log.WithField("message_type", msg.Type).Warn("Hub message channel full, dropping message")
		return false
	}
}

// sendTo 向单个客户端发送消息，客户端已注销时直接丢弃
func (h *Hub) sendTo(client *Client, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Error("Failed to marshal direct message")
		return
	}
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	if !h.rooms[client.RoomID()][client] {
		return
	}
	select {
	case client.send <- b:
	default:
	}
}
