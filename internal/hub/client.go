package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Session 标识一个 WebSocket 连接属于哪个房间和用户
type Session struct {
	RoomID   uint
	RoomCode string
	UserID   uint
	Token    string // 匿名 token，调用服务时使用
}

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	session Session
	send    chan []byte // 用于向此客户端发送消息的缓冲通道
	inbound chan []byte // 客户端消息按到达顺序逐条处理
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, session Session) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		session: session,
		send:    make(chan []byte, 256),
		inbound: make(chan []byte, 64),
	}
}

// Run 启动客户端的读写 goroutine 和消息处理 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.processInbound()
	go c.ReadPump()
}

// processInbound 顺序处理同一客户端的消息，服务调用不占用 Hub 主循环。
// ReadPump 退出时关闭 inbound，这里处理完剩余消息后退出。
func (c *Client) processInbound() {
	for raw := range c.inbound {
		c.hub.handleInbound(c, raw)
	}
}

func (c *Client) logCtx() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"user_id": c.session.UserID, "room_id": c.session.RoomID})
}

// ReadPump 将消息从 WebSocket 连接泵送到 Hub
func (c *Client) ReadPump() {
	defer func() {
		close(c.inbound)
		select {
		case c.hub.messageChan <- HubMessage{Type: "unregister", Client: c}:
		case <-c.hub.done:
		case <-time.After(1 * time.Second):
			c.logCtx().Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		c.logCtx().Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logCtx().WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.logCtx().Debug("WebSocket connection closed normally or read error")
			}
			break
		}
		if messageType != websocket.TextMessage {
			c.logCtx().Debugf("Received non-text message type: %d", messageType)
			continue
		}
		// 任何客户端消息都会延长读超时
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		// 队列满时阻塞读取，保证顺序而不是丢消息
		select {
		case c.inbound <- message:
		case <-c.hub.done:
			return
		}
	}
}

// WritePump 将消息从 send 通道泵送到 WebSocket 连接
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logCtx().Debug("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被 Hub 关闭了 (注销时)
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logCtx().WithError(err).Warn("Failed to write message to websocket")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logCtx().WithError(err).Debug("Failed to send ping message")
				return
			}
		}
	}
}

func (c *Client) RoomID() uint     { return c.session.RoomID }
func (c *Client) RoomCode() string { return c.session.RoomCode }
func (c *Client) UserID() uint     { return c.session.UserID }
func (c *Client) Token() string    { return c.session.Token }
func (c *Client) CloseConn()       { c.conn.Close() }
