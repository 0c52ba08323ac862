package dto

import "collaborative-rooms/internal/domain"

// 客户端通过 WebSocket 发送的消息类型
const (
	TypeHeartbeat    = "heartbeat"
	TypeStrokeStart  = "stroke:start"
	TypeStrokeAppend = "stroke:append"
	TypeStrokeEnd    = "stroke:end"
	TypeChat         = "chat"

	TypeAck = "ack"
)

// ClientMessage 表示从客户端 WebSocket 消息中接收的操作。
// 不同类型只使用其中部分字段。
type ClientMessage struct {
	Type     string         `json:"type"`
	Ref      string         `json:"ref,omitempty"` // 客户端自定义的关联标识，会原样出现在 ack 中
	StrokeID uint           `json:"stroke_id,omitempty"`
	Tool     string         `json:"tool,omitempty"`
	Color    string         `json:"color,omitempty"`
	Width    int            `json:"width,omitempty"`
	Points   []domain.Point `json:"points,omitempty"`
	Text     string         `json:"text,omitempty"`
}

// AckDTO 确认客户端消息已处理，stroke:start 会带回新笔画的 ID
type AckDTO struct {
	Type     string `json:"type"`
	Ref      string `json:"ref,omitempty"`
	StrokeID uint   `json:"stroke_id,omitempty"`
}

// ErrorDTO 表示发送给客户端的错误消息数据结构
type ErrorDTO struct {
	Type    string `json:"type"`
	Ref     string `json:"ref,omitempty"`
	Message string `json:"message"`
}
