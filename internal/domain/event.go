package domain

import "encoding/json"

// Event types pushed to room subscribers.
const (
	EventPresence      = "presence"
	EventMemberJoined  = "member:joined"
	EventRoundStarted  = "round:started"
	EventRoundComplete = "round:completed"
	EventVoteCast      = "vote:cast"
	EventStrokeStarted = "stroke:started"
	EventStrokeUpdated = "stroke:updated"
	EventStrokeSealed  = "stroke:finished"
	EventChatMessage   = "chat:message"
	EventError         = "error"
)

// RoomEvent is the envelope of every live update for a room.
type RoomEvent struct {
	Type    string          `json:"type"`
	RoomID  uint            `json:"room_id"`
	UserID  uint            `json:"user_id,omitempty"` // originator, 0 for server events
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewRoomEvent marshals payload into an event envelope.
func NewRoomEvent(eventType string, roomID, userID uint, payload interface{}) (RoomEvent, error) {
	ev := RoomEvent{Type: eventType, RoomID: roomID, UserID: userID}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return ev, err
		}
		ev.Payload = b
	}
	return ev, nil
}
