package domain

import "time"

const MaxChatTextLen = 500

// ChatMessage is one entry of a room's chat log. IsGuess is reserved for
// word guessing and is always false for now.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    uint      `gorm:"index:idx_chat_room_created;not null" json:"room_id"`
	AuthorID  uint      `gorm:"not null" json:"author_id"`
	Text      string    `gorm:"size:500;not null" json:"text"`
	IsGuess   bool      `gorm:"not null;default:false" json:"is_guess"`
	CreatedAt time.Time `gorm:"index:idx_chat_room_created;index;not null" json:"created_at"`
}

// ChatEntry is a message enriched with its author's display name.
type ChatEntry struct {
	ChatMessage
	AuthorName string `json:"author_name"`
}
