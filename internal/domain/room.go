package domain

import (
	"strings"
	"time"
)

// Room is a shared session discovered through its short code.
type Room struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Code         string    `gorm:"size:16;uniqueIndex:idx_rooms_code;not null" json:"code"`
	OwnerID      uint      `gorm:"index;not null" json:"owner_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	LastActiveAt time.Time `gorm:"index" json:"last_active_at"` // idle rooms are swept on this column
}

// Membership links a user to a room. One row per (room, user).
type Membership struct {
	ID       uint      `gorm:"primaryKey" json:"-"`
	RoomID   uint      `gorm:"not null;uniqueIndex:idx_memberships_room_user" json:"room_id"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_memberships_room_user;index" json:"user_id"`
	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
}

// Member is a membership joined with the user's display name.
type Member struct {
	UserID      uint      `json:"user_id"`
	DisplayName string    `json:"display_name"`
	IsOwner     bool      `json:"is_owner"`
	JoinedAt    time.Time `json:"joined_at"`
}

const (
	RoomCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	RoomCodeLength   = 6
	MaxRoomNameLen   = 100
)

// NormalizeRoomCode applies the boundary rules for user-entered codes:
// surrounding whitespace is dropped and letters are upper-cased.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
