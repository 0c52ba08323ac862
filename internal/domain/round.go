package domain

import (
	"strconv"
	"time"
)

type RoundStatus string

const (
	RoundStarted   RoundStatus = "started"
	RoundCompleted RoundStatus = "completed"
)

const (
	MaxRoundTitleLen       = 200
	MaxRoundDescriptionLen = 2000
)

// Round is one planning-poker story. ActiveRoomID equals RoomID while the
// round is started and is NULL afterwards; its unique index allows a single
// started round per room.
type Round struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	RoomID       uint        `gorm:"index;not null" json:"room_id"`
	CreatorID    uint        `gorm:"not null" json:"creator_id"`
	Title        string      `gorm:"size:200;not null" json:"title"`
	Description  string      `gorm:"type:text" json:"description,omitempty"`
	Status       RoundStatus `gorm:"size:16;index;not null" json:"status"`
	ActiveRoomID *uint       `gorm:"uniqueIndex:idx_rounds_active_room" json:"-"`
	CreatedAt    time.Time   `gorm:"index;not null" json:"created_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

func (r *Round) IsStarted() bool { return r.Status == RoundStarted }

// Vote is the current card of one user in one round.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	RoundID   uint      `gorm:"not null;uniqueIndex:idx_votes_round_user" json:"round_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_votes_round_user" json:"user_id"`
	Value     string    `gorm:"size:8;not null" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Deck lists the accepted card values.
var Deck = []string{"0", "½", "1", "2", "3", "5", "8", "13", "20", "40", "100", "?", "☕"}

// IsValidCard reports whether v is one of the deck's cards.
func IsValidCard(v string) bool {
	for _, c := range Deck {
		if c == v {
			return true
		}
	}
	return false
}

// CardNumber returns the numeric worth of a card, false for symbolic cards.
func CardNumber(v string) (float64, bool) {
	if v == "½" {
		return 0.5, true
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// VoteView is what a member sees about another member's vote. Value stays
// empty until the round is completed.
type VoteView struct {
	UserID      uint   `json:"user_id"`
	DisplayName string `json:"display_name"`
	HasVoted    bool   `json:"has_voted"`
	Value       string `json:"value,omitempty"`
}

// RoundView is a round with the votes visible to the caller.
type RoundView struct {
	Round   Round      `json:"round"`
	Votes   []VoteView `json:"votes"`
	Average *float64   `json:"average,omitempty"` // numeric cards only, completed rounds only
}
