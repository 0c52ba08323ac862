package domain

import "time"

// Presence is the derived liveness of one user in one room.
type Presence struct {
	UserID      uint      `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Online      bool      `json:"online"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// PresenceFromLastSeen derives online status from the last heartbeat.
func PresenceFromLastSeen(userID uint, lastSeen, now time.Time, grace time.Duration) Presence {
	return Presence{
		UserID:     userID,
		Online:     now.Sub(lastSeen) <= grace,
		LastSeenAt: lastSeen,
	}
}
