// Package domain 定义了房间会话服务使用的数据模型。
package domain

import "time"

// User is an anonymous participant identified only by its token.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DisplayName  string    `gorm:"size:64;not null" json:"display_name"`
	Token        string    `gorm:"size:64;uniqueIndex:idx_users_token;not null" json:"-"` // sole credential, never serialized
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	LastActiveAt time.Time `gorm:"index" json:"last_active_at"`
}

// UnknownDisplayName is shown for content whose author no longer exists.
const UnknownDisplayName = "Unknown player"
