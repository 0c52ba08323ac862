package repository

import (
	"context"
	"time"

	"collaborative-rooms/internal/domain"
)

// PresenceRepository 定义了房间在线状态的存储，通常由 Redis 实现。
type PresenceRepository interface {
	// RecordHeartbeat 记录心跳。同一用户只保留最大的时间戳。
	RecordHeartbeat(ctx context.Context, roomID, userID uint, at time.Time) error

	// LastSeen 返回房间内每个用户最后一次心跳的时间。
	LastSeen(ctx context.Context, roomID uint) (map[uint]time.Time, error)

	// ClearRoom 删除房间的在线状态记录。
	ClearRoom(ctx context.Context, roomID uint) error
}

// EventPublisher 将房间事件发布给所有订阅者。
type EventPublisher interface {
	PublishRoomEvent(ctx context.Context, event domain.RoomEvent) error
}

// CacheProbe 是健康检查使用的 key/value 接口。
type CacheProbe interface {
	Probe(ctx context.Context) error
}

// RunMarkerRepository 记录周期任务上次执行的时间，由所有实例共享，重启后不丢失。
type RunMarkerRepository interface {
	// ClaimDue 在距上次执行已满 every 时原子地把记录更新为 now，返回之前的时间和是否抢到。
	// 没有记录时只写入 now 开始计时，不视为到期。
	ClaimDue(ctx context.Context, job string, now time.Time, every time.Duration) (previous time.Time, claimed bool, err error)

	// Restore 把记录恢复为 previous，任务失败后下一次检查可以重试。previous 为零值时删除记录。
	Restore(ctx context.Context, job string, previous time.Time) error
}
