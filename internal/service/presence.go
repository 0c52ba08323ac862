package service

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/domain"
	"collaborative-rooms/internal/repository"
)

// DefaultPresenceGrace 是没有心跳后仍视为在线的时间窗口
const DefaultPresenceGrace = 30 * time.Second

// PresenceService 维护心跳驱动的在线状态。
type PresenceService struct {
	presenceRepo repository.PresenceRepository
	userRepo     repository.UserRepository
	publisher    repository.EventPublisher
	grace        time.Duration
	now          Clock
}

// NewPresenceService 创建 PresenceService 实例
func NewPresenceService(presenceRepo repository.PresenceRepository, userRepo repository.UserRepository, publisher repository.EventPublisher, grace time.Duration, clock Clock) *PresenceService {
	if presenceRepo == nil || userRepo == nil {
		panic("PresenceRepository and UserRepository cannot be nil for PresenceService")
	}
	if grace <= 0 {
		grace = DefaultPresenceGrace
	}
	return &PresenceService{
		presenceRepo: presenceRepo,
		userRepo:     userRepo,
		publisher:    publisher,
		grace:        grace,
		now:          clockOrDefault(clock),
	}
}

// Grace 返回在线判定窗口
func (s *PresenceService) Grace() time.Duration { return s.grace }

// Heartbeat 记录 (room, user) 的心跳，并推送最新的在线列表。
// 调用者负责确认 user 是房间成员。
func (s *PresenceService) Heartbeat(ctx context.Context, roomID, userID uint) error {
	if err := s.presenceRepo.RecordHeartbeat(ctx, roomID, userID, s.now()); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).Error("Failed to record heartbeat")
		return ErrInternalServer
	}
	s.Broadcast(ctx, roomID)
	return nil
}

// List 返回房间内每个出现过的用户的在线状态，按 user id 排序
func (s *PresenceService) List(ctx context.Context, roomID uint) ([]domain.Presence, error) {
	lastSeen, err := s.presenceRepo.LastSeen(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to read presence")
		return nil, ErrInternalServer
	}
	now := s.now()
	ids := make([]uint, 0, len(lastSeen))
	for id := range lastSeen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	names := make(map[uint]string, len(ids))
	if len(ids) > 0 {
		users, err := s.userRepo.FindByIDs(ctx, ids)
		if err != nil {
			logrus.WithError(err).WithField("room_id", roomID).Warn("Failed to load display names for presence")
		}
		for _, u := range users {
			names[u.ID] = u.DisplayName
		}
	}

	result := make([]domain.Presence, 0, len(ids))
	for _, id := range ids {
		p := domain.PresenceFromLastSeen(id, lastSeen[id], now, s.grace)
		p.DisplayName = names[id]
		if p.DisplayName == "" {
			p.DisplayName = domain.UnknownDisplayName
		}
		result = append(result, p)
	}
	return result, nil
}

// Broadcast 推送房间当前的在线列表
func (s *PresenceService) Broadcast(ctx context.Context, roomID uint) {
	if s.publisher == nil {
		return
	}
	list, err := s.List(ctx, roomID)
	if err != nil {
		return
	}
	publishEvent(ctx, s.publisher, domain.EventPresence, roomID, 0, list)
}

// ClearRoom 删除房间的在线记录
func (s *PresenceService) ClearRoom(ctx context.Context, roomID uint) error {
	return s.presenceRepo.ClearRoom(ctx, roomID)
}
