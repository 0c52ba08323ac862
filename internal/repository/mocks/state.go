package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"collaborative-rooms/internal/domain"
)

// PresenceRepository 是 repository.PresenceRepository 的 testify mock
type PresenceRepository struct {
	mock.Mock
}

func (m *PresenceRepository) RecordHeartbeat(ctx context.Context, roomID, userID uint, at time.Time) error {
	args := m.Called(ctx, roomID, userID, at)
	return args.Error(0)
}

func (m *PresenceRepository) LastSeen(ctx context.Context, roomID uint) (map[uint]time.Time, error) {
	args := m.Called(ctx, roomID)
	if seen, ok := args.Get(0).(map[uint]time.Time); ok {
		return seen, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PresenceRepository) ClearRoom(ctx context.Context, roomID uint) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

// EventPublisher 是 repository.EventPublisher 的 testify mock
type EventPublisher struct {
	mock.Mock
}

func (m *EventPublisher) PublishRoomEvent(ctx context.Context, event domain.RoomEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// CacheProbe 是 repository.CacheProbe 的 testify mock
type CacheProbe struct {
	mock.Mock
}

func (m *CacheProbe) Probe(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// RunMarkerRepository 是 repository.RunMarkerRepository 的 testify mock
type RunMarkerRepository struct {
	mock.Mock
}

func (m *RunMarkerRepository) ClaimDue(ctx context.Context, job string, now time.Time, every time.Duration) (time.Time, bool, error) {
	args := m.Called(ctx, job, now, every)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

func (m *RunMarkerRepository) Restore(ctx context.Context, job string, previous time.Time) error {
	args := m.Called(ctx, job, previous)
	return args.Error(0)
}
