package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collaborative-rooms/internal/domain"
	"collaborative-rooms/internal/repository/mocks"
	"collaborative-rooms/internal/service"
)

func TestPresenceService_OfflineAfterGrace(t *testing.T) {
	// Arrange
	mockPresence := new(mocks.PresenceRepository)
	mockUserRepo := new(mocks.UserRepository)
	clock := newFakeClock()
	svc := service.NewPresenceService(mockPresence, mockUserRepo, nil, 30*time.Second, clock.Now)
	ctx := context.Background()
	beat := clock.Now()

	mockPresence.On("LastSeen", ctx, uint(1)).Return(map[uint]time.Time{5: beat, 3: beat.Add(-time.Minute)}, nil)
	mockUserRepo.On("FindByIDs", ctx, []uint{3, 5}).Return([]domain.User{{ID: 5, DisplayName: "Alice"}}, nil)

	// Act + Assert: 在宽限期内在线
	clock.Advance(30 * time.Second)
	list, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint(3), list[0].UserID)
	assert.False(t, list[0].Online)
	assert.Equal(t, domain.UnknownDisplayName, list[0].DisplayName)
	assert.Equal(t, uint(5), list[1].UserID)
	assert.True(t, list[1].Online, "刚好等于宽限期仍视为在线")
	assert.Equal(t, "Alice", list[1].DisplayName)

	// 超过宽限期后离线
	clock.Advance(time.Millisecond)
	list, err = svc.List(ctx, 1)
	require.NoError(t, err)
	assert.False(t, list[1].Online)
	assert.Equal(t, beat, list[1].LastSeenAt)
}

func TestPresenceService_HeartbeatBroadcasts(t *testing.T) {
	mockPresence := new(mocks.PresenceRepository)
	mockUserRepo := new(mocks.UserRepository)
	mockPublisher := new(mocks.EventPublisher)
	clock := newFakeClock()
	svc := service.NewPresenceService(mockPresence, mockUserRepo, mockPublisher, 0, clock.Now)
	ctx := context.Background()

	mockPresence.On("RecordHeartbeat", ctx, uint(1), uint(5), clock.Now()).Return(nil).Once()
	mockPresence.On("LastSeen", ctx, uint(1)).Return(map[uint]time.Time{5: clock.Now()}, nil)
	mockUserRepo.On("FindByIDs", ctx, []uint{5}).Return([]domain.User{{ID: 5, DisplayName: "Alice"}}, nil)
	mockPublisher.On("PublishRoomEvent", ctx, mock.MatchedBy(func(ev domain.RoomEvent) bool {
		return ev.Type == domain.EventPresence && ev.RoomID == 1
	})).Return(nil).Once()

	require.NoError(t, svc.Heartbeat(ctx, 1, 5))

	assert.Equal(t, service.DefaultPresenceGrace, svc.Grace())
	mockPresence.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestPresenceService_HeartbeatFailure(t *testing.T) {
	mockPresence := new(mocks.PresenceRepository)
	svc := service.NewPresenceService(mockPresence, new(mocks.UserRepository), nil, 0, fixedClock)
	ctx := context.Background()

	mockPresence.On("RecordHeartbeat", ctx, uint(1), uint(5), fixedNow).Return(errors.New("redis down"))

	assert.ErrorIs(t, svc.Heartbeat(ctx, 1, 5), service.ErrInternalServer)
}
