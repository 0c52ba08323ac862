package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"collaborative-rooms/internal/domain"
)

// RoomRepository 是 repository.RoomRepository 的 testify mock
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	args := m.Called(ctx, id)
	if r, ok := args.Get(0).(*domain.Room); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	args := m.Called(ctx, code)
	if r, ok := args.Get(0).(*domain.Room); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) CreateWithOwner(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *RoomRepository) AddMember(ctx context.Context, roomID, userID uint, at time.Time) error {
	args := m.Called(ctx, roomID, userID, at)
	return args.Error(0)
}

func (m *RoomRepository) IsMember(ctx context.Context, roomID, userID uint) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepository) ListMembers(ctx context.Context, roomID uint) ([]domain.Member, error) {
	args := m.Called(ctx, roomID)
	if members, ok := args.Get(0).([]domain.Member); ok {
		return members, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) ListForUser(ctx context.Context, userID uint) ([]domain.Room, error) {
	args := m.Called(ctx, userID)
	if rooms, ok := args.Get(0).([]domain.Room); ok {
		return rooms, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) TouchActivity(ctx context.Context, roomID uint, at time.Time) error {
	args := m.Called(ctx, roomID, at)
	return args.Error(0)
}

func (m *RoomRepository) DeleteIdleBefore(ctx context.Context, cutoff time.Time) ([]uint, error) {
	args := m.Called(ctx, cutoff)
	if ids, ok := args.Get(0).([]uint); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}
