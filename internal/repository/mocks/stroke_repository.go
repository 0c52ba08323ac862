package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"collaborative-rooms/internal/domain"
)

// StrokeRepository 是 repository.StrokeRepository 的 testify mock
type StrokeRepository struct {
	mock.Mock
}

func (m *StrokeRepository) Create(ctx context.Context, stroke *domain.Stroke) error {
	args := m.Called(ctx, stroke)
	return args.Error(0)
}

func (m *StrokeRepository) FindByID(ctx context.Context, id uint) (*domain.Stroke, error) {
	args := m.Called(ctx, id)
	if s, ok := args.Get(0).(*domain.Stroke); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StrokeRepository) UpdateOpen(ctx context.Context, id uint, points string, completed bool, at time.Time) error {
	args := m.Called(ctx, id, points, completed, at)
	return args.Error(0)
}

func (m *StrokeRepository) ListByRoom(ctx context.Context, roomID uint) ([]domain.Stroke, error) {
	args := m.Called(ctx, roomID)
	if strokes, ok := args.Get(0).([]domain.Stroke); ok {
		return strokes, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StrokeRepository) DeleteUpdatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StrokeRepository) DeleteAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
