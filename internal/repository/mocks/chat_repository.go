package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"collaborative-rooms/internal/domain"
)

// ChatRepository 是 repository.ChatRepository 的 testify mock
type ChatRepository struct {
	mock.Mock
}

func (m *ChatRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *ChatRepository) ListRecent(ctx context.Context, roomID uint, limit int) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, roomID, limit)
	if msgs, ok := args.Get(0).([]domain.ChatMessage); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ChatRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
