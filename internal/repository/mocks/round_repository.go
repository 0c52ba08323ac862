package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"collaborative-rooms/internal/domain"
)

// RoundRepository 是 repository.RoundRepository 的 testify mock
type RoundRepository struct {
	mock.Mock
}

func (m *RoundRepository) Create(ctx context.Context, round *domain.Round) error {
	args := m.Called(ctx, round)
	return args.Error(0)
}

func (m *RoundRepository) FindByID(ctx context.Context, id uint) (*domain.Round, error) {
	args := m.Called(ctx, id)
	if r, ok := args.Get(0).(*domain.Round); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoundRepository) FindActive(ctx context.Context, roomID uint) (*domain.Round, error) {
	args := m.Called(ctx, roomID)
	if r, ok := args.Get(0).(*domain.Round); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoundRepository) ListByRoom(ctx context.Context, roomID uint, limit int) ([]domain.Round, error) {
	args := m.Called(ctx, roomID, limit)
	if rounds, ok := args.Get(0).([]domain.Round); ok {
		return rounds, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoundRepository) Complete(ctx context.Context, id uint, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *RoundRepository) UpsertVote(ctx context.Context, vote *domain.Vote) error {
	args := m.Called(ctx, vote)
	return args.Error(0)
}

func (m *RoundRepository) ListVotes(ctx context.Context, roundID uint) ([]domain.Vote, error) {
	args := m.Called(ctx, roundID)
	if votes, ok := args.Get(0).([]domain.Vote); ok {
		return votes, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoundRepository) DeleteStartedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RoundRepository) DeleteAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
