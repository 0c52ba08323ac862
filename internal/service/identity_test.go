package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collaborative-rooms/internal/domain"
	"collaborative-rooms/internal/repository"
	"collaborative-rooms/internal/repository/mocks"
	"collaborative-rooms/internal/service"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func TestNewIdentityService_EmptySecret(t *testing.T) {
	_, err := service.NewIdentityService(new(mocks.UserRepository), "", 1, nil)
	assert.Error(t, err)
}

// --- 测试 Identify 方法 ---

func TestIdentityService_Identify_NewUser(t *testing.T) {
	// Arrange
	mockUserRepo := new(mocks.UserRepository)
	svc, err := service.NewIdentityService(mockUserRepo, "secret", 1, fixedClock)
	require.NoError(t, err)
	ctx := context.Background()

	mockUserRepo.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
		_, parseErr := uuid.Parse(u.Token)
		return parseErr == nil && u.DisplayName == "Alice" && u.LastActiveAt.Equal(fixedNow)
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.User).ID = 7
	}).Return(nil).Once()

	// Act
	id, err := svc.Identify(ctx, "  Alice ", "")

	// Assert
	require.NoError(t, err)
	assert.True(t, id.Created)
	assert.Equal(t, uint(7), id.User.ID)
	assert.NotEmpty(t, id.Token)
	assert.NotEmpty(t, id.Session)

	parsed, err := jwt.Parse(id.Session, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil },
		jwt.WithoutClaimsValidation())
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(7), claims["user_id"])
	assert.Equal(t, id.Token, claims["token"])
	assert.Equal(t, float64(fixedNow.Add(time.Hour).Unix()), claims["exp"])
	mockUserRepo.AssertExpectations(t)
}

func TestIdentityService_Identify_DefaultDisplayName(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	svc, err := service.NewIdentityService(mockUserRepo, "secret", 1, fixedClock)
	require.NoError(t, err)
	ctx := context.Background()
	token := "abcd1234-0000-4000-8000-000000000000"

	mockUserRepo.On("FindByToken", ctx, token).Return(nil, repository.ErrUserNotFound).Once()
	mockUserRepo.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil).Once()

	id, err := svc.Identify(ctx, "", token)

	require.NoError(t, err)
	assert.Equal(t, "Guest ABCD", id.User.DisplayName)
	assert.Equal(t, token, id.Token, "客户端生成的 UUID 应被采用")
	mockUserRepo.AssertExpectations(t)
}

func TestIdentityService_Identify_KnownToken(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	svc, err := service.NewIdentityService(mockUserRepo, "secret", 1, fixedClock)
	require.NoError(t, err)
	ctx := context.Background()
	token := uuid.NewString()
	existing := &domain.User{ID: 3, DisplayName: "Old", Token: token}

	mockUserRepo.On("FindByToken", ctx, token).Return(existing, nil).Once()
	mockUserRepo.On("Touch", ctx, uint(3), "New", fixedNow).Return(nil).Once()

	id, err := svc.Identify(ctx, "New", token)

	require.NoError(t, err)
	assert.False(t, id.Created)
	assert.Equal(t, "New", id.User.DisplayName)
	mockUserRepo.AssertExpectations(t)
}

func TestIdentityService_Identify_ConcurrentFirstVisit(t *testing.T) {
	// 同一 token 的并发首次访问: Create 冲突后读取胜出者
	mockUserRepo := new(mocks.UserRepository)
	svc, err := service.NewIdentityService(mockUserRepo, "secret", 1, fixedClock)
	require.NoError(t, err)
	ctx := context.Background()
	token := uuid.NewString()
	winner := &domain.User{ID: 9, DisplayName: "Winner", Token: token}

	mockUserRepo.On("FindByToken", ctx, token).Return(nil, repository.ErrUserNotFound).Once()
	mockUserRepo.On("Create", ctx, mock.Anything).Return(repository.ErrDuplicateEntry).Once()
	mockUserRepo.On("FindByToken", ctx, token).Return(winner, nil).Once()

	id, err := svc.Identify(ctx, "", token)

	require.NoError(t, err)
	assert.Equal(t, uint(9), id.User.ID)
	mockUserRepo.AssertExpectations(t)
}

func TestIdentityService_Identify_Validation(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	svc, err := service.NewIdentityService(mockUserRepo, "secret", 1, fixedClock)
	require.NoError(t, err)

	_, err = svc.Identify(context.Background(), "", "not-a-uuid")
	assert.ErrorIs(t, err, service.ErrValidation)

	long := make([]rune, 65)
	for i := range long {
		long[i] = 'x'
	}
	_, err = svc.Identify(context.Background(), string(long), "")
	assert.ErrorIs(t, err, service.ErrValidation)
	mockUserRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIdentityService_Identify_RepositoryFailure(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	svc, err := service.NewIdentityService(mockUserRepo, "secret", 1, fixedClock)
	require.NoError(t, err)
	ctx := context.Background()
	token := uuid.NewString()

	mockUserRepo.On("FindByToken", ctx, token).Return(nil, errors.New("db down")).Once()

	_, err = svc.Identify(ctx, "", token)
	assert.ErrorIs(t, err, service.ErrInternalServer)
}

func TestIdentityService_CurrentUser(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	svc, err := service.NewIdentityService(mockUserRepo, "secret", 1, fixedClock)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.CurrentUser(ctx, "")
	assert.ErrorIs(t, err, service.ErrUnauthenticated)

	mockUserRepo.On("FindByToken", ctx, "missing").Return(nil, repository.ErrUserNotFound).Once()
	_, err = svc.CurrentUser(ctx, "missing")
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}
