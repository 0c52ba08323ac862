package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collaborative-rooms/internal/domain"
	"collaborative-rooms/internal/repository"
	"collaborative-rooms/internal/repository/mocks"
	"collaborative-rooms/internal/service"
)

func TestRoomService_CreateRoom_Validation(t *testing.T) {
	svc := service.NewRoomService(new(mocks.RoomRepository), new(mocks.UserRepository), nil, fixedClock)

	_, err := svc.CreateRoom(context.Background(), "   ", "token")
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestRoomService_CreateRoom_RetriesOnCodeCollision(t *testing.T) {
	// Arrange: 第一个房间码已被占用
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	svc := service.NewRoomService(mockRoomRepo, mockUserRepo, nil, fixedClock)
	codes := []string{"AAAAAA", "BBBBBB"}
	service.SetRoomCodeGenerator(svc, func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	})
	ctx := context.Background()

	mockUserRepo.On("FindByToken", ctx, "owner").Return(&domain.User{ID: 1}, nil)
	mockRoomRepo.On("CreateWithOwner", ctx, mock.MatchedBy(func(r *domain.Room) bool { return r.Code == "AAAAAA" })).
		Return(repository.ErrDuplicateEntry).Once()
	mockRoomRepo.On("CreateWithOwner", ctx, mock.MatchedBy(func(r *domain.Room) bool { return r.Code == "BBBBBB" })).
		Run(func(args mock.Arguments) { args.Get(1).(*domain.Room).ID = 42 }).
		Return(nil).Once()

	// Act
	room, err := svc.CreateRoom(ctx, "Planning", "owner")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", room.Code)
	assert.Equal(t, uint(42), room.ID)
	assert.Equal(t, uint(1), room.OwnerID)
	mockRoomRepo.AssertExpectations(t)
}

func TestRoomService_CreateRoom_GivesUpAfterRepeatedCollisions(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockUserRepo := new(mocks.UserRepository)
	svc := service.NewRoomService(mockRoomRepo, mockUserRepo, nil, fixedClock)
	service.SetRoomCodeGenerator(svc, func() (string, error) { return "SAME00", nil })
	ctx := context.Background()

	mockUserRepo.On("FindByToken", ctx, "owner").Return(&domain.User{ID: 1}, nil)
	mockRoomRepo.On("CreateWithOwner", ctx, mock.Anything).Return(repository.ErrDuplicateEntry)

	_, err := svc.CreateRoom(ctx, "Planning", "owner")

	assert.ErrorIs(t, err, service.ErrInternalServer)
	mockRoomRepo.AssertNumberOfCalls(t, "CreateWithOwner", 10)
}

func TestRoomService_CreateRoom_UnknownOwner(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	svc := service.NewRoomService(new(mocks.RoomRepository), mockUserRepo, nil, fixedClock)
	ctx := context.Background()
	mockUserRepo.On("FindByToken", ctx, "ghost").Return(nil, repository.ErrUserNotFound)

	_, err := svc.CreateRoom(ctx, "Planning", "ghost")
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestRoomService_CheckRoomExists(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	svc := service.NewRoomService(mockRoomRepo, new(mocks.UserRepository), nil, fixedClock)
	ctx := context.Background()

	mockRoomRepo.On("FindByCode", ctx, "ABC123").Return(&domain.Room{ID: 1, Code: "ABC123"}, nil)
	mockRoomRepo.On("FindByCode", ctx, "NOPE00").Return(nil, repository.ErrRoomNotFound)
	mockRoomRepo.On("FindByCode", ctx, "BROKEN").Return(nil, errors.New("db down"))

	ok, err := svc.CheckRoomExists(ctx, " abc123 ")
	require.NoError(t, err)
	assert.True(t, ok, "房间码应被规范化为大写")

	ok, err = svc.CheckRoomExists(ctx, "NOPE00")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.CheckRoomExists(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.CheckRoomExists(ctx, "BROKEN")
	assert.ErrorIs(t, err, service.ErrInternalServer)
}

func TestRoomService_JoinRoom_PublishesOnlyOnFirstJoin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newUser(t, "Owner")
	guest := env.newUser(t, "Guest")
	room := env.newRoom(t, owner)

	_, err := env.rooms.JoinRoom(ctx, room.Code, guest)
	require.NoError(t, err)
	_, err = env.rooms.JoinRoom(ctx, room.Code, guest)
	require.NoError(t, err)

	joined := 0
	for _, typ := range env.publishedTypes() {
		if typ == domain.EventMemberJoined {
			joined++
		}
	}
	assert.Equal(t, 1, joined)
}

func TestRoomService_DoubleJoinKeepsOneMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newUser(t, "Owner")
	guest := env.newUser(t, "Guest")
	room := env.newRoom(t, owner)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.rooms.JoinRoom(ctx, room.Code, guest)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	members, err := env.rooms.ListMembers(ctx, room.Code, owner)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestRoomService_ConcurrentCreatesGetDistinctCodes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newUser(t, "Owner")

	const n = 20
	codes := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			room, err := env.rooms.CreateRoom(ctx, "Room", owner)
			if assert.NoError(t, err) {
				codes <- room.Code
			}
		}()
	}
	wg.Wait()
	close(codes)

	seen := map[string]bool{}
	for c := range codes {
		assert.Len(t, c, domain.RoomCodeLength)
		assert.False(t, seen[c], "房间码 %s 重复", c)
		seen[c] = true
	}
	assert.Len(t, seen, n)

	rooms, err := env.rooms.ListRoomsForUser(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, rooms, n)
}

func TestRoomService_CreateCheckJoinScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, "Alice")
	bob := env.newUser(t, "Bob")

	room, err := env.rooms.CreateRoom(ctx, "Retro", alice)
	require.NoError(t, err)

	ok, err := env.rooms.CheckRoomExists(ctx, room.Code)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = env.rooms.ListMembers(ctx, room.Code, bob)
	assert.ErrorIs(t, err, service.ErrNotMember)

	joined, err := env.rooms.JoinRoom(ctx, room.Code, bob)
	require.NoError(t, err)
	assert.Equal(t, room.ID, joined.ID)

	members, err := env.rooms.ListMembers(ctx, room.Code, bob)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Alice", members[0].DisplayName)
	assert.True(t, members[0].IsOwner)
	assert.Equal(t, "Bob", members[1].DisplayName)
	assert.False(t, members[1].IsOwner)

	_, err = env.rooms.JoinRoom(ctx, "ZZZZZZ", bob)
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

func TestRandomRoomCode_UniformAlphabet(t *testing.T) {
	const codes = 36000
	counts := make(map[rune]int)
	for i := 0; i < codes; i++ {
		code, err := service.RandomRoomCode()
		require.NoError(t, err)
		require.Len(t, code, domain.RoomCodeLength)
		for _, r := range code {
			counts[r]++
		}
	}

	// 每个字符期望 6000 次，标准差约 77；取模偏差会让 0-3 接近 6750
	require.Len(t, counts, len(domain.RoomCodeAlphabet))
	for _, r := range domain.RoomCodeAlphabet {
		assert.InDelta(t, 6000, counts[r], 400, "char %q", r)
	}
}
