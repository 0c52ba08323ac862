package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/domain"
	"collaborative-rooms/internal/repository"
)

const maxCodeAttempts = 10

// RoomService 负责房间注册和成员关系。
type RoomService struct {
	roomRepo  repository.RoomRepository
	userRepo  repository.UserRepository
	publisher repository.EventPublisher
	now       Clock
	// newCode 生成候选房间码，测试中可以替换以制造冲突
	newCode func() (string, error)
}

// NewRoomService 创建 RoomService 实例。publisher 可以为 nil。
func NewRoomService(roomRepo repository.RoomRepository, userRepo repository.UserRepository, publisher repository.EventPublisher, clock Clock) *RoomService {
	if roomRepo == nil || userRepo == nil {
		panic("RoomRepository and UserRepository cannot be nil for RoomService")
	}
	return &RoomService{
		roomRepo:  roomRepo,
		userRepo:  userRepo,
		publisher: publisher,
		now:       clockOrDefault(clock),
		newCode:   randomRoomCode,
	}
}

// CreateRoom 创建房间并把房主加入成员，两者在同一事务中完成。
// 房间码冲突时重新生成，最多尝试 maxCodeAttempts 次。
func (s *RoomService) CreateRoom(ctx context.Context, name, ownerToken string) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("room name is required")
	}
	if utf8.RuneCountInString(name) > domain.MaxRoomNameLen {
		return nil, invalid(fmt.Sprintf("room name must be at most %d characters", domain.MaxRoomNameLen))
	}
	owner, err := resolveUser(ctx, s.userRepo, ownerToken)
	if err != nil {
		return nil, err
	}
	logCtx := logrus.WithField("owner_id", owner.ID)

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			logCtx.WithError(err).Error("Failed to generate room code")
			return nil, ErrInternalServer
		}
		now := s.now()
		room := &domain.Room{
			Name:         name,
			Code:         code,
			OwnerID:      owner.ID,
			CreatedAt:    now,
			LastActiveAt: now,
		}
		err = s.roomRepo.CreateWithOwner(ctx, room)
		if err == nil {
			logCtx.WithFields(logrus.Fields{"room_id": room.ID, "room_code": room.Code}).Info("Room created successfully")
			return room, nil
		}
		if !errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Error("Failed to save new room")
			return nil, ErrInternalServer
		}
		logCtx.WithField("room_code", code).Warnf("Room code already taken, retrying (attempt %d)", attempt)
	}
	logCtx.Errorf("Failed to allocate a unique room code after %d attempts", maxCodeAttempts)
	return nil, ErrInternalServer
}

// CheckRoomExists 只读检查房间码是否存在
func (s *RoomService) CheckRoomExists(ctx context.Context, code string) (bool, error) {
	code = domain.NormalizeRoomCode(code)
	if code == "" {
		return false, nil
	}
	_, err := s.roomRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return false, nil
		}
		logrus.WithError(err).WithField("room_code", code).Error("Failed to check room existence")
		return false, ErrInternalServer
	}
	return true, nil
}

// JoinRoom 通过房间码加入房间。重复加入是幂等的。
func (s *RoomService) JoinRoom(ctx context.Context, code, token string) (*domain.Room, error) {
	user, err := resolveUser(ctx, s.userRepo, token)
	if err != nil {
		return nil, err
	}
	room, err := s.findRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	logCtx := logrus.WithFields(logrus.Fields{"user_id": user.ID, "room_id": room.ID})

	wasMember, err := s.roomRepo.IsMember(ctx, room.ID, user.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check membership")
		return nil, ErrInternalServer
	}
	now := s.now()
	if err := s.roomRepo.AddMember(ctx, room.ID, user.ID, now); err != nil {
		logCtx.WithError(err).Error("Failed to add member")
		return nil, ErrInternalServer
	}
	if err := s.roomRepo.TouchActivity(ctx, room.ID, now); err != nil {
		logCtx.WithError(err).Warn("Failed to update room activity")
	}
	if !wasMember {
		publishEvent(ctx, s.publisher, domain.EventMemberJoined, room.ID, user.ID, domain.Member{
			UserID:      user.ID,
			DisplayName: user.DisplayName,
			IsOwner:     room.OwnerID == user.ID,
			JoinedAt:    now,
		})
	}
	logCtx.WithField("already_member", wasMember).Info("User joined room")
	return room, nil
}

// ListMembers 返回房间成员，调用者必须是成员
func (s *RoomService) ListMembers(ctx context.Context, code, token string) ([]domain.Member, error) {
	room, _, err := s.RequireMember(ctx, code, token)
	if err != nil {
		return nil, err
	}
	members, err := s.roomRepo.ListMembers(ctx, room.ID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", room.ID).Error("Failed to list members")
		return nil, ErrInternalServer
	}
	return members, nil
}

// ListRoomsForUser 返回用户加入的所有房间
func (s *RoomService) ListRoomsForUser(ctx context.Context, token string) ([]domain.Room, error) {
	user, err := resolveUser(ctx, s.userRepo, token)
	if err != nil {
		return nil, err
	}
	rooms, err := s.roomRepo.ListForUser(ctx, user.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("Failed to list rooms for user")
		return nil, ErrInternalServer
	}
	return rooms, nil
}

// RequireMember 解析房间码和用户，并确认用户是房间成员
func (s *RoomService) RequireMember(ctx context.Context, code, token string) (*domain.Room, *domain.User, error) {
	user, err := resolveUser(ctx, s.userRepo, token)
	if err != nil {
		return nil, nil, err
	}
	room, err := s.findRoom(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkMember(ctx, room.ID, user.ID); err != nil {
		return nil, nil, err
	}
	return room, user, nil
}

// RequireMemberOfRoomID 与 RequireMember 相同，但以房间 ID 定位
func (s *RoomService) RequireMemberOfRoomID(ctx context.Context, roomID uint, token string) (*domain.Room, *domain.User, error) {
	user, err := resolveUser(ctx, s.userRepo, token)
	if err != nil {
		return nil, nil, err
	}
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to find room by id")
		return nil, nil, ErrInternalServer
	}
	if err := s.checkMember(ctx, room.ID, user.ID); err != nil {
		return nil, nil, err
	}
	return room, user, nil
}

// Touch 记录房间活动，供其他服务在写入后调用
func (s *RoomService) Touch(ctx context.Context, roomID uint) {
	if err := s.roomRepo.TouchActivity(ctx, roomID, s.now()); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Warn("Failed to update room activity")
	}
}

func (s *RoomService) findRoom(ctx context.Context, code string) (*domain.Room, error) {
	code = domain.NormalizeRoomCode(code)
	if code == "" {
		return nil, ErrRoomNotFound
	}
	room, err := s.roomRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_code", code).Error("Failed to find room by code")
		return nil, ErrInternalServer
	}
	return room, nil
}

func (s *RoomService) checkMember(ctx context.Context, roomID, userID uint) error {
	ok, err := s.roomRepo.IsMember(ctx, roomID, userID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).Error("Failed to check membership")
		return ErrInternalServer
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

// randomRoomCode 生成 6 位大写字母数字房间码，每个字符均匀取自字母表
func randomRoomCode() (string, error) {
	alphabetLen := big.NewInt(int64(len(domain.RoomCodeAlphabet)))
	b := make([]byte, domain.RoomCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random index: %w", err)
		}
		b[i] = domain.RoomCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}
