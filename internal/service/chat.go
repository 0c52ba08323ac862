package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/domain"
	"collaborative-rooms/internal/repository"
)

const (
	DefaultChatHistory = 100
	MaxChatHistory     = 500
)

// ChatService 维护房间的聊天 / 猜词日志。
type ChatService struct {
	chatRepo  repository.ChatRepository
	userRepo  repository.UserRepository
	rooms     *RoomService
	publisher repository.EventPublisher
	now       Clock
}

// NewChatService 创建 ChatService 实例
func NewChatService(chatRepo repository.ChatRepository, userRepo repository.UserRepository, rooms *RoomService, publisher repository.EventPublisher, clock Clock) *ChatService {
	if chatRepo == nil || userRepo == nil || rooms == nil {
		panic("ChatRepository, UserRepository and RoomService cannot be nil for ChatService")
	}
	return &ChatService{
		chatRepo:  chatRepo,
		userRepo:  userRepo,
		rooms:     rooms,
		publisher: publisher,
		now:       clockOrDefault(clock),
	}
}

// Send 发送一条聊天消息。IsGuess 目前总是 false，没有猜词匹配。
func (s *ChatService) Send(ctx context.Context, code, token, text string) (*domain.ChatEntry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("message text is required")
	}
	if utf8.RuneCountInString(text) > domain.MaxChatTextLen {
		return nil, invalid(fmt.Sprintf("message must be at most %d characters", domain.MaxChatTextLen))
	}
	room, user, err := s.rooms.RequireMember(ctx, code, token)
	if err != nil {
		return nil, err
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": room.ID, "user_id": user.ID})

	msg := &domain.ChatMessage{
		RoomID:    room.ID,
		AuthorID:  user.ID,
		Text:      text,
		CreatedAt: s.now(),
	}
	if err := s.chatRepo.Create(ctx, msg); err != nil {
		logCtx.WithError(err).Error("Failed to save chat message")
		return nil, ErrInternalServer
	}
	entry := &domain.ChatEntry{ChatMessage: *msg, AuthorName: user.DisplayName}
	s.rooms.Touch(ctx, room.ID)
	publishEvent(ctx, s.publisher, domain.EventChatMessage, room.ID, user.ID, entry)
	return entry, nil
}

// List 返回房间最近的消息 (旧到新)，作者已不存在时使用占位名
func (s *ChatService) List(ctx context.Context, code, token string, limit int) ([]domain.ChatEntry, error) {
	if limit <= 0 {
		limit = DefaultChatHistory
	}
	if limit > MaxChatHistory {
		limit = MaxChatHistory
	}
	room, _, err := s.rooms.RequireMember(ctx, code, token)
	if err != nil {
		return nil, err
	}
	msgs, err := s.chatRepo.ListRecent(ctx, room.ID, limit)
	if err != nil {
		logrus.WithError(err).WithField("room_id", room.ID).Error("Failed to list chat messages")
		return nil, ErrInternalServer
	}

	ids := make([]uint, 0, len(msgs))
	seen := make(map[uint]bool, len(msgs))
	for _, m := range msgs {
		if !seen[m.AuthorID] {
			seen[m.AuthorID] = true
			ids = append(ids, m.AuthorID)
		}
	}
	names := make(map[uint]string, len(ids))
	if len(ids) > 0 {
		users, err := s.userRepo.FindByIDs(ctx, ids)
		if err != nil {
			logrus.WithError(err).WithField("room_id", room.ID).Warn("Failed to load chat author names")
		}
		for _, u := range users {
			names[u.ID] = u.DisplayName
		}
	}

	entries := make([]domain.ChatEntry, 0, len(msgs))
	for _, m := range msgs {
		name, ok := names[m.AuthorID]
		if !ok || name == "" {
			name = domain.UnknownDisplayName
		}
		entries = append(entries, domain.ChatEntry{ChatMessage: m, AuthorName: name})
	}
	return entries, nil
}
