package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/domain"
	"collaborative-rooms/internal/repository"
)

// RoundService 负责计划扑克的投票轮次: started -> completed。
type RoundService struct {
	roundRepo repository.RoundRepository
	roomRepo  repository.RoomRepository
	rooms     *RoomService
	publisher repository.EventPublisher
	now       Clock
}

// NewRoundService 创建 RoundService 实例
func NewRoundService(roundRepo repository.RoundRepository, roomRepo repository.RoomRepository, rooms *RoomService, publisher repository.EventPublisher, clock Clock) *RoundService {
	if roundRepo == nil || roomRepo == nil || rooms == nil {
		panic("RoundRepository, RoomRepository and RoomService cannot be nil for RoundService")
	}
	return &RoundService{
		roundRepo: roundRepo,
		roomRepo:  roomRepo,
		rooms:     rooms,
		publisher: publisher,
		now:       clockOrDefault(clock),
	}
}

// StartRound 在房间内开始新的轮次。已有进行中的轮次时返回 ErrRoundAlreadyActive。
func (s *RoundService) StartRound(ctx context.Context, code, token, title, description string) (*domain.Round, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return nil, invalid("round title is required")
	}
	if utf8.RuneCountInString(title) > domain.MaxRoundTitleLen {
		return nil, invalid(fmt.Sprintf("round title must be at most %d characters", domain.MaxRoundTitleLen))
	}
	if utf8.RuneCountInString(description) > domain.MaxRoundDescriptionLen {
		return nil, invalid(fmt.Sprintf("round description must be at most %d characters", domain.MaxRoundDescriptionLen))
	}
	room, user, err := s.rooms.RequireMember(ctx, code, token)
	if err != nil {
		return nil, err
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": room.ID, "user_id": user.ID})

	round := &domain.Round{
		RoomID:      room.ID,
		CreatorID:   user.ID,
		Title:       title,
		Description: description,
		CreatedAt:   s.now(),
	}
	if err := s.roundRepo.Create(ctx, round); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.Info("Round start rejected: another round is in progress")
			return nil, ErrRoundAlreadyActive
		}
		logCtx.WithError(err).Error("Failed to create round")
		return nil, ErrInternalServer
	}
	s.rooms.Touch(ctx, room.ID)
	publishEvent(ctx, s.publisher, domain.EventRoundStarted, room.ID, user.ID, round)
	logCtx.WithField("round_id", round.ID).Info("Round started")
	return round, nil
}

// SubmitVote 写入或覆盖调用者在轮次中的投票，只允许在 started 状态下进行
func (s *RoundService) SubmitVote(ctx context.Context, roundID uint, token, value string) error {
	value = strings.TrimSpace(value)
	if !domain.IsValidCard(value) {
		return invalid(fmt.Sprintf("%q is not a card of the deck", value))
	}
	round, err := s.findRound(ctx, roundID)
	if err != nil {
		return err
	}
	_, user, err := s.rooms.RequireMemberOfRoomID(ctx, round.RoomID, token)
	if err != nil {
		return err
	}
	if !round.IsStarted() {
		return ErrRoundCompleted
	}
	logCtx := logrus.WithFields(logrus.Fields{"round_id": round.ID, "user_id": user.ID})

	now := s.now()
	vote := &domain.Vote{RoundID: round.ID, UserID: user.ID, Value: value, CreatedAt: now, UpdatedAt: now}
	if err := s.roundRepo.UpsertVote(ctx, vote); err != nil {
		// 读取之后轮次被结束或清理
		if errors.Is(err, repository.ErrConditionFailed) {
			return ErrRoundCompleted
		}
		logCtx.WithError(err).Error("Failed to save vote")
		return ErrInternalServer
	}
	s.rooms.Touch(ctx, round.RoomID)
	// 揭晓前只广播 "已投票"，不带牌面
	publishEvent(ctx, s.publisher, domain.EventVoteCast, round.RoomID, user.ID, domain.VoteView{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		HasVoted:    true,
	})
	logCtx.Debug("Vote recorded")
	return nil
}

// CompleteRound 结束轮次并揭晓所有投票
func (s *RoundService) CompleteRound(ctx context.Context, roundID uint, token string) (*domain.RoundView, error) {
	round, err := s.findRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	_, user, err := s.rooms.RequireMemberOfRoomID(ctx, round.RoomID, token)
	if err != nil {
		return nil, err
	}
	logCtx := logrus.WithFields(logrus.Fields{"round_id": round.ID, "user_id": user.ID})

	if err := s.roundRepo.Complete(ctx, round.ID, s.now()); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, ErrRoundCompleted
		}
		logCtx.WithError(err).Error("Failed to complete round")
		return nil, ErrInternalServer
	}
	view, err := s.view(ctx, round.ID)
	if err != nil {
		return nil, err
	}
	s.rooms.Touch(ctx, round.RoomID)
	publishEvent(ctx, s.publisher, domain.EventRoundComplete, round.RoomID, user.ID, view)
	logCtx.Info("Round completed")
	return view, nil
}

// GetRound 返回轮次以及调用者可见的投票
func (s *RoundService) GetRound(ctx context.Context, roundID uint, token string) (*domain.RoundView, error) {
	round, err := s.findRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.rooms.RequireMemberOfRoomID(ctx, round.RoomID, token); err != nil {
		return nil, err
	}
	return s.view(ctx, round.ID)
}

// ActiveRound 返回房间内进行中的轮次，没有时返回 ErrRoundNotFound
func (s *RoundService) ActiveRound(ctx context.Context, code, token string) (*domain.RoundView, error) {
	room, _, err := s.rooms.RequireMember(ctx, code, token)
	if err != nil {
		return nil, err
	}
	round, err := s.roundRepo.FindActive(ctx, room.ID)
	if err != nil {
		if errors.Is(err, repository.ErrRoundNotFound) {
			return nil, ErrRoundNotFound
		}
		logrus.WithError(err).WithField("room_id", room.ID).Error("Failed to find active round")
		return nil, ErrInternalServer
	}
	return s.view(ctx, round.ID)
}

// ListRounds 返回房间最近的轮次 (不含投票)
func (s *RoundService) ListRounds(ctx context.Context, code, token string, limit int) ([]domain.Round, error) {
	room, _, err := s.rooms.RequireMember(ctx, code, token)
	if err != nil {
		return nil, err
	}
	rounds, err := s.roundRepo.ListByRoom(ctx, room.ID, limit)
	if err != nil {
		logrus.WithError(err).WithField("room_id", room.ID).Error("Failed to list rounds")
		return nil, ErrInternalServer
	}
	return rounds, nil
}

func (s *RoundService) findRound(ctx context.Context, roundID uint) (*domain.Round, error) {
	round, err := s.roundRepo.FindByID(ctx, roundID)
	if err != nil {
		if errors.Is(err, repository.ErrRoundNotFound) {
			return nil, ErrRoundNotFound
		}
		logrus.WithError(err).WithField("round_id", roundID).Error("Failed to find round")
		return nil, ErrInternalServer
	}
	return round, nil
}

// view 组装轮次视图：每个成员一行，完成前不暴露牌面
func (s *RoundService) view(ctx context.Context, roundID uint) (*domain.RoundView, error) {
	round, err := s.findRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	votes, err := s.roundRepo.ListVotes(ctx, round.ID)
	if err != nil {
		logrus.WithError(err).WithField("round_id", round.ID).Error("Failed to list votes")
		return nil, ErrInternalServer
	}
	members, err := s.roomRepo.ListMembers(ctx, round.RoomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", round.RoomID).Error("Failed to list members for round view")
		return nil, ErrInternalServer
	}
	return buildRoundView(*round, members, votes), nil
}

func buildRoundView(round domain.Round, members []domain.Member, votes []domain.Vote) *domain.RoundView {
	revealed := round.Status == domain.RoundCompleted
	byUser := make(map[uint]domain.Vote, len(votes))
	for _, v := range votes {
		byUser[v.UserID] = v
	}

	view := &domain.RoundView{Round: round, Votes: make([]domain.VoteView, 0, len(members))}
	seen := make(map[uint]bool, len(members))
	add := func(userID uint, name string) {
		vv := domain.VoteView{UserID: userID, DisplayName: name}
		if v, ok := byUser[userID]; ok {
			vv.HasVoted = true
			if revealed {
				vv.Value = v.Value
			}
		}
		view.Votes = append(view.Votes, vv)
		seen[userID] = true
	}
	for _, m := range members {
		add(m.UserID, m.DisplayName)
	}
	for _, v := range votes {
		if !seen[v.UserID] {
			add(v.UserID, domain.UnknownDisplayName)
		}
	}

	if revealed {
		var sum float64
		var n int
		for _, v := range votes {
			if x, ok := domain.CardNumber(v.Value); ok {
				sum += x
				n++
			}
		}
		if n > 0 {
			avg := sum / float64(n)
			view.Average = &avg
		}
	}
	return view
}
