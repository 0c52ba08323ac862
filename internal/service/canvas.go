package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/domain"
	"collaborative-rooms/internal/repository"
)

// CanvasService 维护房间画布的笔画日志。
// 笔画在 completed=false 时由作者不断追加点，结束后不可再修改。
type CanvasService struct {
	strokeRepo repository.StrokeRepository
	rooms      *RoomService
	publisher  repository.EventPublisher
	now        Clock
}

// NewCanvasService 创建 CanvasService 实例
func NewCanvasService(strokeRepo repository.StrokeRepository, rooms *RoomService, publisher repository.EventPublisher, clock Clock) *CanvasService {
	if strokeRepo == nil || rooms == nil {
		panic("StrokeRepository and RoomService cannot be nil for CanvasService")
	}
	return &CanvasService{
		strokeRepo: strokeRepo,
		rooms:      rooms,
		publisher:  publisher,
		now:        clockOrDefault(clock),
	}
}

// StrokeStyle 是开始笔画时的绘制参数
type StrokeStyle struct {
	Tool  domain.StrokeTool
	Color string
	Width int
}

func (st StrokeStyle) validate() error {
	if !domain.ValidTool(st.Tool) {
		return invalid(fmt.Sprintf("unknown tool %q", st.Tool))
	}
	if !domain.ValidColor(st.Color) {
		return invalid("color must be #RRGGBB")
	}
	if st.Width < domain.MinStrokeWidth || st.Width > domain.MaxStrokeWidth {
		return invalid(fmt.Sprintf("width must be between %d and %d", domain.MinStrokeWidth, domain.MaxStrokeWidth))
	}
	return nil
}

// StartStroke 在房间内开始一条新笔画
func (s *CanvasService) StartStroke(ctx context.Context, code, token string, style StrokeStyle, points []domain.Point) (*domain.StrokeView, error) {
	style.Color = strings.TrimSpace(style.Color)
	if err := style.validate(); err != nil {
		return nil, err
	}
	if len(points) > domain.MaxPointsPerStroke {
		return nil, tooManyPoints()
	}
	room, user, err := s.rooms.RequireMember(ctx, code, token)
	if err != nil {
		return nil, err
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": room.ID, "user_id": user.ID})

	now := s.now()
	stroke := &domain.Stroke{
		RoomID:    room.ID,
		AuthorID:  user.ID,
		Tool:      style.Tool,
		Color:     strings.ToLower(style.Color),
		Width:     style.Width,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := stroke.SetPoints(points); err != nil {
		logCtx.WithError(err).Error("Failed to encode stroke points")
		return nil, ErrInternalServer
	}
	if err := s.strokeRepo.Create(ctx, stroke); err != nil {
		logCtx.WithError(err).Error("Failed to save stroke")
		return nil, ErrInternalServer
	}
	view := &domain.StrokeView{Stroke: *stroke, PointList: nonNilPoints(points)}
	s.rooms.Touch(ctx, room.ID)
	publishEvent(ctx, s.publisher, domain.EventStrokeStarted, room.ID, user.ID, view)
	logCtx.WithField("stroke_id", stroke.ID).Debug("Stroke started")
	return view, nil
}

// AppendPoints 向未完成的笔画追加点，只有作者可以操作
func (s *CanvasService) AppendPoints(ctx context.Context, strokeID uint, token string, points []domain.Point) (*domain.StrokeView, error) {
	return s.extend(ctx, strokeID, token, points, false)
}

// FinishStroke 追加最后的点 (可以为空) 并封存笔画
func (s *CanvasService) FinishStroke(ctx context.Context, strokeID uint, token string, points []domain.Point) (*domain.StrokeView, error) {
	return s.extend(ctx, strokeID, token, points, true)
}

// ListStrokes 按创建顺序返回房间的全部笔画，用于重放画布
func (s *CanvasService) ListStrokes(ctx context.Context, code, token string) ([]domain.StrokeView, error) {
	room, _, err := s.rooms.RequireMember(ctx, code, token)
	if err != nil {
		return nil, err
	}
	strokes, err := s.strokeRepo.ListByRoom(ctx, room.ID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", room.ID).Error("Failed to list strokes")
		return nil, ErrInternalServer
	}
	views := make([]domain.StrokeView, 0, len(strokes))
	for _, st := range strokes {
		pts, err := st.ParsePoints()
		if err != nil {
			logrus.WithError(err).WithField("stroke_id", st.ID).Warn("Skipping stroke with unreadable points")
			continue
		}
		views = append(views, domain.StrokeView{Stroke: st, PointList: pts})
	}
	return views, nil
}

func (s *CanvasService) extend(ctx context.Context, strokeID uint, token string, points []domain.Point, finish bool) (*domain.StrokeView, error) {
	if !finish && len(points) == 0 {
		return nil, invalid("points are required")
	}
	stroke, err := s.strokeRepo.FindByID(ctx, strokeID)
	if err != nil {
		if errors.Is(err, repository.ErrStrokeNotFound) {
			return nil, ErrStrokeNotFound
		}
		logrus.WithError(err).WithField("stroke_id", strokeID).Error("Failed to find stroke")
		return nil, ErrInternalServer
	}
	_, user, err := s.rooms.RequireMemberOfRoomID(ctx, stroke.RoomID, token)
	if err != nil {
		return nil, err
	}
	if stroke.AuthorID != user.ID {
		return nil, ErrNotAuthor
	}
	if stroke.Completed {
		return nil, ErrStrokeSealed
	}
	logCtx := logrus.WithFields(logrus.Fields{"stroke_id": stroke.ID, "user_id": user.ID})

	existing, err := stroke.ParsePoints()
	if err != nil {
		logCtx.WithError(err).Error("Failed to decode stroke points")
		return nil, ErrInternalServer
	}
	if len(existing)+len(points) > domain.MaxPointsPerStroke {
		return nil, tooManyPoints()
	}
	all := append(existing, points...)
	if err := stroke.SetPoints(all); err != nil {
		logCtx.WithError(err).Error("Failed to encode stroke points")
		return nil, ErrInternalServer
	}

	now := s.now()
	if err := s.strokeRepo.UpdateOpen(ctx, stroke.ID, stroke.Points, finish, now); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, ErrStrokeSealed
		}
		logCtx.WithError(err).Error("Failed to update stroke")
		return nil, ErrInternalServer
	}
	stroke.Completed = finish
	stroke.UpdatedAt = now

	view := &domain.StrokeView{Stroke: *stroke, PointList: all}
	s.rooms.Touch(ctx, stroke.RoomID)
	eventType := domain.EventStrokeUpdated
	if finish {
		eventType = domain.EventStrokeSealed
	}
	// 推送只带本次新增的点，客户端自行拼接
	publishEvent(ctx, s.publisher, eventType, stroke.RoomID, user.ID, domain.StrokeView{Stroke: *stroke, PointList: nonNilPoints(points)})
	return view, nil
}

func tooManyPoints() error {
	return invalid(fmt.Sprintf("a stroke holds at most %d points", domain.MaxPointsPerStroke))
}

func nonNilPoints(pts []domain.Point) []domain.Point {
	if pts == nil {
		return []domain.Point{}
	}
	return pts
}
