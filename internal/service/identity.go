package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"collaborative-rooms/internal/domain"
	"collaborative-rooms/internal/repository"
)

const maxDisplayNameLen = 64

// IdentityService 负责匿名身份的签发和会话 token 的生成。
type IdentityService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
	jwtExpiry time.Duration
	now       Clock
}

// NewIdentityService 创建 IdentityService 实例。
// jwtExpiryHours 定义会话过期的小时数。
func NewIdentityService(userRepo repository.UserRepository, jwtSecretKey string, jwtExpiryHours int, clock Clock) (*IdentityService, error) {
	if userRepo == nil {
		panic("UserRepository cannot be nil for IdentityService")
	}
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24 * 30
	}
	return &IdentityService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecretKey),
		jwtExpiry: time.Duration(jwtExpiryHours) * time.Hour,
		now:       clockOrDefault(clock),
	}, nil
}

// Identity 是 Identify 的结果
type Identity struct {
	User    *domain.User
	Token   string // 匿名 token，客户端持久保存
	Session string // 签名的会话 JWT
	Created bool
}

// Identify 返回 token 对应的用户；token 为空时签发新 token，
// token 未知时 (客户端自行生成的 UUID) 以它创建新用户。
func (s *IdentityService) Identify(ctx context.Context, displayName, token string) (*Identity, error) {
	displayName = strings.TrimSpace(displayName)
	if utf8.RuneCountInString(displayName) > maxDisplayNameLen {
		return nil, invalid(fmt.Sprintf("display name must be at most %d characters", maxDisplayNameLen))
	}
	token = strings.TrimSpace(token)
	now := s.now()

	if token != "" {
		if _, err := uuid.Parse(token); err != nil {
			return nil, invalid("token must be a UUID")
		}
		user, err := s.userRepo.FindByToken(ctx, token)
		switch {
		case err == nil:
			if err := s.userRepo.Touch(ctx, user.ID, displayName, now); err != nil {
				logrus.WithError(err).WithField("user_id", user.ID).Error("Failed to touch user during identify")
				return nil, ErrInternalServer
			}
			if displayName != "" {
				user.DisplayName = displayName
			}
			user.LastActiveAt = now
			return s.identityFor(user, false)
		case !errors.Is(err, repository.ErrUserNotFound):
			logrus.WithError(err).Error("Failed to look up user by token")
			return nil, ErrInternalServer
		}
	} else {
		token = uuid.NewString()
	}

	if displayName == "" {
		displayName = "Guest " + strings.ToUpper(token[:4])
	}
	user := &domain.User{
		DisplayName:  displayName,
		Token:        token,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// 并发的首次访问使用了同一个 token，读取胜出者
			existing, findErr := s.userRepo.FindByToken(ctx, token)
			if findErr == nil {
				return s.identityFor(existing, false)
			}
		}
		logrus.WithError(err).Error("Failed to create anonymous user")
		return nil, ErrInternalServer
	}
	logrus.WithField("user_id", user.ID).Info("Anonymous user created")
	return s.identityFor(user, true)
}

// CurrentUser 根据匿名 token 返回用户
func (s *IdentityService) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	return resolveUser(ctx, s.userRepo, token)
}

func (s *IdentityService) identityFor(user *domain.User, created bool) (*Identity, error) {
	session, err := s.generateJWT(user)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("Failed to sign session token")
		return nil, ErrInternalServer
	}
	return &Identity{User: user, Token: user.Token, Session: session, Created: created}, nil
}

// generateJWT 为用户生成会话 JWT
func (s *IdentityService) generateJWT(user *domain.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"token":   user.Token,
		"exp":     now.Add(s.jwtExpiry).Unix(),
		"iat":     now.Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// resolveUser 把匿名 token 解析为用户，未知 token 返回 ErrUserNotFound
func resolveUser(ctx context.Context, userRepo repository.UserRepository, token string) (*domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrUnauthenticated
	}
	user, err := userRepo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		logrus.WithError(err).Error("Failed to resolve user token")
		return nil, ErrInternalServer
	}
	return user, nil
}
