package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"MediCare/config"
	"MediCare/internal/model"
	"MediCare/internal/model/dto"
	"MediCare/internal/repository"
	pkgerrors "MediCare/pkg/errors"
	"MediCare/pkg/logger"
	"MediCare/pkg/snowflake"
	"MediCare/pkg/token"
	"MediCare/storage/database"
	"MediCare/utils"
)

const minPasswordLength = 6

var (
	authService *AuthService
	authOnce    sync.Once
)

func Auth() *AuthService {
	authOnce.Do(func() {
		authService = NewAuthService(repository.NewUserRepository(database.DB()), redisTokenStore{})
	})
	return authService
}

type AuthService struct {
	users      UserStore
	tokens     TokenStore
	hashCost   int
	generateID func() (int64, error)
}

func NewAuthService(users UserStore, tokens TokenStore) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		hashCost:   bcrypt.DefaultCost,
		generateID: snowflake.NextID,
	}
}

// SignUp 邮箱注册，成功后直接登录
func (s *AuthService) SignUp(ctx context.Context, req dto.SignUpRequest) (*dto.AuthResponse, error) {
	email := utils.NormalizeEmail(req.Email)
	if !utils.ValidateEmail(email) || len(req.Password) < minPasswordLength {
		return nil, pkgerrors.InvalidRequest
	}

	role := model.UserRole(strings.ToLower(strings.TrimSpace(req.Role)))
	if role == "" {
		role = model.UserRolePatient
	}
	if !role.IsValid() {
		return nil, pkgerrors.InvalidRequest
	}

	timezone := config.Cfg.DefaultTimezone
	if req.Timezone != "" {
		if !utils.ValidTimezone(req.Timezone) {
			return nil, pkgerrors.InvalidRequest
		}
		timezone = req.Timezone
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	publicID, err := s.generateID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user ID: %w", err)
	}

	user := &model.User{
		PublicID:     publicID,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         role,
		Timezone:     timezone,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, pkgerrors.EmailAlreadyRegistered
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.Logger.Info("User signed up",
		zap.Int64("public_id", publicID),
		zap.String("role", string(role)),
	)

	return s.issue(ctx, user)
}

// SignIn 邮箱密码登录，邮箱不存在与密码错误返回同一个错误码
func (s *AuthService) SignIn(ctx context.Context, req dto.SignInRequest) (*dto.AuthResponse, error) {
	email := utils.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, pkgerrors.InvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, pkgerrors.InvalidCredentials
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, pkgerrors.InvalidCredentials
	}

	return s.issue(ctx, user)
}

// Refresh 校验并轮换 refresh token，旧 token 立即失效
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*dto.AuthResponse, error) {
	userID, err := token.ValidateRefreshToken(refreshToken)
	if err != nil {
		logger.Logger.Debug("Refresh token rejected", zap.Error(err))
		return nil, pkgerrors.Unauthorized
	}

	ok, err := s.tokens.Matches(ctx, userID, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to check refresh token: %w", err)
	}
	if !ok {
		return nil, pkgerrors.Unauthorized
	}

	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByPublicID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, pkgerrors.Unauthorized
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return s.issue(ctx, user)
}

// SignOut 删除 refresh token，access token 自然过期
func (s *AuthService) SignOut(ctx context.Context, userID string) error {
	if err := s.tokens.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

func (s *AuthService) issue(ctx context.Context, user *model.User) (*dto.AuthResponse, error) {
	uid := formatUserID(user.PublicID)
	pair, err := token.GenerateTokenPair(uid, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	if err := s.tokens.Set(ctx, uid, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &dto.AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		User:         toProfile(user),
	}, nil
}

func toProfile(user *model.User) dto.UserProfile {
	return dto.UserProfile{
		ID:       formatUserID(user.PublicID),
		Email:    user.Email,
		FullName: user.FullName,
		Role:     string(user.Role),
		Timezone: user.Timezone,
	}
}
