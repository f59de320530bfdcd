package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"MediCare/internal/cache"
	"MediCare/internal/model"
	"MediCare/internal/model/dto"
	"MediCare/internal/repository"
	pkgerrors "MediCare/pkg/errors"
	"MediCare/storage/database"
	"MediCare/utils"
)

var (
	userService *UserService
	userOnce    sync.Once
)

func User() *UserService {
	userOnce.Do(func() {
		userService = NewUserService(repository.NewUserRepository(database.DB()), cache.UserCache)
	})
	return userService
}

type UserService struct {
	users UserStore
	cache cache.Store
}

func NewUserService(users UserStore, c cache.Store) *UserService {
	return &UserService{users: users, cache: c}
}

// Get 按 public_id 查询用户，带缓存
func (s *UserService) Get(ctx context.Context, userID string) (*model.User, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}

	user, err := cache.GetOrLoad(ctx, s.cache, userID, func(ctx context.Context) (*model.User, error) {
		u, err := s.users.GetByPublicID(ctx, id)
		if repository.IsNotFound(err) {
			return nil, nil
		}
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if user == nil {
		return nil, pkgerrors.UserNotFound
	}
	return user, nil
}

// GetProfile 当前用户资料
func (s *UserService) GetProfile(ctx context.Context, userID string) (*dto.UserProfile, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := toProfile(user)
	return &profile, nil
}

// UpdateProfile 修改姓名或时区
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req dto.UpdateProfileRequest) (*dto.UserProfile, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		req.FullName = &name
	}
	if req.Timezone != nil && !utils.ValidTimezone(*req.Timezone) {
		return nil, pkgerrors.InvalidRequest
	}

	if err := s.users.UpdateProfile(ctx, id, req.FullName, req.Timezone); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	_ = s.cache.Delete(ctx, userID)

	return s.GetProfile(ctx, userID)
}
