package service

import (
	"context"
	"time"

	"MediCare/internal/cache"
	"MediCare/internal/model"
)

// 服务层依赖的存储接口，默认由 repository 包实现，测试中替换为内存实现

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByPublicID(ctx context.Context, publicID int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, publicID int64, fullName, timezone *string) error
}

type MedicationStore interface {
	Create(ctx context.Context, med *model.Medication) error
	ListByUser(ctx context.Context, userID int64) ([]model.Medication, error)
	GetForUser(ctx context.Context, userID, id int64) (*model.Medication, error)
}

type DoseLogStore interface {
	Create(ctx context.Context, log *model.DoseLog) error
	ListByUser(ctx context.Context, userID int64) ([]model.DoseLog, error)
	ListBetween(ctx context.Context, userID int64, from, to time.Time) ([]model.DoseLog, error)
	TakenTimes(ctx context.Context, userID int64) ([]time.Time, error)
}

type CaretakerStore interface {
	Link(ctx context.Context, patientID, caretakerID int64) error
	Unlink(ctx context.Context, patientID, caretakerID int64) error
	IsLinked(ctx context.Context, patientID, caretakerID int64) (bool, error)
	ListPatients(ctx context.Context, caretakerID int64) ([]model.User, error)
	ListCaretakers(ctx context.Context, patientID int64) ([]model.User, error)
}

// ObjectStore 服药照片存储
type ObjectStore interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
	SignedURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

// EventPublisher 服药事件发布
type EventPublisher interface {
	PublishDoseLogged(ctx context.Context, msg model.DoseLoggedMessage) error
}

// TokenStore 保存每个用户当前有效的 refresh token
type TokenStore interface {
	Set(ctx context.Context, userID, refreshToken string) error
	Delete(ctx context.Context, userID string) error
	Matches(ctx context.Context, userID, refreshToken string) (bool, error)
}

type redisTokenStore struct{}

func (redisTokenStore) Set(ctx context.Context, userID, refreshToken string) error {
	return cache.SetRefreshToken(ctx, userID, refreshToken)
}

func (redisTokenStore) Delete(ctx context.Context, userID string) error {
	return cache.DeleteRefreshToken(ctx, userID)
}

func (redisTokenStore) Matches(ctx context.Context, userID, refreshToken string) (bool, error) {
	return cache.RefreshTokenMatches(ctx, userID, refreshToken)
}
