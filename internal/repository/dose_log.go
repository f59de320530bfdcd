package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"MediCare/internal/model"
)

type DoseLogRepository struct {
	db *gorm.DB
}

func NewDoseLogRepository(db *gorm.DB) *DoseLogRepository {
	return &DoseLogRepository{db: db}
}

func (r *DoseLogRepository) Create(ctx context.Context, log *model.DoseLog) error {
	return translate(r.db.WithContext(ctx).Create(log).Error)
}

// ListByUser 返回用户全部服药记录（附带药品），按服药时间倒序
func (r *DoseLogRepository) ListByUser(ctx context.Context, userID int64) ([]model.DoseLog, error) {
	var logs []model.DoseLog
	err := r.db.WithContext(ctx).
		Preload("Medication").
		Where("user_id = ?", userID).
		Order("taken_at DESC, id DESC").
		Find(&logs).Error
	return logs, err
}

// ListBetween 返回 [from, to) 区间内的服药记录
func (r *DoseLogRepository) ListBetween(ctx context.Context, userID int64, from, to time.Time) ([]model.DoseLog, error) {
	var logs []model.DoseLog
	err := r.db.WithContext(ctx).
		Preload("Medication").
		Where("user_id = ? AND taken_at >= ? AND taken_at < ?", userID, from, to).
		Order("taken_at ASC, id ASC").
		Find(&logs).Error
	return logs, err
}

// TakenTimes 只取服药时间，用于依从性计算
func (r *DoseLogRepository) TakenTimes(ctx context.Context, userID int64) ([]time.Time, error) {
	var times []time.Time
	err := r.db.WithContext(ctx).
		Model(&model.DoseLog{}).
		Where("user_id = ?", userID).
		Pluck("taken_at", &times).Error
	return times, err
}
