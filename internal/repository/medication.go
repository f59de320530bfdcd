package repository

import (
	"context"

	"gorm.io/gorm"

	"MediCare/internal/model"
)

type MedicationRepository struct {
	db *gorm.DB
}

func NewMedicationRepository(db *gorm.DB) *MedicationRepository {
	return &MedicationRepository{db: db}
}

func (r *MedicationRepository) Create(ctx context.Context, med *model.Medication) error {
	return translate(r.db.WithContext(ctx).Create(med).Error)
}

// ListByUser 按创建时间倒序
func (r *MedicationRepository) ListByUser(ctx context.Context, userID int64) ([]model.Medication, error) {
	var meds []model.Medication
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&meds).Error
	return meds, err
}

// GetForUser 只返回属于 userID 的药品
func (r *MedicationRepository) GetForUser(ctx context.Context, userID, id int64) (*model.Medication, error) {
	var med model.Medication
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Take(&med).Error; err != nil {
		return nil, err
	}
	return &med, nil
}

// CountByUser 用于判断患者今天是否有需要服用的药
func (r *MedicationRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Medication{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}
