package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"MediCare/internal/model"
)

type CaretakerRepository struct {
	db *gorm.DB
}

func NewCaretakerRepository(db *gorm.DB) *CaretakerRepository {
	return &CaretakerRepository{db: db}
}

// Link 建立关联，已存在时不报错
func (r *CaretakerRepository) Link(ctx context.Context, patientID, caretakerID int64) error {
	link := &model.CaretakerLink{PatientID: patientID, CaretakerID: caretakerID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "patient_id"}, {Name: "caretaker_id"}},
			DoNothing: true,
		}).
		Create(link).Error
}

// Unlink 删除关联
func (r *CaretakerRepository) Unlink(ctx context.Context, patientID, caretakerID int64) error {
	return r.db.WithContext(ctx).
		Unscoped().
		Where("patient_id = ? AND caretaker_id = ?", patientID, caretakerID).
		Delete(&model.CaretakerLink{}).Error
}

func (r *CaretakerRepository) IsLinked(ctx context.Context, patientID, caretakerID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.CaretakerLink{}).
		Where("patient_id = ? AND caretaker_id = ?", patientID, caretakerID).
		Count(&n).Error
	return n > 0, err
}

// CaretakerIDs 患者的所有照护者 PublicID
func (r *CaretakerRepository) CaretakerIDs(ctx context.Context, patientID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.CaretakerLink{}).
		Where("patient_id = ?", patientID).
		Pluck("caretaker_id", &ids).Error
	return ids, err
}

// ListPatients 照护者关联的所有患者
func (r *CaretakerRepository) ListPatients(ctx context.Context, caretakerID int64) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Joins("JOIN caretaker_links cl ON cl.patient_id = users.public_id AND cl.deleted_at IS NULL").
		Where("cl.caretaker_id = ?", caretakerID).
		Order("users.full_name ASC").
		Find(&users).Error
	return users, err
}

// ListCaretakers 患者的所有照护者
func (r *CaretakerRepository) ListCaretakers(ctx context.Context, patientID int64) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Joins("JOIN caretaker_links cl ON cl.caretaker_id = users.public_id AND cl.deleted_at IS NULL").
		Where("cl.patient_id = ?", patientID).
		Order("users.full_name ASC").
		Find(&users).Error
	return users, err
}
