package repository

import (
	"context"

	"gorm.io/gorm"

	"MediCare/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create 邮箱重复时返回 ErrDuplicate
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *UserRepository) GetByPublicID(ctx context.Context, publicID int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("public_id = ?", publicID).Take(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile 只更新非空字段
func (r *UserRepository) UpdateProfile(ctx context.Context, publicID int64, fullName, timezone *string) error {
	updates := map[string]interface{}{}
	if fullName != nil {
		updates["full_name"] = *fullName
	}
	if timezone != nil {
		updates["timezone"] = *timezone
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.User{}).Where("public_id = ?", publicID).Updates(updates).Error
}

// ListPatients 按主键游标分页遍历患者，供定时任务使用
func (r *UserRepository) ListPatients(ctx context.Context, afterID int64, limit int) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND id > ?", model.UserRolePatient, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}
