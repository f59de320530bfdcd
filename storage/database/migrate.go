package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"MediCare/internal/model"
	"MediCare/pkg/logger"
)

// Migrate 创建或更新所有表，只由 server 在启动时调用
func Migrate() error {
	db := DB()
	if db == nil {
		return gorm.ErrInvalidDB
	}

	logger.Logger.Info("Starting database migration...")

	err := db.AutoMigrate(
		&model.User{},
		&model.Medication{},
		&model.DoseLog{},
		&model.CaretakerLink{},
	)
	if err != nil {
		logger.Logger.Error("Database migration failed", zap.Error(err))
		return err
	}

	logger.Logger.Info("Database migration completed successfully")
	return nil
}
