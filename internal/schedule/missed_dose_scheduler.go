package schedule

// 漏服调度器：周期扫描患者，本地时间过了检查点且当天没有服药记录时，提醒其照护者

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"MediCare/config"
	"MediCare/internal/adherence"
	"MediCare/internal/cache"
	"MediCare/internal/model"
	"MediCare/internal/queue"
	"MediCare/internal/repository"
	"MediCare/pkg/logger"
	"MediCare/storage/database"
	"MediCare/utils"
)

const (
	pageSize    = 200
	scanLockKey = "scheduler:missed_dose"
)

type PatientPager interface {
	ListPatients(ctx context.Context, afterID int64, limit int) ([]model.User, error)
}

type CaretakerLookup interface {
	CaretakerIDs(ctx context.Context, patientID int64) ([]int64, error)
}

type TakenTimes interface {
	TakenTimes(ctx context.Context, userID int64) ([]time.Time, error)
}

// AlertMarker 每位患者每个本地日期只提醒一次
type AlertMarker interface {
	TryMark(ctx context.Context, patientID int64, date string) (bool, error)
	Release(ctx context.Context, patientID int64, date string) error
}

type MissedDosePublisher interface {
	PublishMissedDose(ctx context.Context, msg model.MissedDoseMessage) error
}

type MissedDoseScheduler struct {
	patients   PatientPager
	caretakers CaretakerLookup
	logs       TakenTimes
	marker     AlertMarker
	publisher  MissedDosePublisher
	checkAt    string
	now        func() time.Time
}

var (
	schedulerOnce sync.Once
	schedulerInst *MissedDoseScheduler
)

func GetMissedDoseScheduler() *MissedDoseScheduler {
	schedulerOnce.Do(func() {
		db := database.DB()
		schedulerInst = NewMissedDoseScheduler(
			repository.NewUserRepository(db),
			repository.NewCaretakerRepository(db),
			repository.NewDoseLogRepository(db),
			redisAlertMarker{},
			queue.Producer{},
			config.Cfg.MissedDoseCheckAt,
		)
	})
	return schedulerInst
}

func NewMissedDoseScheduler(
	patients PatientPager,
	caretakers CaretakerLookup,
	logs TakenTimes,
	marker AlertMarker,
	publisher MissedDosePublisher,
	checkAt string,
) *MissedDoseScheduler {
	return &MissedDoseScheduler{
		patients:   patients,
		caretakers: caretakers,
		logs:       logs,
		marker:     marker,
		publisher:  publisher,
		checkAt:    checkAt,
		now:        time.Now,
	}
}

// RunOnce 在分布式锁保护下执行一次扫描，多实例时只有一个生效
func (s *MissedDoseScheduler) RunOnce(ctx context.Context, ttl time.Duration) error {
	lock, err := cache.TryLock(ctx, scanLockKey, ttl)
	if err != nil {
		return fmt.Errorf("failed to acquire scheduler lock: %w", err)
	}
	if lock == nil {
		logger.Logger.Info("Missed dose scan already running on another instance, skipping")
		return nil
	}
	defer func() {
		if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
			logger.Logger.Warn("Failed to release scheduler lock", zap.Error(err))
		}
	}()

	_, err = s.Scan(ctx)
	return err
}

// Scan 遍历所有患者，返回本次发出的提醒数
func (s *MissedDoseScheduler) Scan(ctx context.Context) (int, error) {
	start := s.now()
	logger.Logger.Info("Starting missed dose scan", zap.Time("start_time", start))

	var afterID int64
	alerts := 0
	for {
		if err := ctx.Err(); err != nil {
			return alerts, err
		}

		users, err := s.patients.ListPatients(ctx, afterID, pageSize)
		if err != nil {
			return alerts, fmt.Errorf("failed to list patients: %w", err)
		}

		for i := range users {
			sent, err := s.check(ctx, &users[i], start)
			if err != nil {
				// 单个患者失败不影响其他患者
				logger.Logger.Warn("Missed dose check failed",
					zap.Int64("patient_id", users[i].PublicID),
					zap.Error(err),
				)
				continue
			}
			if sent {
				alerts++
			}
		}

		if len(users) < pageSize {
			break
		}
		afterID = users[len(users)-1].ID
	}

	logger.Logger.Info("Missed dose scan finished",
		zap.Int("alerts", alerts),
		zap.Duration("elapsed", s.now().Sub(start)),
	)
	return alerts, nil
}

func (s *MissedDoseScheduler) check(ctx context.Context, user *model.User, now time.Time) (bool, error) {
	loc := utils.LoadLocation(user.Timezone, config.Cfg.DefaultTimezone)
	local := now.In(loc)

	due, err := utils.ParseTime(s.checkAt, local)
	if err != nil {
		return false, fmt.Errorf("invalid check time %q: %w", s.checkAt, err)
	}
	if local.Before(due) {
		return false, nil
	}

	caretakerIDs, err := s.caretakers.CaretakerIDs(ctx, user.PublicID)
	if err != nil {
		return false, err
	}
	if len(caretakerIDs) == 0 {
		return false, nil
	}

	times, err := s.logs.TakenTimes(ctx, user.PublicID)
	if err != nil {
		return false, err
	}
	taken := adherence.FromTimes(times, loc)
	if taken.Has(local) {
		return false, nil
	}

	date := adherence.DayKey(local)
	ok, err := s.marker.TryMark(ctx, user.PublicID, date)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	msg := model.MissedDoseMessage{
		PatientID:    user.PublicID,
		Date:         date,
		StreakBefore: adherence.ComputeStreakWithLimit(taken, local.AddDate(0, 0, -1), config.Cfg.StreakMaxDays),
		CaretakerIDs: caretakerIDs,
	}
	if err := s.publisher.PublishMissedDose(ctx, msg); err != nil {
		if relErr := s.marker.Release(ctx, user.PublicID, date); relErr != nil {
			logger.Logger.Warn("Release missed dose mark failed",
				zap.Int64("patient_id", user.PublicID),
				zap.String("date", date),
				zap.Error(relErr),
			)
		}
		return false, err
	}
	return true, nil
}

type redisAlertMarker struct{}

func (redisAlertMarker) TryMark(ctx context.Context, patientID int64, date string) (bool, error) {
	return cache.TryMarkMissedAlert(ctx, patientID, date)
}

func (redisAlertMarker) Release(ctx context.Context, patientID int64, date string) error {
	return cache.ReleaseMissedAlert(ctx, patientID, date)
}
