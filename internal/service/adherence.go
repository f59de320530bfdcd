package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"MediCare/config"
	"MediCare/internal/adherence"
	"MediCare/internal/cache"
	"MediCare/internal/model"
	"MediCare/internal/model/dto"
	"MediCare/internal/repository"
	pkgerrors "MediCare/pkg/errors"
	"MediCare/pkg/logger"
	"MediCare/storage/database"
)

const monthLayout = "2006-01"

var (
	adherenceService *AdherenceService
	adherenceOnce    sync.Once
)

func Adherence() *AdherenceService {
	adherenceOnce.Do(func() {
		db := database.DB()
		adherenceService = NewAdherenceService(
			repository.NewUserRepository(db),
			repository.NewMedicationRepository(db),
			repository.NewDoseLogRepository(db),
			cache.AdherenceCache,
		)
	})
	return adherenceService
}

type AdherenceService struct {
	users UserStore
	meds  MedicationStore
	logs  DoseLogStore
	cache cache.Store
	now   func() time.Time
}

func NewAdherenceService(users UserStore, meds MedicationStore, logs DoseLogStore, c cache.Store) *AdherenceService {
	return &AdherenceService{users: users, meds: meds, logs: logs, cache: c, now: time.Now}
}

// takenDays 缓存值，时区变化后需要重新计算
type takenDays struct {
	Timezone string   `json:"timezone"`
	Days     []string `json:"days"`
}

// Summary 当前用户在其时区"今天"的连续天数与本月服药率
func (s *AdherenceService) Summary(ctx context.Context, userID string) (*dto.AdherenceSummary, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.SummaryFor(ctx, user)
}

func (s *AdherenceService) SummaryFor(ctx context.Context, user *model.User) (*dto.AdherenceSummary, error) {
	loc := userLocation(user.Timezone)
	taken, err := s.takenDates(ctx, user, loc)
	if err != nil {
		return nil, err
	}

	summary := adherence.Summarize(taken, s.now().In(loc), config.Cfg.StreakMaxDays)
	return &dto.AdherenceSummary{Summary: summary, Timezone: loc.String()}, nil
}

// Calendar 月历，month 为空时取用户时区的当月
func (s *AdherenceService) Calendar(ctx context.Context, userID, month string) (*dto.CalendarResponse, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.CalendarFor(ctx, user, month)
}

func (s *AdherenceService) CalendarFor(ctx context.Context, user *model.User, month string) (*dto.CalendarResponse, error) {
	loc := userLocation(user.Timezone)
	today := s.now().In(loc)

	target := today
	if month != "" {
		m, err := time.ParseInLocation(monthLayout, month, loc)
		if err != nil {
			return nil, pkgerrors.InvalidRequest
		}
		target = m
	}

	taken, err := s.takenDates(ctx, user, loc)
	if err != nil {
		return nil, err
	}

	return &dto.CalendarResponse{
		Month:    target.Format(monthLayout),
		Timezone: loc.String(),
		Days:     adherence.MonthCalendar(taken, target, today),
	}, nil
}

// Day 某一天已服的记录与尚未服用的药品
func (s *AdherenceService) Day(ctx context.Context, userID, date string) (*dto.DayResponse, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.DayFor(ctx, user, date)
}

func (s *AdherenceService) DayFor(ctx context.Context, user *model.User, date string) (*dto.DayResponse, error) {
	loc := userLocation(user.Timezone)
	day := s.now().In(loc)
	if date != "" {
		d, err := adherence.ParseDay(date, loc)
		if err != nil {
			return nil, pkgerrors.InvalidRequest
		}
		day = d
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

	logs, err := s.logs.ListBetween(ctx, user.PublicID, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}
	meds, err := s.meds.ListByUser(ctx, user.PublicID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}

	takenMeds := make(map[int64]struct{}, len(logs))
	for _, l := range logs {
		takenMeds[l.MedicationID] = struct{}{}
	}
	pending := make([]model.Medication, 0, len(meds))
	for _, m := range meds {
		if _, ok := takenMeds[m.ID]; !ok {
			pending = append(pending, m)
		}
	}
	if logs == nil {
		logs = []model.DoseLog{}
	}

	return &dto.DayResponse{Date: adherence.DayKey(start), Taken: logs, Pending: pending}, nil
}

func (s *AdherenceService) user(ctx context.Context, userID string) (*model.User, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByPublicID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, pkgerrors.UserNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}
	return user, nil
}

// takenDates 用户时区下的已服药日期集合，按用户缓存
func (s *AdherenceService) takenDates(ctx context.Context, user *model.User, loc *time.Location) (adherence.TakenDates, error) {
	key := formatUserID(user.PublicID)

	var cached takenDays
	hit, _, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		logger.Logger.Warn("Adherence cache read failed", zap.String("user_id", key), zap.Error(err))
	}
	if hit && cached.Timezone == loc.String() {
		return adherence.NewTakenDates(cached.Days...), nil
	}

	times, err := s.logs.TakenTimes(ctx, user.PublicID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}
	taken := adherence.FromTimes(times, loc)

	if err := s.cache.Set(ctx, key, takenDays{Timezone: loc.String(), Days: taken.Keys()}); err != nil {
		logger.Logger.Warn("Adherence cache write failed", zap.String("user_id", key), zap.Error(err))
	}
	return taken, nil
}
