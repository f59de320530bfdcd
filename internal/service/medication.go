package service

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"MediCare/internal/cache"
	"MediCare/internal/model"
	"MediCare/internal/model/dto"
	"MediCare/internal/repository"
	pkgerrors "MediCare/pkg/errors"
	"MediCare/pkg/logger"
	"MediCare/storage/database"
)

const minMedicationNameLength = 2

var (
	medicationService *MedicationService
	medicationOnce    sync.Once
)

func Medication() *MedicationService {
	medicationOnce.Do(func() {
		medicationService = NewMedicationService(repository.NewMedicationRepository(database.DB()), cache.MedicationsCache)
	})
	return medicationService
}

type MedicationService struct {
	meds  MedicationStore
	cache cache.Store
}

func NewMedicationService(meds MedicationStore, c cache.Store) *MedicationService {
	return &MedicationService{meds: meds, cache: c}
}

// medicationList 缓存值，空列表也作为正常值缓存
type medicationList struct {
	Items []model.Medication `json:"items"`
}

// List 当前用户的全部药品
func (s *MedicationService) List(ctx context.Context, userID string) ([]model.Medication, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}

	list, err := cache.GetOrLoad(ctx, s.cache, userID, func(ctx context.Context) (*medicationList, error) {
		items, err := s.meds.ListByUser(ctx, id)
		if err != nil {
			return nil, err
		}
		return &medicationList{Items: items}, nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}
	if list == nil || list.Items == nil {
		return []model.Medication{}, nil
	}
	return list.Items, nil
}

// Create 新增药品，名称去除首尾空白后至少 2 个字符
func (s *MedicationService) Create(ctx context.Context, userID string, req dto.CreateMedicationRequest) (*model.Medication, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if utf8.RuneCountInString(name) < minMedicationNameLength {
		return nil, pkgerrors.MedicationNameInvalid
	}

	med := &model.Medication{
		UserID:    id,
		Name:      name,
		Dosage:    trimOptional(req.Dosage),
		Frequency: trimOptional(req.Frequency),
	}
	if err := s.meds.Create(ctx, med); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}

	if err := s.cache.Delete(ctx, userID); err != nil {
		logger.Logger.Warn("Failed to invalidate medications cache",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	return med, nil
}

// Get 只能读取自己的药品
func (s *MedicationService) Get(ctx context.Context, userID int64, medicationID int64) (*model.Medication, error) {
	med, err := s.meds.GetForUser(ctx, userID, medicationID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, pkgerrors.MedicationNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}
	return med, nil
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
