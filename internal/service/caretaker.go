package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"MediCare/internal/model"
	"MediCare/internal/model/dto"
	"MediCare/internal/repository"
	pkgerrors "MediCare/pkg/errors"
	"MediCare/pkg/logger"
	"MediCare/storage/database"
	"MediCare/utils"
)

var (
	caretakerService *CaretakerService
	caretakerOnce    sync.Once
)

func Caretaker() *CaretakerService {
	caretakerOnce.Do(func() {
		db := database.DB()
		caretakerService = NewCaretakerService(
			repository.NewUserRepository(db),
			repository.NewCaretakerRepository(db),
			Adherence(),
			DoseLog(),
		)
	})
	return caretakerService
}

type CaretakerService struct {
	users     UserStore
	links     CaretakerStore
	adherence *AdherenceService
	doseLogs  *DoseLogService
}

func NewCaretakerService(users UserStore, links CaretakerStore, adherence *AdherenceService, doseLogs *DoseLogService) *CaretakerService {
	return &CaretakerService{users: users, links: links, adherence: adherence, doseLogs: doseLogs}
}

// Link 患者按邮箱添加照护者，重复添加不报错
func (s *CaretakerService) Link(ctx context.Context, patientID string, req dto.LinkCaretakerRequest) (*dto.CaretakerItem, error) {
	pid, err := parseUserID(patientID)
	if err != nil {
		return nil, err
	}

	email := utils.NormalizeEmail(req.Email)
	if !utils.ValidateEmail(email) {
		return nil, pkgerrors.InvalidRequest
	}

	caretaker, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, pkgerrors.UserNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}
	if caretaker.PublicID == pid {
		return nil, pkgerrors.CaretakerSelfLink
	}
	if caretaker.Role != model.UserRoleCaretaker {
		return nil, pkgerrors.CaretakerRoleInvalid
	}

	if err := s.links.Link(ctx, pid, caretaker.PublicID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}

	logger.Logger.Info("Caretaker linked",
		zap.Int64("patient_id", pid),
		zap.Int64("caretaker_id", caretaker.PublicID),
	)

	item := toCaretakerItem(*caretaker)
	return &item, nil
}

// Unlink 患者移除照护者
func (s *CaretakerService) Unlink(ctx context.Context, patientID, caretakerID string) error {
	pid, err := parseUserID(patientID)
	if err != nil {
		return err
	}
	cid, err := parseUserID(caretakerID)
	if err != nil {
		return err
	}
	if err := s.links.Unlink(ctx, pid, cid); err != nil {
		return pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}
	return nil
}

// ListCaretakers 患者的照护者列表
func (s *CaretakerService) ListCaretakers(ctx context.Context, patientID string) ([]dto.CaretakerItem, error) {
	pid, err := parseUserID(patientID)
	if err != nil {
		return nil, err
	}
	users, err := s.links.ListCaretakers(ctx, pid)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}
	items := make([]dto.CaretakerItem, 0, len(users))
	for _, u := range users {
		items = append(items, toCaretakerItem(u))
	}
	return items, nil
}

// ListPatients 照护者关联的患者
func (s *CaretakerService) ListPatients(ctx context.Context, caretakerID string) ([]dto.PatientItem, error) {
	cid, err := parseUserID(caretakerID)
	if err != nil {
		return nil, err
	}
	users, err := s.links.ListPatients(ctx, cid)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}
	items := make([]dto.PatientItem, 0, len(users))
	for _, u := range users {
		items = append(items, dto.PatientItem{
			ID:       formatUserID(u.PublicID),
			Email:    u.Email,
			FullName: u.FullName,
			Timezone: u.Timezone,
		})
	}
	return items, nil
}

// PatientSummary 照护者查看患者的依从性概览
func (s *CaretakerService) PatientSummary(ctx context.Context, caretakerID, patientID string) (*dto.AdherenceSummary, error) {
	patient, err := s.patient(ctx, caretakerID, patientID)
	if err != nil {
		return nil, err
	}
	return s.adherence.SummaryFor(ctx, patient)
}

func (s *CaretakerService) PatientCalendar(ctx context.Context, caretakerID, patientID, month string) (*dto.CalendarResponse, error) {
	patient, err := s.patient(ctx, caretakerID, patientID)
	if err != nil {
		return nil, err
	}
	return s.adherence.CalendarFor(ctx, patient, month)
}

func (s *CaretakerService) PatientDoseLogs(ctx context.Context, caretakerID, patientID, date string) ([]dto.DoseLogItem, error) {
	patient, err := s.patient(ctx, caretakerID, patientID)
	if err != nil {
		return nil, err
	}
	return s.doseLogs.listFor(ctx, patient.PublicID, date)
}

// patient 校验照护关系并返回患者
func (s *CaretakerService) patient(ctx context.Context, caretakerID, patientID string) (*model.User, error) {
	cid, err := parseUserID(caretakerID)
	if err != nil {
		return nil, err
	}
	pid, err := parseUserID(patientID)
	if err != nil {
		return nil, err
	}

	linked, err := s.links.IsLinked(ctx, pid, cid)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}
	if !linked {
		return nil, pkgerrors.CaretakerNotLinked
	}

	patient, err := s.users.GetByPublicID(ctx, pid)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, pkgerrors.UserNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}
	return patient, nil
}

func toCaretakerItem(u model.User) dto.CaretakerItem {
	return dto.CaretakerItem{ID: formatUserID(u.PublicID), Email: u.Email, FullName: u.FullName}
}
