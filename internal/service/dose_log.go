package service

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
	"MediCare/internal/model/dto"
	"MediCare/internal/proof"
	"MediCare/internal/queue"
	"MediCare/internal/repository"
	pkgerrors "MediCare/pkg/errors"
	"MediCare/pkg/logger"
	"MediCare/pkg/metrics"
	"MediCare/storage/database"
	"MediCare/storage/objectstore"
)

// 临时链接有效期上限
const maxSignedURLExpiry = time.Hour

var (
	doseLogService *DoseLogService
	doseLogOnce    sync.Once
)

func DoseLog() *DoseLogService {
	doseLogOnce.Do(func() {
		db := database.DB()
		doseLogService = NewDoseLogService(DoseLogDeps{
			Users:      repository.NewUserRepository(db),
			Meds:       repository.NewMedicationRepository(db),
			Logs:       repository.NewDoseLogRepository(db),
			Caretakers: repository.NewCaretakerRepository(db),
			Objects:    objectstore.Default(),
			Events:     queue.Producer{},
			Adherence:  cache.AdherenceCache,
		})
	})
	return doseLogService
}

type DoseLogDeps struct {
	Users      UserStore
	Meds       MedicationStore
	Logs       DoseLogStore
	Caretakers CaretakerStore
	Objects    ObjectStore
	Events     EventPublisher
	Adherence  cache.Store
}

type DoseLogService struct {
	DoseLogDeps
	bucket string
	now    func() time.Time
	suffix func() string
}

func NewDoseLogService(deps DoseLogDeps) *DoseLogService {
	return &DoseLogService{
		DoseLogDeps: deps,
		bucket:      config.Cfg.ProofBucket,
		now:         time.Now,
		suffix:      proof.RandomSuffix,
	}
}

// Bucket 照片所在存储桶
func (s *DoseLogService) Bucket() string {
	return s.bucket
}

// Create 创建服药记录，药品必须属于当前用户，照片路径必须位于用户目录下且已上传
func (s *DoseLogService) Create(ctx context.Context, userID string, req dto.CreateDoseLogRequest) (*model.DoseLog, error) {
	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}

	med, err := s.Meds.GetForUser(ctx, uid, req.MedicationID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, pkgerrors.MedicationNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}

	var proofPath *string
	if req.ProofPath != nil && *req.ProofPath != "" {
		if err := s.checkProofPath(ctx, userID, *req.ProofPath); err != nil {
			return nil, err
		}
		p := *req.ProofPath
		proofPath = &p
	}

	takenAt := req.TakenAt
	if takenAt.IsZero() {
		takenAt = s.now()
	}

	log := &model.DoseLog{
		UserID:       uid,
		MedicationID: med.ID,
		TakenAt:      takenAt,
		ProofPath:    proofPath,
	}
	if err := s.Logs.Create(ctx, log); err != nil {
		metrics.RecordDoseLogFailure(ctx, pkgerrors.LogCreationFailed.Code)
		return nil, pkgerrors.Wrap(pkgerrors.LogCreationFailed, err)
	}
	log.Medication = med

	metrics.RecordDoseLogged(ctx, log.HasProof())
	s.invalidateAdherence(ctx, userID)

	if err := s.Events.PublishDoseLogged(ctx, model.DoseLoggedMessage{
		UserID:       uid,
		DoseLogID:    log.ID,
		MedicationID: med.ID,
		TakenAt:      takenAt.UTC().Format(time.RFC3339),
		HasProof:     log.HasProof(),
	}); err != nil {
		logger.Logger.Warn("Failed to publish dose logged event",
			zap.Int64("dose_log_id", log.ID),
			zap.Error(err),
		)
	}

	return log, nil
}

// List 用户的服药记录，date 不为空时只返回用户时区中该自然日的记录。
// 带照片的记录附带缩略图链接，生成失败时省略。
func (s *DoseLogService) List(ctx context.Context, userID string, date string) ([]dto.DoseLogItem, error) {
	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	return s.listFor(ctx, uid, date)
}

func (s *DoseLogService) listFor(ctx context.Context, uid int64, date string) ([]dto.DoseLogItem, error) {
	var (
		logs []model.DoseLog
		err  error
	)
	if date == "" {
		logs, err = s.Logs.ListByUser(ctx, uid)
	} else {
		var user *model.User
		user, err = s.Users.GetByPublicID(ctx, uid)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
		}
		day, perr := adherence.ParseDay(date, userLocation(user.Timezone))
		if perr != nil {
			return nil, pkgerrors.InvalidRequest
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		logs, err = s.Logs.ListBetween(ctx, uid, start, start.AddDate(0, 0, 1))
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}

	expiry := time.Duration(config.Cfg.ProofThumbnailURLSeconds) * time.Second
	items := make([]dto.DoseLogItem, 0, len(logs))
	for _, l := range logs {
		item := dto.DoseLogItem{DoseLog: l}
		if l.HasProof() {
			url, err := s.Objects.SignedURL(ctx, s.bucket, *l.ProofPath, expiry)
			if err != nil {
				logger.Logger.Warn("Create thumbnail url failed",
					zap.Int64("dose_log_id", l.ID),
					zap.Error(err),
				)
			} else {
				item.ThumbnailURL = url
				metrics.RecordSignedURL(ctx, true)
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// UploadProof 上传照片并生成存储路径，不创建服药记录
func (s *DoseLogService) UploadProof(ctx context.Context, userID string, medicationID int64, fileName, contentType string, data []byte) (*dto.ProofUploadResponse, error) {
	uid, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Meds.GetForUser(ctx, uid, medicationID); err != nil {
		if repository.IsNotFound(err) {
			return nil, pkgerrors.MedicationNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}

	ext := proof.Extension(fileName, contentType)
	p := proof.Path(userID, medicationID, s.now(), s.suffix(), ext)
	return s.put(ctx, p, contentType, data)
}

// PutProof 按客户端给定的路径上传，路径必须位于用户目录下
func (s *DoseLogService) PutProof(ctx context.Context, userID, p, contentType string, data []byte) (*dto.ProofUploadResponse, error) {
	if !proof.InNamespace(userID, p) {
		return nil, pkgerrors.ProofPathInvalid
	}
	return s.put(ctx, p, contentType, data)
}

func (s *DoseLogService) put(ctx context.Context, p, contentType string, data []byte) (*dto.ProofUploadResponse, error) {
	size := int64(len(data))
	if size == 0 {
		return nil, pkgerrors.InvalidRequest
	}
	if size > config.Cfg.ProofMaxBytes {
		return nil, pkgerrors.ProofTooLarge
	}

	contentType = proof.ContentType(contentType, p, data)
	if !proof.IsImage(contentType) {
		return nil, pkgerrors.ProofTypeInvalid
	}

	start := time.Now()
	err := s.Objects.Upload(ctx, s.bucket, p, data, contentType)
	metrics.RecordProofUpload(ctx, size, time.Since(start), err == nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ProofUploadFailed, err)
	}

	return &dto.ProofUploadResponse{Bucket: s.bucket, Path: p, Size: size}, nil
}

// SignedURL 为照片生成临时链接。患者只能访问自己的照片，照护者可以访问已关联患者的照片。
func (s *DoseLogService) SignedURL(ctx context.Context, userID string, q dto.SignedURLQuery) (*dto.SignedURLResponse, error) {
	viewer, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}

	owner, ok := proof.Owner(q.Path)
	if !ok || !proof.InNamespace(formatUserID(owner), q.Path) {
		return nil, pkgerrors.ProofPathInvalid
	}
	if owner != viewer {
		linked, err := s.Caretakers.IsLinked(ctx, owner, viewer)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
		}
		if !linked {
			return nil, pkgerrors.CaretakerNotLinked
		}
	}

	expiry := signedURLExpiry(q.ExpiresIn, q.Thumbnail)
	url, err := s.Objects.SignedURL(ctx, s.bucket, q.Path, expiry)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.SignedURLFailed, err)
	}
	metrics.RecordSignedURL(ctx, q.Thumbnail)

	return &dto.SignedURLResponse{URL: url, ExpiresAt: s.now().Add(expiry).UTC()}, nil
}

func (s *DoseLogService) checkProofPath(ctx context.Context, userID, p string) error {
	if !proof.InNamespace(userID, p) {
		return pkgerrors.ProofPathInvalid
	}
	exists, err := s.Objects.Exists(ctx, s.bucket, p)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.QueryFailed, fmt.Errorf("check proof: %w", err))
	}
	if !exists {
		return pkgerrors.ProofPathInvalid
	}
	return nil
}

func (s *DoseLogService) invalidateAdherence(ctx context.Context, userID string) {
	if err := s.Adherence.Delete(ctx, userID); err != nil {
		logger.Logger.Warn("Failed to invalidate adherence cache",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// signedURLExpiry 未指定时原图 60 秒、缩略图 300 秒，最长 1 小时
func signedURLExpiry(seconds int, thumbnail bool) time.Duration {
	if seconds <= 0 {
		seconds = config.Cfg.ProofSignedURLSeconds
		if thumbnail {
			seconds = config.Cfg.ProofThumbnailURLSeconds
		}
	}
	expiry := time.Duration(seconds) * time.Second
	if expiry > maxSignedURLExpiry {
		expiry = maxSignedURLExpiry
	}
	return expiry
}
