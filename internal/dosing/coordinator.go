// Package dosing 协调"标记已服"操作：上传服药照片、创建服药记录，并维护本地镜像的乐观更新与回滚。
package dosing

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"MediCare/internal/mirror"
	"MediCare/internal/model"
	"MediCare/internal/proof"
	pkgerrors "MediCare/pkg/errors"
	"MediCare/pkg/logger"
)

// DefaultProofBucket 服药照片默认存储桶
const DefaultProofBucket = "proof-photos"

// Backend 远端数据服务，由 HTTP 客户端或测试替身实现
type Backend interface {
	// CurrentUser 返回当前登录用户ID，未登录时返回空字符串
	CurrentUser(ctx context.Context) (string, error)
	ListDoseLogs(ctx context.Context, userID string) ([]model.DoseLog, error)
	ListMedications(ctx context.Context, userID string) ([]model.Medication, error)
	InsertDoseLog(ctx context.Context, log model.NewDoseLog) (*model.DoseLog, error)
	UploadFile(ctx context.Context, bucket, path string, data []byte, contentType string) error
	CreateSignedURL(ctx context.Context, bucket, path string, expiry time.Duration) (string, error)
}

// ProofFile 服药照片
type ProofFile struct {
	Name        string // 原始文件名，用于推断扩展名
	ContentType string
	Data        []byte
}

// State 单次标记操作的状态
type State string

const (
	StateIdle       State = "idle"
	StateUploading  State = "uploading"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Transition 状态变化通知
type Transition struct {
	ActionID     string
	MedicationID int64
	From         State
	To           State
	Err          error
}

type Options struct {
	Bucket       string
	Now          func() time.Time
	Suffix       func() string // 照片路径中的随机后缀
	OnTransition func(Transition)
}

type Coordinator struct {
	backend Backend
	mirror  *mirror.Mirror
	opts    Options
}

func NewCoordinator(backend Backend, m *mirror.Mirror, opts Options) *Coordinator {
	if opts.Bucket == "" {
		opts.Bucket = DefaultProofBucket
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Suffix == nil {
		opts.Suffix = proof.RandomSuffix
	}
	if m == nil {
		m = mirror.New()
	}
	return &Coordinator{backend: backend, mirror: m, opts: opts}
}

// Mirror 返回协调器维护的本地镜像
func (c *Coordinator) Mirror() *mirror.Mirror {
	return c.mirror
}

// Load 从远端加载当前用户的全部服药记录到镜像
func (c *Coordinator) Load(ctx context.Context) error {
	userID, err := c.currentUser(ctx)
	if err != nil {
		return err
	}
	return c.refresh(ctx, userID)
}

// Medications 当前用户的药品列表
func (c *Coordinator) Medications(ctx context.Context) ([]model.Medication, error) {
	userID, err := c.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	meds, err := c.backend.ListMedications(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
	}
	return meds, nil
}

// MarkTaken 将药品标记为在 date 已服用，file 可为空。
// 镜像会在提交前乐观插入一条记录；任一步骤失败都只回滚本次插入。
// 照片上传失败时不会创建服药记录。
func (c *Coordinator) MarkTaken(ctx context.Context, medicationID int64, date time.Time, file *ProofFile) (*model.DoseLog, error) {
	inv := &invocation{medicationID: medicationID, state: StateIdle, notify: c.opts.OnTransition}
	pending := c.mirror.InsertProvisional(model.DoseLog{MedicationID: medicationID, TakenAt: date})
	inv.actionID = pending.ActionID()

	created, userID, err := c.submit(ctx, inv, medicationID, date, file)
	if err != nil {
		c.mirror.Rollback(pending)
		inv.transition(StateFailed, err)
		logger.Logger.Warn("Mark taken failed",
			zap.Int64("medication_id", medicationID),
			zap.String("action_id", inv.actionID),
			zap.Int("restored_entries", len(pending.Before().Entries)),
			zap.Error(err),
		)
		return nil, err
	}

	c.mirror.Confirm(pending, *created)
	inv.transition(StateSucceeded, nil)

	// 成功后与远端重新同步；失败不影响本次结果
	if err := c.refresh(ctx, userID); err != nil && !errors.Is(err, mirror.ErrRefreshSuperseded) {
		logger.Logger.Warn("Resync after mark taken failed",
			zap.Int64("dose_log_id", created.ID),
			zap.Error(err),
		)
	}

	return created, nil
}

func (c *Coordinator) submit(ctx context.Context, inv *invocation, medicationID int64, date time.Time, file *ProofFile) (*model.DoseLog, string, error) {
	userID, err := c.currentUser(ctx)
	if err != nil {
		return nil, "", err
	}

	var proofPath *string
	if file != nil {
		inv.transition(StateUploading, nil)

		p := c.ProofPath(userID, medicationID, file)
		contentType := proof.ContentType(file.ContentType, p, file.Data)
		if err := c.backend.UploadFile(ctx, c.opts.Bucket, p, file.Data, contentType); err != nil {
			return nil, userID, pkgerrors.Wrap(pkgerrors.ProofUploadFailed, err)
		}
		proofPath = &p
	}

	inv.transition(StateSubmitting, nil)

	created, err := c.backend.InsertDoseLog(ctx, model.NewDoseLog{
		UserID:       userID,
		MedicationID: medicationID,
		TakenAt:      date,
		ProofPath:    proofPath,
	})
	if err != nil {
		return nil, userID, pkgerrors.Wrap(pkgerrors.LogCreationFailed, err)
	}
	if created == nil {
		return nil, userID, pkgerrors.Wrap(pkgerrors.LogCreationFailed, errors.New("empty response"))
	}

	return created, userID, nil
}

// ProofPath 生成照片存储路径：<用户ID>/<药品ID>-<毫秒时间戳>-<随机后缀><扩展名>
func (c *Coordinator) ProofPath(userID string, medicationID int64, file *ProofFile) string {
	return proof.Path(userID, medicationID, c.opts.Now(), c.opts.Suffix(), proof.Extension(file.Name, file.ContentType))
}

// SignedProofURLs 为带照片的记录生成临时访问地址，单条失败只记录日志并跳过
func (c *Coordinator) SignedProofURLs(ctx context.Context, logs []model.DoseLog, expiry time.Duration) map[int64]string {
	urls := make(map[int64]string)
	for _, l := range logs {
		if !l.HasProof() {
			continue
		}
		url, err := c.backend.CreateSignedURL(ctx, c.opts.Bucket, *l.ProofPath, expiry)
		if err != nil {
			logger.Logger.Warn("Create proof signed url failed",
				zap.Int64("dose_log_id", l.ID),
				zap.String("path", *l.ProofPath),
				zap.Error(err),
			)
			continue
		}
		urls[l.ID] = url
	}
	return urls
}

func (c *Coordinator) currentUser(ctx context.Context) (string, error) {
	userID, err := c.backend.CurrentUser(ctx)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.NotAuthenticated, err)
	}
	if userID == "" {
		return "", pkgerrors.NotAuthenticated
	}
	return userID, nil
}

func (c *Coordinator) refresh(ctx context.Context, userID string) error {
	return c.mirror.Refresh(ctx, func(ctx context.Context) ([]model.DoseLog, error) {
		logs, err := c.backend.ListDoseLogs(ctx, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.QueryFailed, err)
		}
		return logs, nil
	})
}

type invocation struct {
	actionID     string
	medicationID int64
	state        State
	notify       func(Transition)
}

func (i *invocation) transition(to State, err error) {
	from := i.state
	i.state = to
	if i.notify != nil {
		i.notify(Transition{ActionID: i.actionID, MedicationID: i.medicationID, From: from, To: to, Err: err})
	}
}
