package dto

import (
	"time"

	"MediCare/internal/model"
)

// CreateDoseLogRequest 标记已服药
type CreateDoseLogRequest struct {
	MedicationID int64     `json:"medication_id"`
	TakenAt      time.Time `json:"taken_at"`
	ProofPath    *string   `json:"proof_path"`
}

// ListDoseLogsQuery date 为空时返回全部记录
type ListDoseLogsQuery struct {
	Date string `query:"date"`
}

// DoseLogItem 服药记录，附带照片缩略图的临时链接
type DoseLogItem struct {
	model.DoseLog
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// ProofUploadResponse 照片上传结果
type ProofUploadResponse struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
}

// SignedURLQuery 获取照片临时链接
type SignedURLQuery struct {
	Path      string `query:"path"`
	ExpiresIn int    `query:"expires_in"`
	Thumbnail bool   `query:"thumbnail"`
}

// SignedURLResponse 临时链接
type SignedURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
