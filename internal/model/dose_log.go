package model

import "time"

// DoseLog 服药记录模型，每次"标记已服"生成一条，之后不再修改
type DoseLog struct {
	BaseModel
	UserID       int64       `gorm:"not null;index:idx_dose_logs_user_taken" json:"user_id,string"`
	MedicationID int64       `gorm:"not null;index:idx_dose_logs_medication" json:"medication_id"`
	TakenAt      time.Time   `gorm:"type:timestamptz;not null;index:idx_dose_logs_user_taken" json:"taken_at"`
	ProofPath    *string     `gorm:"type:varchar(512)" json:"proof_path"`
	Medication   *Medication `gorm:"foreignKey:MedicationID" json:"medication,omitempty"`
}

// TableName 指定表名
func (DoseLog) TableName() string {
	return "dose_logs"
}

// HasProof 是否附带了服药照片
func (l DoseLog) HasProof() bool {
	return l.ProofPath != nil && *l.ProofPath != ""
}

// NewDoseLog 创建服药记录所需的字段
type NewDoseLog struct {
	UserID       string    `json:"-"`
	MedicationID int64     `json:"medication_id"`
	TakenAt      time.Time `json:"taken_at"`
	ProofPath    *string   `json:"proof_path"`
}
