package model

// DoseLoggedMessage 服药记录创建事件
type DoseLoggedMessage struct {
	MessageID    string `json:"message_id"` // 消息唯一ID，用于幂等性检查
	UserID       int64  `json:"user_id"`
	DoseLogID    int64  `json:"dose_log_id"`
	MedicationID int64  `json:"medication_id"`
	TakenAt      string `json:"taken_at"`
	HasProof     bool   `json:"has_proof"`
}

// MissedDoseMessage 漏服提醒消息，发给患者的所有照护者
type MissedDoseMessage struct {
	MessageID    string  `json:"message_id"`
	PatientID    int64   `json:"patient_id"`
	Date         string  `json:"date"` // 患者本地日期 yyyy-MM-dd
	StreakBefore int     `json:"streak_before"`
	CaretakerIDs []int64 `json:"caretaker_ids"`
}
