package model

// CaretakerLink 患者与照护者的关联，由患者发起
type CaretakerLink struct {
	BaseModel
	PatientID   int64 `gorm:"not null;uniqueIndex:idx_caretaker_links_pair" json:"patient_id,string"`
	CaretakerID int64 `gorm:"not null;uniqueIndex:idx_caretaker_links_pair;index:idx_caretaker_links_caretaker" json:"caretaker_id,string"`
}

// TableName 指定表名
func (CaretakerLink) TableName() string {
	return "caretaker_links"
}
