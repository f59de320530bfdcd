package model

// Medication 药品模型，创建后不可修改
type Medication struct {
	BaseModel
	UserID    int64   `gorm:"not null;index:idx_medications_user" json:"user_id,string"`
	Name      string  `gorm:"type:varchar(128);not null" json:"name"`
	Dosage    *string `gorm:"type:varchar(64)" json:"dosage"`
	Frequency *string `gorm:"type:varchar(64)" json:"frequency"`
}

// TableName 指定表名
func (Medication) TableName() string {
	return "medications"
}
