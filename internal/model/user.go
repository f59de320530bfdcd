package model

// UserRole 用户角色
type UserRole string

const (
	UserRolePatient   UserRole = "patient"   // 患者：记录服药
	UserRoleCaretaker UserRole = "caretaker" // 照护者：查看患者情况
)

// IsValid 判断角色是否合法
func (r UserRole) IsValid() bool {
	return r == UserRolePatient || r == UserRoleCaretaker
}

// User 用户模型
type User struct {
	BaseModel
	PublicID     int64    `gorm:"uniqueIndex;not null" json:"public_id,string"`
	Email        string   `gorm:"uniqueIndex;type:varchar(255);not null" json:"email"`
	PasswordHash string   `gorm:"type:varchar(72);not null" json:"-"`
	FullName     string   `gorm:"type:varchar(128);not null;default:''" json:"full_name"`
	Role         UserRole `gorm:"type:varchar(16);not null;default:'patient';index:idx_users_role" json:"role"`
	Timezone     string   `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
