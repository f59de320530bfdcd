package dto

// UserProfile 对外暴露的用户资料，ID 为 public_id
type UserProfile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Timezone string `json:"timezone"`
}

// UpdateProfileRequest 只更新传入的字段
type UpdateProfileRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Timezone *string `json:"timezone,omitempty"`
}
