package dto

// LinkCaretakerRequest 患者按邮箱添加照护者
type LinkCaretakerRequest struct {
	Email string `json:"email"`
}

// CaretakerItem 照护者
type CaretakerItem struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// PatientItem 照护者视角的患者
type PatientItem struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Timezone string `json:"timezone"`
}
