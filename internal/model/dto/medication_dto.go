package dto

// CreateMedicationRequest 新增药品
type CreateMedicationRequest struct {
	Name      string  `json:"name"`
	Dosage    *string `json:"dosage,omitempty"`
	Frequency *string `json:"frequency,omitempty"`
}
