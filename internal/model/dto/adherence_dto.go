package dto

import (
	"MediCare/internal/adherence"
	"MediCare/internal/model"
)

// AdherenceSummary 依从性概览
type AdherenceSummary struct {
	adherence.Summary
	Timezone string `json:"timezone"`
}

// CalendarQuery month 形如 2024-03，为空时取当月
type CalendarQuery struct {
	Month string `query:"month"`
}

// CalendarResponse 月历
type CalendarResponse struct {
	Month    string                  `json:"month"`
	Timezone string                  `json:"timezone"`
	Days     []adherence.CalendarDay `json:"days"`
}

// DayQuery date 为空时取今天
type DayQuery struct {
	Date string `query:"date"`
}

// DayResponse 某一天已服与待服的药品
type DayResponse struct {
	Date    string             `json:"date"`
	Taken   []model.DoseLog    `json:"taken"`
	Pending []model.Medication `json:"pending"`
}
