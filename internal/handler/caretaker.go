package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"MediCare/internal/model/dto"
	"MediCare/internal/service"
	"MediCare/pkg/response"
)

// ListCaretakers 患者的照护者
// GET /v1/caretakers
func ListCaretakers(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	result, err := service.Caretaker().ListCaretakers(ctx, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// LinkCaretaker 按邮箱添加照护者
// POST /v1/caretakers
func LinkCaretaker(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.LinkCaretakerRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.Caretaker().Link(ctx, userID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, result)
}

// UnlinkCaretaker 移除照护者
// DELETE /v1/caretakers/:caretaker_id
func UnlinkCaretaker(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	if err := service.Caretaker().Unlink(ctx, userID, c.Param("caretaker_id")); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.NoContent(ctx, c)
}

// ListPatients 照护者关联的患者
// GET /v1/patients
func ListPatients(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	result, err := service.Caretaker().ListPatients(ctx, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// GetPatientSummary 患者依从性概览
// GET /v1/patients/:patient_id/adherence/summary
func GetPatientSummary(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	result, err := service.Caretaker().PatientSummary(ctx, userID, c.Param("patient_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// GetPatientCalendar 患者月历
// GET /v1/patients/:patient_id/adherence/calendar?month=yyyy-MM
func GetPatientCalendar(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var q dto.CalendarQuery
	if err := c.BindQuery(&q); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.Caretaker().PatientCalendar(ctx, userID, c.Param("patient_id"), q.Month)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// ListPatientDoseLogs 患者服药记录
// GET /v1/patients/:patient_id/dose-logs?date=yyyy-MM-dd
func ListPatientDoseLogs(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var q dto.ListDoseLogsQuery
	if err := c.BindQuery(&q); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.Caretaker().PatientDoseLogs(ctx, userID, c.Param("patient_id"), q.Date)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
