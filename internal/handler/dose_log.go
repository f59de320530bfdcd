package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"MediCare/internal/model/dto"
	"MediCare/internal/service"
	"MediCare/pkg/errors"
	"MediCare/pkg/response"
)

// ListDoseLogs 服药记录，可按日期过滤
// GET /v1/dose-logs?date=yyyy-MM-dd
func ListDoseLogs(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var q dto.ListDoseLogsQuery
	if err := c.BindQuery(&q); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.DoseLog().List(ctx, userID, q.Date)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// CreateDoseLog 标记已服药
// POST /v1/dose-logs
func CreateDoseLog(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.CreateDoseLogRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}
	if req.MedicationID <= 0 {
		response.Error(ctx, c, errors.InvalidRequest)
		return
	}

	result, err := service.DoseLog().Create(ctx, userID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, result)
}
