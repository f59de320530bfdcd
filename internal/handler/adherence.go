package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"MediCare/internal/model/dto"
	"MediCare/internal/service"
	"MediCare/pkg/response"
)

// GetAdherenceSummary 连续天数、本月服药率、今日是否已服
// GET /v1/adherence/summary
func GetAdherenceSummary(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	result, err := service.Adherence().Summary(ctx, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// GetAdherenceCalendar 月历
// GET /v1/adherence/calendar?month=yyyy-MM
func GetAdherenceCalendar(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var q dto.CalendarQuery
	if err := c.BindQuery(&q); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.Adherence().Calendar(ctx, userID, q.Month)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// GetAdherenceDay 某天已服与待服
// GET /v1/adherence/day?date=yyyy-MM-dd
func GetAdherenceDay(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var q dto.DayQuery
	if err := c.BindQuery(&q); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.Adherence().Day(ctx, userID, q.Date)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
