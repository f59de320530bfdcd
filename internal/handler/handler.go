package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"MediCare/internal/middleware"
	"MediCare/pkg/errors"
	"MediCare/pkg/response"
)

// currentUser 取当前用户ID，缺失时直接写入 401 响应
func currentUser(ctx context.Context, c *app.RequestContext) (string, bool) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.NotAuthenticated)
		return "", false
	}
	return userID, true
}
