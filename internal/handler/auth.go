package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"MediCare/internal/model/dto"
	"MediCare/internal/service"
	"MediCare/pkg/errors"
	"MediCare/pkg/response"
)

// SignUp 邮箱注册
// POST /v1/auth/signup
func SignUp(ctx context.Context, c *app.RequestContext) {
	var req dto.SignUpRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.Auth().SignUp(ctx, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, result)
}

// SignIn 邮箱密码登录
// POST /v1/auth/signin
func SignIn(ctx context.Context, c *app.RequestContext) {
	var req dto.SignInRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.Auth().SignIn(ctx, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// RefreshToken 刷新访问令牌
// POST /v1/auth/token/refresh
func RefreshToken(ctx context.Context, c *app.RequestContext) {
	var req dto.RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}
	if req.RefreshToken == "" {
		response.Error(ctx, c, errors.InvalidRequest)
		return
	}

	result, err := service.Auth().Refresh(ctx, req.RefreshToken)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// SignOut 登出
// POST /v1/auth/signout
func SignOut(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	if err := service.Auth().SignOut(ctx, userID); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.NoContent(ctx, c)
}
