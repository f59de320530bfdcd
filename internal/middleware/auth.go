package middleware

import (
	"context"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"

	"MediCare/internal/model"
	"MediCare/pkg/errors"
	"MediCare/pkg/response"
	"MediCare/pkg/token"
)

const (
	IdentityKey = token.IdentityKey
	roleKey     = "user_role"
)

var (
	authMiddleware *jwt.HertzJWTMiddleware
)

func initAuthMiddleware() error {
	// 使用 token 包中共享的生成器
	sharedGenerator := token.GetGenerator()
	if sharedGenerator == nil {
		return fmt.Errorf("token generator not initialized, call token.Init() first")
	}

	authMiddleware = &jwt.HertzJWTMiddleware{
		Realm:       "MediCare API",
		Key:         sharedGenerator.Key,
		Timeout:     sharedGenerator.Timeout,
		MaxRefresh:  sharedGenerator.MaxRefresh,
		IdentityKey: sharedGenerator.IdentityKey,
		TimeFunc:    sharedGenerator.TimeFunc,

		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(ctx, c)
			uid := token.ClaimString(claims, IdentityKey)
			if uid == "" {
				return nil
			}
			c.Set(roleKey, token.ClaimString(claims, token.RoleKey))
			return uid
		},

		// refresh token 不携带角色，不能当作 access token 使用
		Authorizator: func(data interface{}, ctx context.Context, c *app.RequestContext) bool {
			return data != nil && GetRole(c) != ""
		},

		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			response.Error(ctx, c, errors.NotAuthenticated)
		},

		TokenLookup:   "header: Authorization",
		TokenHeadName: "Bearer",
	}

	return nil
}

func AuthMiddleware() app.HandlerFunc {
	if authMiddleware == nil {
		panic("AuthMiddleware not initialized, call Init() first")
	}
	return authMiddleware.MiddlewareFunc()
}

// RequireRole 只允许指定角色访问
func RequireRole(role model.UserRole) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if GetRole(c) != string(role) {
			response.Error(ctx, c, errors.Forbidden)
			c.Abort()
			return
		}
		c.Next(ctx)
	}
}

// GetUserID 从请求上下文中获取用户ID（public_id，字符串格式）
func GetUserID(ctx context.Context, c *app.RequestContext) (string, bool) {
	userID, exists := c.Get(IdentityKey)
	if !exists {
		return "", false
	}

	id, ok := userID.(string)
	if !ok || id == "" {
		return "", false
	}

	return id, true
}

// GetRole 当前用户角色，未认证时为空
func GetRole(c *app.RequestContext) string {
	return c.GetString(roleKey)
}
