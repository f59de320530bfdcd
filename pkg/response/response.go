package response

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"MediCare/pkg/errors"
)

// ErrorResponse 统一的错误响应格式
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Details map[string]interface{} `json:"details,omitempty"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
}

// SuccessResponse 统一的成功响应格式
type SuccessResponse struct {
	Data interface{}            `json:"data"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

var statusByCode = map[string]int{
	errors.NotAuthenticated.Code:       http.StatusUnauthorized,
	errors.Unauthorized.Code:           http.StatusUnauthorized,
	errors.InvalidCredentials.Code:     http.StatusUnauthorized,
	errors.InvalidUserID.Code:          http.StatusBadRequest,
	errors.InvalidRequest.Code:         http.StatusBadRequest,
	errors.MedicationNameInvalid.Code:  http.StatusBadRequest,
	errors.ProofPathInvalid.Code:       http.StatusBadRequest,
	errors.ProofTypeInvalid.Code:       http.StatusBadRequest,
	errors.CaretakerSelfLink.Code:      http.StatusBadRequest,
	errors.CaretakerRoleInvalid.Code:   http.StatusBadRequest,
	errors.ProofTooLarge.Code:          http.StatusRequestEntityTooLarge,
	errors.CaretakerNotLinked.Code:     http.StatusForbidden,
	errors.Forbidden.Code:              http.StatusForbidden,
	errors.UserNotFound.Code:           http.StatusNotFound,
	errors.MedicationNotFound.Code:     http.StatusNotFound,
	errors.EmailAlreadyRegistered.Code: http.StatusConflict,
	errors.ProofUploadFailed.Code:      http.StatusBadGateway,
	errors.SignedURLFailed.Code:        http.StatusBadGateway,
	errors.TooManyRequests.Code:        http.StatusTooManyRequests,
}

// StatusOf 业务错误码对应的 HTTP 状态码，未知错误为 500
func StatusOf(err error) int {
	def, ok := errors.DefinitionOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if status, ok := statusByCode[def.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error 返回错误响应，未知错误不向客户端暴露细节
func Error(ctx context.Context, c *app.RequestContext, err error) {
	ErrorWithDetails(ctx, c, err, nil)
}

func ErrorWithDetails(ctx context.Context, c *app.RequestContext, err error, details map[string]interface{}) {
	status := StatusOf(err)

	detail := ErrorDetail{Code: "INTERNAL_ERROR", Message: "Internal server error", Details: details}
	if def, ok := errors.DefinitionOf(err); ok {
		detail.Code, detail.Message = def.Code, def.Message
	}

	if status >= http.StatusInternalServerError {
		hlog.CtxErrorf(ctx, "request failed: path=%s err=%v", c.Path(), err)
		_ = c.Error(err)
	}

	c.JSON(status, ErrorResponse{Error: detail})
}

func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Data: data})
}

func Created(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{Data: data})
}

func SuccessWithMeta(ctx context.Context, c *app.RequestContext, data interface{}, meta map[string]interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Data: data, Meta: meta})
}

// BindError 参数绑定或校验失败
func BindError(ctx context.Context, c *app.RequestContext, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    errors.InvalidRequest.Code,
			Message: err.Error(),
		},
	})
}

// NoContent 返回 204
func NoContent(ctx context.Context, c *app.RequestContext) {
	c.Status(http.StatusNoContent)
}
