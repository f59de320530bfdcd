package handler

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"

	"MediCare/config"
	"MediCare/internal/model/dto"
	"MediCare/internal/service"
	"MediCare/pkg/errors"
	"MediCare/pkg/response"
)

// UploadProof 上传服药照片（multipart：file、medication_id），返回存储路径
// POST /v1/proofs
func UploadProof(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	medicationID, err := strconv.ParseInt(c.PostForm("medication_id"), 10, 64)
	if err != nil || medicationID <= 0 {
		response.Error(ctx, c, errors.InvalidRequest)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		response.BindError(ctx, c, err)
		return
	}
	if fh.Size > config.Cfg.ProofMaxBytes {
		response.Error(ctx, c, errors.ProofTooLarge)
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.BindError(ctx, c, err)
		return
	}
	defer f.Close()

	// 多读 1 字节用于判断是否超限
	data, err := io.ReadAll(io.LimitReader(f, config.Cfg.ProofMaxBytes+1))
	if err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := service.DoseLog().UploadProof(ctx, userID, medicationID, fh.Filename, fh.Header.Get("Content-Type"), data)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, result)
}

// PutProof 按路径上传照片，请求体为图片原始内容
// PUT /v1/proofs/*path
func PutProof(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	p := strings.TrimPrefix(c.Param("path"), "/")
	body := c.Request.Body()
	if int64(len(body)) > config.Cfg.ProofMaxBytes {
		response.Error(ctx, c, errors.ProofTooLarge)
		return
	}

	result, err := service.DoseLog().PutProof(ctx, userID, p, string(c.ContentType()), body)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, result)
}

// GetProofSignedURL 照片临时链接
// GET /v1/proofs/signed-url?path=...&expires_in=60
func GetProofSignedURL(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var q dto.SignedURLQuery
	if err := c.BindQuery(&q); err != nil {
		response.BindError(ctx, c, err)
		return
	}
	if q.Path == "" {
		response.Error(ctx, c, errors.InvalidRequest)
		return
	}

	result, err := service.DoseLog().SignedURL(ctx, userID, q)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
