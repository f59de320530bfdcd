package handler

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"

	"MediCare/config"
	"MediCare/internal/middleware"
)

// 以下用例都在调用 service 之前返回，不依赖存储
func newTestEngine() *server.Hertz {
	asUser := func(ctx context.Context, c *app.RequestContext) {
		c.Set(middleware.IdentityKey, "42")
		c.Next(ctx)
	}

	h := server.New()
	h.POST("/auth/signin", SignIn)
	h.POST("/auth/refresh", RefreshToken)
	h.GET("/anon/medications", ListMedications)
	h.POST("/dose-logs", asUser, CreateDoseLog)
	h.POST("/proofs", asUser, UploadProof)
	h.PUT("/proofs/*path", asUser, PutProof)
	h.GET("/proofs/signed-url", asUser, GetProofSignedURL)
	return h
}

func jsonBody(s string) *ut.Body {
	return &ut.Body{Body: bytes.NewBufferString(s), Len: len(s)}
}

var jsonHeader = ut.Header{Key: "Content-Type", Value: "application/json"}

func TestHandlers_RejectBeforeService(t *testing.T) {
	config.Cfg.ProofMaxBytes = 8
	h := newTestEngine()

	tests := []struct {
		name     string
		method   string
		path     string
		body     *ut.Body
		headers  []ut.Header
		wantCode int
		wantBody string
	}{
		{"missing identity", http.MethodGet, "/anon/medications", nil, nil, http.StatusUnauthorized, "NOT_AUTHENTICATED"},
		{"malformed sign in", http.MethodPost, "/auth/signin", jsonBody("{"), []ut.Header{jsonHeader}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"empty refresh token", http.MethodPost, "/auth/refresh", jsonBody(`{}`), []ut.Header{jsonHeader}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"dose log without medication", http.MethodPost, "/dose-logs", jsonBody(`{"medication_id":0}`), []ut.Header{jsonHeader}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"upload without medication id", http.MethodPost, "/proofs", nil, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"oversized raw proof", http.MethodPut, "/proofs/42/1-1-ab.png", jsonBody("0123456789"), []ut.Header{{Key: "Content-Type", Value: "image/png"}}, http.StatusRequestEntityTooLarge, "PROOF_TOO_LARGE"},
		{"signed url without path", http.MethodGet, "/proofs/signed-url", nil, nil, http.StatusBadRequest, "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ut.PerformRequest(h.Engine, tt.method, tt.path, tt.body, tt.headers...)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}
