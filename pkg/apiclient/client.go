// Package apiclient 是 MediCare HTTP API 的客户端，实现 dosing.Backend，供命令行工具使用。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"MediCare/internal/model"
	"MediCare/internal/model/dto"
	"MediCare/pkg/errors"
)

// Session 登录态，可持久化到本地文件
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Timezone     string    `json:"timezone"`
}

// Options 客户端配置
type Options struct {
	BaseURL string
	Timeout time.Duration
	// OnSession 登录或刷新 token 后回调，用于持久化
	OnSession func(Session)
}

type Client struct {
	http    *client.Client
	baseURL string
	timeout time.Duration
	notify  func(Session)

	mu      sync.RWMutex
	session Session
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	hc, err := client.NewClient(
		client.WithDialTimeout(5*time.Second),
		client.WithClientReadTimeout(opts.Timeout),
		client.WithWriteTimeout(opts.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}
	return &Client{
		http:    hc,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		notify:  opts.OnSession,
	}, nil
}

// Session 当前登录态
func (c *Client) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) SetSession(s Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// CurrentUser 未登录时返回空字符串
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	return c.Session().UserID, nil
}

// ========== 认证 ==========

func (c *Client) SignUp(ctx context.Context, req dto.SignUpRequest) (*dto.AuthResponse, error) {
	return c.authenticate(ctx, "/v1/auth/signup", req)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*dto.AuthResponse, error) {
	return c.authenticate(ctx, "/v1/auth/signin", dto.SignInRequest{Email: email, Password: password})
}

// SignOut 服务端失败时也清空本地登录态
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/v1/auth/signout", nil, nil, "", nil)
	c.SetSession(Session{})
	if c.notify != nil {
		c.notify(Session{})
	}
	return err
}

// Refresh 用 refresh token 换取新的 token 对
func (c *Client) Refresh(ctx context.Context) error {
	rt := c.Session().RefreshToken
	if rt == "" {
		return errors.NotAuthenticated
	}
	_, err := c.authenticate(ctx, "/v1/auth/token/refresh", dto.RefreshTokenRequest{RefreshToken: rt})
	return err
}

func (c *Client) authenticate(ctx context.Context, path string, body interface{}) (*dto.AuthResponse, error) {
	var out dto.AuthResponse
	if err := c.send(ctx, http.MethodPost, path, nil, body, &out, false); err != nil {
		return nil, err
	}
	s := Session{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(out.ExpiresIn) * time.Second),
		UserID:       out.User.ID,
		Email:        out.User.Email,
		Role:         out.User.Role,
		Timezone:     out.User.Timezone,
	}
	c.SetSession(s)
	if c.notify != nil {
		c.notify(s)
	}
	return &out, nil
}

// ========== 药品与服药记录 ==========

func (c *Client) ListMedications(ctx context.Context, userID string) ([]model.Medication, error) {
	var out []model.Medication
	if err := c.do(ctx, http.MethodGet, "/v1/medications", nil, nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateMedication(ctx context.Context, req dto.CreateMedicationRequest) (*model.Medication, error) {
	var out model.Medication
	if err := c.do(ctx, http.MethodPost, "/v1/medications", nil, req, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDoseLogs 服务端按 token 识别用户，userID 仅用于接口一致
func (c *Client) ListDoseLogs(ctx context.Context, userID string) ([]model.DoseLog, error) {
	var items []dto.DoseLogItem
	if err := c.do(ctx, http.MethodGet, "/v1/dose-logs", nil, nil, "", &items); err != nil {
		return nil, err
	}
	logs := make([]model.DoseLog, 0, len(items))
	for _, it := range items {
		logs = append(logs, it.DoseLog)
	}
	return logs, nil
}

func (c *Client) InsertDoseLog(ctx context.Context, log model.NewDoseLog) (*model.DoseLog, error) {
	req := dto.CreateDoseLogRequest{MedicationID: log.MedicationID, TakenAt: log.TakenAt, ProofPath: log.ProofPath}
	var out model.DoseLog
	if err := c.do(ctx, http.MethodPost, "/v1/dose-logs", nil, req, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFile 照片写入服务端配置的存储桶，bucket 参数不参与请求
func (c *Client) UploadFile(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	return c.do(ctx, http.MethodPut, "/v1/proofs/"+escapePath(path), nil, rawBody(data), contentType, nil)
}

func (c *Client) CreateSignedURL(ctx context.Context, bucket, path string, expiry time.Duration) (string, error) {
	q := url.Values{}
	q.Set("path", path)
	if expiry > 0 {
		q.Set("expires_in", strconv.Itoa(int(expiry/time.Second)))
	}
	var out dto.SignedURLResponse
	if err := c.do(ctx, http.MethodGet, "/v1/proofs/signed-url", q, nil, "", &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// ========== 依从性 ==========

func (c *Client) Summary(ctx context.Context) (*dto.AdherenceSummary, error) {
	var out dto.AdherenceSummary
	if err := c.do(ctx, http.MethodGet, "/v1/adherence/summary", nil, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Calendar(ctx context.Context, month string) (*dto.CalendarResponse, error) {
	q := url.Values{}
	if month != "" {
		q.Set("month", month)
	}
	var out dto.CalendarResponse
	if err := c.do(ctx, http.MethodGet, "/v1/adherence/calendar", q, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ========== 传输 ==========

// access token 剩余有效期小于该值时提前刷新
const refreshLeeway = 30 * time.Second

type rawBody []byte

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do 发送需要鉴权的请求。access token 将要过期时先刷新，失败的请求不会自动重试
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, contentType string, out interface{}) error {
	if s := c.Session(); s.RefreshToken != "" && !s.ExpiresAt.IsZero() && time.Until(s.ExpiresAt) < refreshLeeway {
		if err := c.Refresh(ctx); err != nil {
			return err
		}
	}
	return c.sendTyped(ctx, method, path, query, body, contentType, out, true)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out interface{}, auth bool) error {
	return c.sendTyped(ctx, method, path, query, body, "", out, auth)
}

func (c *Client) sendTyped(ctx context.Context, method, path string, query url.Values, body interface{}, contentType string, out interface{}, auth bool) error {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	uri := c.baseURL + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	req.SetRequestURI(uri)
	req.SetMethod(method)
	req.Header.Set("Accept", "application/json")

	switch b := body.(type) {
	case nil:
	case rawBody:
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		req.Header.SetContentTypeBytes([]byte(contentType))
		req.SetBody(b)
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		req.Header.SetContentTypeBytes([]byte(consts.MIMEApplicationJSON))
		req.SetBody(payload)
	}

	if auth {
		token := c.Session().AccessToken
		if token == "" {
			return errors.NotAuthenticated
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if err := c.http.DoTimeout(ctx, req, resp, c.timeout); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	return decode(resp.StatusCode(), resp.Body(), out)
}

// decode 把 {"error":{"code":...}} 还原成业务错误
func decode(status int, body []byte, out interface{}) error {
	if status == http.StatusNoContent {
		return nil
	}

	var env envelope
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			if status >= http.StatusBadRequest {
				return fmt.Errorf("unexpected status %d", status)
			}
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	if env.Error != nil {
		def := errors.Get(env.Error.Code)
		if env.Error.Message != "" && env.Error.Message != def.Message {
			return errors.Wrap(def, fmt.Errorf("%s", env.Error.Message))
		}
		return def
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %d", status)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// escapePath 逐段转义，保留分隔符
func escapePath(p string) string {
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
