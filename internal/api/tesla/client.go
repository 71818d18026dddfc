package tesla

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// 错误定义
var (
	ErrInvalidAuthorization = errors.New("invalid authorization")
	ErrReauthRequired       = errors.New("reauthentication required")
	ErrTransient            = errors.New("transient network error")
)

const (
	authScope           = "openid email offline_access"
	codeChallengeMethod = "S256"
)

// Client Tesla 订单 API 客户端
type Client struct {
	httpClient  *http.Client
	authHost    string
	apiHost     string
	orderHost   string
	clientID    string
	redirectURI string
	appVersion  string

	// PKCE 校验串，BeginAuthorization 与 ExchangeCode 之间共享，
	// 两者来自不同的 HTTP 请求
	mu           sync.Mutex
	codeVerifier string
}

// NewClient 创建订单 API 客户端
func NewClient(authHost, apiHost, orderHost, clientID, redirectURI, appVersion string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		authHost:    authHost,
		apiHost:     apiHost,
		orderHost:   orderHost,
		clientID:    clientID,
		redirectURI: redirectURI,
		appVersion:  appVersion,
	}
}

// BeginAuthorization 生成交互式登录 URL（含新的 PKCE 挑战和 state）
// 用户登录后会跳到一个 "Page Not Found" 页面，把完整 URL 粘贴回来即可
func (c *Client) BeginAuthorization() string {
	verifier := randomURLSafe(32)
	c.mu.Lock()
	c.codeVerifier = verifier
	c.mu.Unlock()

	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	stateBuf := make([]byte, 16)
	_, _ = rand.Read(stateBuf)

	params := url.Values{}
	params.Set("client_id", c.clientID)
	params.Set("redirect_uri", c.redirectURI)
	params.Set("response_type", "code")
	params.Set("scope", authScope)
	params.Set("state", hex.EncodeToString(stateBuf))
	params.Set("code_challenge", challenge)
	params.Set("code_challenge_method", codeChallengeMethod)

	return c.authHost + "/oauth2/v3/authorize?" + params.Encode()
}

// ExtractCode 从用户粘贴的跳转 URL 中提取授权码
func ExtractCode(redirectURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(redirectURL))
	if err != nil {
		return "", fmt.Errorf("%w: parse redirect url: %v", ErrInvalidAuthorization, err)
	}
	code := parsed.Query().Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: no code parameter in redirect url", ErrInvalidAuthorization)
	}
	return code, nil
}

// ExchangeCode 用授权码换取令牌
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	c.mu.Lock()
	verifier := c.codeVerifier
	c.mu.Unlock()

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", c.clientID)
	data.Set("code", code)
	data.Set("redirect_uri", c.redirectURI)
	data.Set("code_verifier", verifier)

	token, err := c.postToken(ctx, data)
	if err != nil {
		if errors.Is(err, errRejected) {
			return nil, fmt.Errorf("%w: code exchange rejected", ErrInvalidAuthorization)
		}
		return nil, err
	}
	return token, nil
}

// Refresh 用 refresh token 换取新令牌
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", c.clientID)
	data.Set("refresh_token", refreshToken)
	data.Set("scope", authScope)

	token, err := c.postToken(ctx, data)
	if err != nil {
		if errors.Is(err, errRejected) {
			return nil, fmt.Errorf("%w: refresh token rejected", ErrReauthRequired)
		}
		return nil, err
	}
	return token, nil
}

// errRejected 令牌端点以 4xx 拒绝请求，由调用方映射为具体错误
var errRejected = errors.New("token request rejected")

// postToken 调用令牌端点
func (c *Client) postToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.authHost+"/oauth2/v3/token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token request: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if isTransientStatus(resp.StatusCode) {
			return nil, fmt.Errorf("%w: token endpoint status=%d body=%s", ErrTransient, resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("%w: status=%d body=%s", errRejected, resp.StatusCode, string(body))
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &token, nil
}

// apiResponse 通用 API 响应结构
type apiResponse struct {
	Response json.RawMessage `json:"response"`
	Error    string          `json:"error,omitempty"`
}

// FetchOrders 获取当前账户的订单列表（保留原始文档）
func (c *Client) FetchOrders(ctx context.Context, accessToken string) ([]map[string]any, error) {
	body, err := c.doRequest(ctx, accessToken, c.apiHost+"/api/1/users/orders")
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("decode orders response: %w", err)
	}

	var orders []map[string]any
	if err := json.Unmarshal(apiResp.Response, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

// FetchOrderDetails 获取单个订单的详情任务数据
func (c *Client) FetchOrderDetails(ctx context.Context, accessToken, orderRef string) (map[string]any, error) {
	params := url.Values{}
	params.Set("deviceLanguage", "en")
	params.Set("deviceCountry", "DE")
	params.Set("referenceNumber", orderRef)
	params.Set("appVersion", c.appVersion)

	body, err := c.doRequest(ctx, accessToken, c.orderHost+"/tasks?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetch order details: %w", err)
	}

	var details map[string]any
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, fmt.Errorf("decode order details: %w", err)
	}
	return details, nil
}

// doRequest 执行带认证的 GET 请求
func (c *Client) doRequest(ctx context.Context, accessToken, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// 正常
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: api status=401", ErrReauthRequired)
	case isTransientStatus(resp.StatusCode):
		return nil, fmt.Errorf("%w: api status=%d", ErrTransient, resp.StatusCode)
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status=%d body=%s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// isTransientStatus 超时/限流/5xx 视为瞬时故障，调用方可退避重试
func isTransientStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

// randomURLSafe 生成 URL 安全的随机串（PKCE verifier）
func randomURLSafe(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}
