package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// =============================================================================
// Client 通知网关基础客户端
// 提供令牌管理和通用HTTP请求，评审指派、取消、催办等消息共用
// =============================================================================

// Client 通知网关客户端
type Client struct {
	baseURL     string
	clientID    string       // 网关客户端ID
	secret      string       // 网关客户端密钥
	tokenCache  string       // 缓存的access_token
	tokenExpire time.Time    // token过期时间
	mu          sync.RWMutex // 保护token缓存的读写锁
	httpClient  *http.Client // HTTP客户端
}

// NewClient 创建通知网关客户端实例
func NewClient(baseURL, clientID, secret string) *Client {
	return &Client{
		baseURL:  baseURL,
		clientID: clientID,
		secret:   secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// getAccessToken 获取网关访问令牌。
// 双重检查锁定缓存token，提前60秒刷新避免过期。
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.tokenCache != "" && time.Now().Before(c.tokenExpire) {
		token := c.tokenCache
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// 双重检查：其他goroutine可能已经刷新了token
	if c.tokenCache != "" && time.Now().Before(c.tokenExpire) {
		return c.tokenCache, nil
	}

	reqBody := map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.secret,
	}
	bodyBytes, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, "POST",
		c.baseURL+"/api/v1/auth/token", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("创建token请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求通知网关token失败: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Code        int    `json:"code"`
		Message     string `json:"message"`
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"` // 过期时间（秒）
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("解析token响应失败: %w", err)
	}
	if result.Code != 0 {
		return "", fmt.Errorf("通知网关token错误[%d]: %s", result.Code, result.Message)
	}

	c.tokenCache = result.AccessToken
	c.tokenExpire = time.Now().Add(time.Duration(result.ExpiresIn-60) * time.Second)

	return result.AccessToken, nil
}

// doRequest 执行通知网关API请求。
// 自动获取token并添加Authorization头，处理网关统一错误码。
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("获取访问令牌失败: %w", err)
	}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应体失败: %w", err)
	}

	var baseResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &baseResp); err != nil {
		return fmt.Errorf("解析响应基础结构失败: %w", err)
	}
	if baseResp.Code != 0 {
		return fmt.Errorf("通知网关API错误[%d]: %s (path=%s)", baseResp.Code, baseResp.Message, path)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("解析响应体失败: %w", err)
		}
	}

	return nil
}
