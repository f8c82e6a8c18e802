package deskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crestdesk/crestdesk-backend/internal/pkg/logger"
	"github.com/crestdesk/crestdesk-backend/internal/platform/envutil"
)

// ErrConfigNotFound covers both a missing session config and a malformed
// upstream blob. Callers treat the two the same way.
var ErrConfigNotFound = errors.New("session config not found")

// Client talks to the external platform: webhook execution (Actions API),
// feature flags, and the session config store. Every call carries the
// configured timeout; a hung platform must not stall a consumer.
type Client interface {
	ExecuteWebhook(ctx context.Context, req WebhookRequest) (*WebhookResult, error)
	GetFlag(ctx context.Context, flag, environment, tenantID string) (bool, error)
	SetFlagRule(ctx context.Context, flag, environment, tenantID string, enabled bool) error
	GetSessionConfig(ctx context.Context, sessionKey string) (*SessionConfig, error)
}

type Config struct {
	BaseURL     string
	Username    string
	Password    string
	BearerToken string
	Timeout     time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL:     envutil.String("PLATFORM_BASE_URL", ""),
		Username:    envutil.String("PLATFORM_USERNAME", ""),
		Password:    envutil.String("PLATFORM_PASSWORD", ""),
		BearerToken: envutil.String("PLATFORM_BEARER_TOKEN", ""),
		Timeout:     envutil.Duration("PLATFORM_TIMEOUT", 30*time.Second),
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing PLATFORM_BASE_URL")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &client{
		log:        log.With("client", "DeskAPIClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

type WebhookRequest struct {
	WorkflowID string         `json:"workflow_id"`
	TenantID   string         `json:"tenant_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type WebhookResult struct {
	StatusCode  int
	ExecutionID string
}

type SessionConfig struct {
	TenantID string          `json:"tenant_id"`
	UserID   string          `json:"user_id"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

type flagResponse struct {
	Enabled bool `json:"enabled"`
}

type webhookResponse struct {
	ExecutionID string `json:"execution_id"`
}

func (c *client) ExecuteWebhook(ctx context.Context, req WebhookRequest) (*WebhookResult, error) {
	if strings.TrimSpace(req.WorkflowID) == "" {
		return nil, fmt.Errorf("workflow_id required")
	}
	started := time.Now()
	var out webhookResponse
	status, err := c.doJSON(ctx, http.MethodPost, "/api/v1/webhooks/execute", req, &out)
	if err != nil {
		c.log.Warn("Webhook execution failed", "workflowID", req.WorkflowID, "elapsed", time.Since(started), "error", err)
		return nil, err
	}
	return &WebhookResult{StatusCode: status, ExecutionID: out.ExecutionID}, nil
}

func (c *client) GetFlag(ctx context.Context, flag, environment, tenantID string) (bool, error) {
	if strings.TrimSpace(flag) == "" {
		return false, fmt.Errorf("flag name required")
	}
	path := fmt.Sprintf("/api/v1/flags/%s?environment=%s&tenant_id=%s",
		url.PathEscape(flag), url.QueryEscape(environment), url.QueryEscape(tenantID))
	var out flagResponse
	if _, err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return false, err
	}
	return out.Enabled, nil
}

func (c *client) SetFlagRule(ctx context.Context, flag, environment, tenantID string, enabled bool) error {
	if strings.TrimSpace(flag) == "" {
		return fmt.Errorf("flag name required")
	}
	body := map[string]any{
		"environment": environment,
		"tenant_id":   tenantID,
		"enabled":     enabled,
	}
	_, err := c.doJSON(ctx, http.MethodPut, "/api/v1/flags/"+url.PathEscape(flag), body, nil)
	return err
}

func (c *client) GetSessionConfig(ctx context.Context, sessionKey string) (*SessionConfig, error) {
	if strings.TrimSpace(sessionKey) == "" {
		return nil, ErrConfigNotFound
	}
	httpReq, err := c.newRequest(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(sessionKey), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("platform session lookup: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrConfigNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("platform session lookup: status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("platform session lookup: %w", err)
	}
	var cfg SessionConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		// Malformed upstream blob reads as absent config, not a crash.
		c.log.Warn("Malformed session config blob", "sessionKey", sessionKey, "error", err)
		return nil, ErrConfigNotFound
	}
	return &cfg, nil
}

func (c *client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.cfg.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	} else if c.cfg.Username != "" {
		httpReq.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
	httpReq.Header.Set("Accept", "application/json")
	return httpReq, nil
}

func (c *client) doJSON(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}
	httpReq, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("platform %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("platform %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("platform %s %s: status %d: %s", method, path, resp.StatusCode, truncate(string(raw), 256))
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("platform %s %s: decode: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
