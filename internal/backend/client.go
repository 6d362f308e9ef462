package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"claimpoint/internal"
	"claimpoint/internal/config"
	"claimpoint/internal/logging"
	"claimpoint/internal/ratelimit"
)

const recordsPath = "api/records"

// Client reads and writes record sets through the records proxy. Requests are never retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     *zap.Logger
}

var _ internal.RecordStore = (*Client)(nil)

// StatusError is a non-2xx proxy response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("records proxy: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("records proxy: status=%d: %s", e.StatusCode, e.Message)
}

// Is matches internal.ErrValidation for 400 responses: the proxy rejected the request itself.
func (e *StatusError) Is(target error) bool {
	return target == internal.ErrValidation && e.StatusCode == http.StatusBadRequest
}

func NewClient(cfg config.Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    cfg.ProxyBaseURL,
		httpClient: &http.Client{Timeout: time.Duration(cfg.ProxyTimeoutMs) * time.Millisecond},
		limiter:    ratelimit.New(cfg.ProxyRateLimitRPS),
		logger:     logging.OrNop(logger).Named("backend"),
	}
}

func (c *Client) Fetch(ctx context.Context, table string) ([]internal.Record, error) {
	body, err := c.do(ctx, http.MethodGet, table, nil)
	if err != nil {
		return nil, err
	}
	return internal.DecodeRecords(body)
}

func (c *Client) Insert(ctx context.Context, table string, records []internal.Record) ([]internal.Record, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, http.MethodPost, table, payload)
	if err != nil {
		return nil, err
	}
	return internal.DecodeRecords(body)
}

func (c *Client) do(ctx context.Context, method, table string, payload []byte) ([]byte, error) {
	baseURL := strings.TrimRight(c.baseURL, "/") + "/"
	u, err := url.Parse(baseURL + recordsPath)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("table", table)
	u.RawQuery = q.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("records request",
		zap.String("method", method), zap.String("table", table),
		zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(body))
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}
	return body, nil
}
