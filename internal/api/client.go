package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parasail-network/node-agent/internal/credentials"
	"go.uber.org/zap"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxRetries   = 5
	defaultInitialDelay = 5 * time.Second

	logBodyLimit = 200
)

type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	InitialDelay time.Duration
}

// Client talks to the rewards API. It attaches the current bearer token to
// every request and retries 429 responses with exponential backoff; all
// other failures surface immediately as tagged errors.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *credentials.Session
	log        *zap.Logger

	maxRetries   int
	initialDelay time.Duration
	jitter       func() float64
}

func NewClient(cfg Config, session *credentials.Session, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaultInitialDelay
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		session:      session,
		log:          log,
		maxRetries:   cfg.MaxRetries,
		initialDelay: cfg.InitialDelay,
		jitter: func() float64 {
			return 0.5 + rand.Float64() // uniform in [0.5, 1.5)
		},
	}
}

// Request issues one API call. body is JSON-encoded when non-nil. The
// returned payload is the raw JSON response on 2xx.
func (c *Client) Request(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	reqID := uuid.New().String()

	for attempt := 0; ; attempt++ {
		data, err := c.do(ctx, method, path, payload, reqID)
		if !errors.Is(err, errRateLimited) {
			return data, err
		}

		if attempt == c.maxRetries {
			c.log.Warn("rate limit retry budget exhausted",
				zap.String("request_id", reqID),
				zap.String("endpoint", path),
				zap.Int("attempts", attempt+1),
			)
			return nil, &RateLimitError{Endpoint: path, Attempts: attempt + 1}
		}

		wait := c.backoffDelay(attempt)
		c.log.Warn("rate limited, backing off",
			zap.String("request_id", reqID),
			zap.String("endpoint", path),
			zap.Duration("wait", wait),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", c.maxRetries),
		)
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, reqID string) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("X-Request-ID", reqID)
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", path, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errRateLimited
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%s: %w", path, ErrUnauthorized)
	case resp.StatusCode >= 400:
		return nil, &RequestError{
			Endpoint: path,
			Status:   resp.StatusCode,
			Body:     truncate(string(data), logBodyLimit),
		}
	}

	return json.RawMessage(data), nil
}

// backoffDelay computes the wait before retrying attempt n (0-indexed):
// initialDelay * 2^n, scaled by jitter to avoid synchronized retry storms.
func (c *Client) backoffDelay(attempt int) time.Duration {
	return time.Duration(float64(c.initialDelay) * math.Pow(2, float64(attempt)) * c.jitter())
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
