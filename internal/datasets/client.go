package datasets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/rowloom-cli/internal/mapping"
)

// Defaults applied to zero Config fields.
const (
	DefaultHTTPTimeout = 60 * time.Second
	DefaultRetryMax    = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 4 * time.Second
	DefaultBatchSize   = 100
)

// Config holds everything the client needs. Nothing is read from the
// environment; callers build it from their own configuration.
type Config struct {
	BaseURL          string
	APIKey           string
	HTTPTimeout      time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	BatchSize        int
}

func (c Config) withDefaults() Config {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = DefaultRetryMax
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultBaseDelay
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = DefaultMaxDelay
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// Client talks to the dataset API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
	sleep      func(context.Context, time.Duration) error
}

// Dataset is the API's view of a created dataset.
type Dataset struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// uploadItem is an Item plus the client-generated id that makes retried
// batches idempotent.
type uploadItem struct {
	ID string `json:"id"`
	mapping.Item
}

type addItemsRequest struct {
	Items []uploadItem `json:"items"`
}

// NewClient validates cfg and returns a client. A nil logger disables logging.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.BaseURL == "" {
		return nil, errors.New("dataset api base url is not configured (set api_base_url)")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if cfg.APIKey == "" {
		return nil, errors.New("dataset api key is missing (set api_key or ROWLOOM_API_KEY)")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		logger:     logger,
		sleep:      sleepContext,
	}, nil
}

// CreateDataset registers a new dataset and returns it.
func (c *Client) CreateDataset(ctx context.Context, name, description string) (*Dataset, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("dataset name cannot be empty")
	}
	body := map[string]string{"name": name, "description": description}
	var out Dataset
	if err := c.do(ctx, http.MethodPost, "/datasets", body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("create dataset: response has no id")
	}
	c.logger.Info("created dataset", zap.String("id", out.ID), zap.String("name", out.Name))
	return &out, nil
}

// AddItems uploads items in batches and returns how many were accepted.
// Each item gets a fresh UUID before the first attempt, so a retried batch
// carries the same ids.
func (c *Client) AddItems(ctx context.Context, datasetID string, items []mapping.Item) (int, error) {
	if datasetID == "" {
		return 0, errors.New("dataset id cannot be empty")
	}
	path := "/datasets/" + url.PathEscape(datasetID) + "/items"
	sent := 0
	for start := 0; start < len(items); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := make([]uploadItem, 0, end-start)
		for _, it := range items[start:end] {
			batch = append(batch, uploadItem{ID: uuid.NewString(), Item: it})
		}
		if err := c.do(ctx, http.MethodPost, path, addItemsRequest{Items: batch}, nil); err != nil {
			return sent, fmt.Errorf("upload items %d-%d: %w", start, end-1, err)
		}
		sent += len(batch)
		c.logger.Debug("uploaded batch",
			zap.String("dataset", datasetID),
			zap.Int("from", start),
			zap.Int("count", len(batch)))
	}
	return sent, nil
}

// do sends a JSON request, retrying 429/5xx responses and transient network
// errors with capped exponential backoff. A non-nil out receives the decoded
// response body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.cfg.BaseURL + path
	backoff := c.cfg.RetryBaseDelay
	maxAttempts := c.cfg.RetryMaxAttempts

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isRetryableNetErr(err) && attempt < maxAttempts {
				lastErr = err
				c.logger.Warn("request failed, retrying", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
				if err := c.sleep(ctx, withJitter(backoff)); err != nil {
					return err
				}
				backoff *= 2
				continue
			}
			return fmt.Errorf("http request: %w", err)
		}

		wait, err := c.handle(resp, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if wait < 0 || attempt == maxAttempts {
			break
		}
		if wait == 0 {
			wait = withJitter(backoff)
			if wait > c.cfg.RetryMaxDelay {
				wait = c.cfg.RetryMaxDelay
			}
			backoff *= 2
		}
		c.logger.Warn("retrying request",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

// handle consumes resp. On a retryable failure it returns the wait the
// server asked for (0 means use backoff); a negative wait means give up.
func (c *Client) handle(resp *http.Response, out any) (time.Duration, error) {
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return 0, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return -1, fmt.Errorf("decode response: %w", err)
		}
		return 0, nil
	}
	apiErr := decodeAPIError(resp)
	retryable := resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)
	if !retryable {
		return -1, classifyAPIError(apiErr, resp)
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := parseRetryAfterSeconds(ra); err == nil && secs > 0 {
			d := time.Duration(secs) * time.Second
			return d, &RateLimitError{APIError: apiErr, RetryAfter: d}
		}
	}
	return 0, classifyAPIError(apiErr, resp)
}

func decodeAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw, RequestID: extractRequestID(resp)}
	src := raw
	if v, ok := raw["error"].(map[string]any); ok {
		src = v
	} else if s, ok := raw["error"].(string); ok {
		apiErr.Message = s
	}
	if msg, ok := src["message"].(string); ok {
		apiErr.Message = msg
	}
	if code, ok := src["code"].(string); ok {
		apiErr.Code = code
	}
	return apiErr
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// parseRetryAfterSeconds interprets a Retry-After value as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

func extractRequestID(resp *http.Response) string {
	for _, k := range []string{"X-Request-Id", "X-Correlation-Id", "X-Amzn-Requestid"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter returns d with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultBaseDelay
	}
	out := time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
	if out <= 0 {
		return d
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
