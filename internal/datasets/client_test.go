package datasets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KaramelBytes/rowloom-cli/internal/mapping"
)

type ipv4Server struct {
	URL string
	srv *http.Server
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	s := &ipv4Server{URL: "http://" + ln.Addr().String(), srv: srv}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.srv.Shutdown(ctx)
	})
	return s
}

// newTestClient returns a client whose sleeps are recorded instead of taken.
func newTestClient(t *testing.T, baseURL string, cfg Config, logger *zap.Logger) (*Client, *[]time.Duration) {
	t.Helper()
	cfg.BaseURL = baseURL
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	c, err := NewClient(cfg, logger)
	require.NoError(t, err)
	var mu sync.Mutex
	var waits []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		return ctx.Err()
	}
	return c, &waits
}

func sampleItems(n int) []mapping.Item {
	items := make([]mapping.Item, n)
	for i := range items {
		in := mapping.String(fmt.Sprintf("q%d", i))
		meta := mapping.Number(float64(i))
		items[i] = mapping.Item{Input: &in, Metadata: &meta}
	}
	return items
}

func TestNewClient_RequiresExplicitConfig(t *testing.T) {
	_, err := NewClient(Config{APIKey: "k"}, nil)
	require.Error(t, err)
	_, err = NewClient(Config{BaseURL: "http://example.test"}, nil)
	require.Error(t, err)
	_, err = NewClient(Config{BaseURL: "::not a url", APIKey: "k"}, nil)
	require.Error(t, err)

	c, err := NewClient(Config{BaseURL: "http://example.test/api/", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://example.test/api", c.cfg.BaseURL)
	assert.Equal(t, DefaultRetryMax, c.cfg.RetryMaxAttempts)
	assert.Equal(t, DefaultBatchSize, c.cfg.BatchSize)
	assert.Equal(t, DefaultHTTPTimeout, c.httpClient.Timeout)
}

func TestCreateDataset(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/datasets" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(Dataset{ID: "ds_1", Name: body["name"], Description: body["description"]})
	}))
	core, logs := observer.New(zapcore.InfoLevel)
	c, _ := newTestClient(t, srv.URL, Config{}, zap.New(core))

	ds, err := c.CreateDataset(context.Background(), "qa-eval", "first pass")
	require.NoError(t, err)
	assert.Equal(t, &Dataset{ID: "ds_1", Name: "qa-eval", Description: "first pass"}, ds)
	assert.Equal(t, 1, logs.FilterMessage("created dataset").Len())

	_, err = c.CreateDataset(context.Background(), "  ", "")
	require.Error(t, err)
}

func TestAddItems_BatchesWithStableIDs(t *testing.T) {
	var mu sync.Mutex
	var batches [][]map[string]any
	var calls int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/datasets/ds%201/items" {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Items []map[string]any `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		batches = append(batches, body.Items)
		mu.Unlock()
		// first attempt of the first batch fails
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	c, waits := newTestClient(t, srv.URL, Config{BatchSize: 2, RetryBaseDelay: time.Millisecond}, nil)

	n, err := c.AddItems(context.Background(), "ds 1", sampleItems(5))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.Len(t, batches, 4)
	assert.Len(t, *waits, 1)

	// retried batch resent with the same ids
	require.Len(t, batches[0], 2)
	assert.Equal(t, batches[0][0]["id"], batches[1][0]["id"])
	assert.Equal(t, batches[0][1]["id"], batches[1][1]["id"])
	_, err = uuid.Parse(batches[0][0]["id"].(string))
	require.NoError(t, err)

	assert.Len(t, batches[2], 2)
	assert.Len(t, batches[3], 1)
	last := batches[3][0]
	assert.Equal(t, "q4", last["input"])
	assert.Equal(t, float64(4), last["metadata"])
	_, hasExpected := last["expected_output"]
	assert.False(t, hasExpected)
}

func TestAddItems_NullScalarIsSentAsNull(t *testing.T) {
	var got []map[string]any
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Items []map[string]any `json:"items"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		got = body.Items
		w.WriteHeader(http.StatusOK)
	}))
	c, _ := newTestClient(t, srv.URL, Config{}, nil)
	null := mapping.Null()
	_, err := c.AddItems(context.Background(), "ds", []mapping.Item{{Metadata: &null}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	v, ok := got[0]["metadata"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestRetryAfterIsHonored(t *testing.T) {
	var calls int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "slow down"}})
			return
		}
		_ = json.NewEncoder(w).Encode(Dataset{ID: "ds_2", Name: "x"})
	}))
	c, waits := newTestClient(t, srv.URL, Config{}, nil)
	ds, err := c.CreateDataset(context.Background(), "x", "")
	require.NoError(t, err)
	assert.Equal(t, "ds_2", ds.ID)
	assert.Equal(t, []time.Duration{2 * time.Second}, *waits)
}

func TestBackoffIsCapped(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	c, waits := newTestClient(t, srv.URL, Config{
		RetryMaxAttempts: 4,
		RetryBaseDelay:   time.Second,
		RetryMaxDelay:    1500 * time.Millisecond,
	}, nil)
	_, err := c.CreateDataset(context.Background(), "x", "")
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	require.Len(t, *waits, 3)
	for _, w := range *waits {
		assert.LessOrEqual(t, w, 1500*time.Millisecond)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"auth", http.StatusUnauthorized, func(t *testing.T, err error) {
			var e *AuthError
			require.ErrorAs(t, err, &e)
		}},
		{"forbidden", http.StatusForbidden, func(t *testing.T, err error) {
			var e *AuthError
			require.ErrorAs(t, err, &e)
		}},
		{"bad request", http.StatusBadRequest, func(t *testing.T, err error) {
			var e *BadRequestError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "invalid_items", e.Code)
			assert.Equal(t, "req-7", e.RequestID)
		}},
		{"not found", http.StatusNotFound, func(t *testing.T, err error) {
			var e *NotFoundError
			require.ErrorAs(t, err, &e)
		}},
		{"rate limit exhausted", http.StatusTooManyRequests, func(t *testing.T, err error) {
			var e *RateLimitError
			require.ErrorAs(t, err, &e)
		}},
		{"conflict", http.StatusConflict, func(t *testing.T, err error) {
			var e *APIError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, http.StatusConflict, e.StatusCode)
			assert.Contains(t, e.Error(), "message=nope")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.Header().Set("X-Request-Id", "req-7")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "nope", "code": "invalid_items"}})
			}))
			c, _ := newTestClient(t, srv.URL, Config{RetryMaxAttempts: 2}, nil)
			_, err := c.AddItems(context.Background(), "ds", sampleItems(1))
			require.Error(t, err)
			tt.check(t, err)
			if tt.status != http.StatusTooManyRequests {
				assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "non-retryable status retried")
			}
		})
	}
}

func TestContextCancelStopsRetries(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	c, _ := newTestClient(t, srv.URL, Config{RetryMaxAttempts: 5}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	_, err := c.CreateDataset(ctx, "x", "")
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseRetryAfterSeconds(t *testing.T) {
	s, err := parseRetryAfterSeconds("7")
	require.NoError(t, err)
	assert.Equal(t, 7, s)

	future := time.Now().Add(90 * time.Second).UTC().Format(http.TimeFormat)
	s, err = parseRetryAfterSeconds(future)
	require.NoError(t, err)
	assert.InDelta(t, 90, s, 2)

	_, err = parseRetryAfterSeconds("soon")
	require.Error(t, err)
}

func TestWithJitterBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := withJitter(time.Second)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.Less(t, d, 1200*time.Millisecond)
	}
}
