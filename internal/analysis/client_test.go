package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve_analyst/internal/event"
	"eve_analyst/internal/metrics"
)

func testEvent() event.Normalized {
	return event.Normalized{
		Timestamp: "2024-07-01T10:00:00.000000+0000",
		EventType: "alert",
		SrcIP:     "203.0.113.9",
		SrcPort:   json.Number("51515"),
		DestIP:    "10.0.0.5",
		DestPort:  json.Number("22"),
		Proto:     "TCP",
		Alert:     map[string]any{"signature": "ET SCAN ssh"},
	}
}

func testConfig(url string) Config {
	return Config{
		BaseURL:     url,
		APIKey:      "test-key",
		Model:       "mixtral-8x7b-32768",
		MaxTokens:   200,
		Temperature: 0.5,
		Timeout:     5 * time.Second,
		RetryMax:    3,
		RetryBase:   time.Millisecond,
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Likely SSH scanning.  "}}]}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL+"/"), metrics.New())

	text, err := c.Analyze(context.Background(), testEvent())
	require.NoError(t, err)
	assert.Equal(t, "Likely SSH scanning.", text)

	assert.Equal(t, "mixtral-8x7b-32768", got.Model)
	assert.Equal(t, 200, got.MaxTokens)
	assert.Equal(t, 0.5, got.Temperature)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, systemPrompt, got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Contains(t, got.Messages[1].Content, `"src_ip": "203.0.113.9"`)
	assert.Contains(t, got.Messages[1].Content, `"src_port": 51515`)
	assert.Contains(t, got.Messages[1].Content, "indicators of compromise")
}

func TestAnalyzeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	text, err := New(testConfig(srv.URL), nil).Analyze(context.Background(), testEvent())
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnalyzeGivesUpAfterRetryMax(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	_, err := New(testConfig(srv.URL), nil).Analyze(context.Background(), testEvent())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "rate limited")
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnalyzeClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(testConfig(srv.URL), nil).Analyze(context.Background(), testEvent())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAnalyzeNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := New(testConfig(srv.URL), nil).Analyze(context.Background(), testEvent())
	assert.True(t, errors.Is(err, ErrNoChoices))
}

func TestAnalyzeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(testConfig(url), nil).Analyze(context.Background(), testEvent())
	assert.Error(t, err)
}

func TestAnalyzeCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RetryBase = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := New(cfg, nil).Analyze(ctx, testEvent())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffSchedule(t *testing.T) {
	d := backoffSchedule(100*time.Millisecond, 4)
	require.Len(t, d, 4)
	for i, got := range d {
		base := 100 * time.Millisecond * time.Duration(1<<i)
		assert.InDelta(t, float64(base), float64(got), float64(base)*0.3+1)
	}

	assert.Len(t, backoffSchedule(time.Second, 0), 1)
	assert.Equal(t, time.Duration(0), jitter(0))
}
