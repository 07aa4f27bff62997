// Package analysis asks an OpenAI-compatible chat completions endpoint for
// a short assessment of one event.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"eve_analyst/internal/event"
	"eve_analyst/internal/metrics"
)

const DefaultBaseURL = "https://api.groq.com/openai/v1"

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	// Attempts per event, including the first. Only transport errors,
	// 429 and 5xx are retried.
	RetryMax  int
	RetryBase time.Duration
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

var ErrNoChoices = errors.New("analysis response has no choices")

type Client struct {
	cfg        Config
	metrics    *metrics.Metrics
	httpClient *http.Client
}

func New(cfg Config, m *metrics.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		metrics:    m,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Analyze returns the assessment text for ev. Any failure is returned as
// an error; the caller decides what to drop.
func (c *Client) Analyze(ctx context.Context, ev event.Normalized) (string, error) {
	prompt, err := userPrompt(ev)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := c.postWithRetry(ctx, payload)
	if c.metrics != nil {
		c.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	}
	return text, err
}

func (c *Client) postWithRetry(ctx context.Context, payload []byte) (string, error) {
	delays := backoffSchedule(c.cfg.RetryBase, c.cfg.RetryMax)
	var lastErr error
	for i := 0; i < len(delays); i++ {
		if i > 0 {
			t := time.NewTimer(delays[i-1])
			select {
			case <-ctx.Done():
				t.Stop()
				return "", ctx.Err()
			case <-t.C:
			}
		}
		text, err := c.post(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return "", err
		}
		if errors.Is(err, ErrNoChoices) || ctx.Err() != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s := string(body)
		if len(s) > 512 {
			s = s[:512]
		}
		return "", &APIError{StatusCode: resp.StatusCode, Body: s}
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decoding analysis response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrNoChoices
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func backoffSchedule(base time.Duration, max int) []time.Duration {
	if max <= 0 {
		max = 1
	}
	out := make([]time.Duration, 0, max)
	for i := 0; i < max; i++ {
		d := base * time.Duration(1<<i)
		out = append(out, jitter(d))
	}
	return out
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	// +/- 30%
	delta := int64(float64(d) * 0.3)
	if delta == 0 {
		return d
	}
	n := rand.Int64N(delta*2) - delta
	return time.Duration(int64(d) + n)
}
