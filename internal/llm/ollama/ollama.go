// Package ollama implements llm.Generator against a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"runrag/internal/llm"
)

// Config configures the Ollama generator.
type Config struct {
	Endpoint    string
	Model       string
	Temperature float64
	NumPredict  int
	Timeout     time.Duration
	// MaxRetries applies to transient failures only; rate limits are left
	// to llm.RetryOnRateLimit.
	MaxRetries int
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Endpoint:    "http://localhost:11434",
		Model:       "llama3.2",
		Temperature: 0.1,
		NumPredict:  1024,
		Timeout:     60 * time.Second,
		MaxRetries:  1,
	}
}

// Client implements llm.Generator using the Ollama HTTP API.
type Client struct {
	cfg      Config
	http     *http.Client
	observer llm.Observer
}

// New creates a generator for a local Ollama instance.
func New(cfg Config, observer llm.Observer) *Client {
	def := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if observer == nil {
		observer = llm.NoopObserver{}
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
		observer: observer,
	}
}

// generateRequest is the JSON body sent to POST /api/generate.
type generateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options options `json:"options,omitempty"`
}

type options struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// generateResponse is the JSON body returned by POST /api/generate (non-streaming).
type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body := generateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		Options: options{
			Temperature: c.cfg.Temperature,
			NumPredict:  c.cfg.NumPredict,
		},
	}

	var lastErr error
	for i := 0; i <= c.cfg.MaxRetries; i++ {
		resp, err := c.doRequest(ctx, body)
		if err == nil {
			c.observer.OnCallComplete(llm.CallEvent{
				Provider:  "ollama",
				Model:     c.cfg.Model,
				LatencyMs: time.Since(start).Milliseconds(),
				Success:   true,
			})
			return resp.Response, nil
		}
		lastErr = err
		// Don't retry on cancellation, timeout or quota
		if ctx.Err() != nil || llm.IsRateLimited(err) {
			break
		}
	}

	err := c.wrap(ctx, lastErr)
	c.observer.OnCallComplete(llm.CallEvent{
		Provider:  "ollama",
		Model:     c.cfg.Model,
		LatencyMs: time.Since(start).Milliseconds(),
		ErrorCode: llm.ErrorCode(err),
	})
	return "", err
}

func (c *Client) wrap(ctx context.Context, err error) error {
	switch {
	case llm.IsRateLimited(err):
		return err
	case ctx.Err() != nil:
		return llm.ErrTimeout
	case isConnectionError(err):
		return fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
	case c.cfg.MaxRetries > 0:
		return fmt.Errorf("%w: %v", llm.ErrRetryExhausted, err)
	default:
		return err
	}
}

func (c *Client) doRequest(ctx context.Context, body generateRequest) (*generateResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if httpResp.StatusCode == http.StatusTooManyRequests {
		rl := &llm.RateLimitError{Provider: "ollama", Err: errors.New(string(respBody))}
		if secs, err := strconv.Atoi(httpResp.Header.Get("Retry-After")); err == nil {
			rl.RetryAfter = time.Duration(secs) * time.Second
		}
		return nil, rl
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp generateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}

// Available checks whether the Ollama server is reachable.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func isConnectionError(err error) bool {
	var netErr *net.OpError
	return errors.As(err, &netErr)
}
