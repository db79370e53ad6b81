// Package gemini implements llm.Generator on Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"runrag/internal/llm"
)

const defaultModel = "gemini-2.0-flash"

// Config configures the Gemini generator.
type Config struct {
	APIKeyEnv         string
	Model             string
	Temperature       float32
	MaxOutputTokens   int32
	SystemInstruction string
	Timeout           time.Duration
	// BaseURL overrides the API endpoint; used against local fakes.
	BaseURL string
}

// Client generates text with a Gemini model.
type Client struct {
	client   *genai.Client
	model    string
	config   *genai.GenerateContentConfig
	timeout  time.Duration
	observer llm.Observer
}

// New creates a Gemini generator. A nil observer discards call events.
func New(ctx context.Context, cfg Config, observer llm.Observer) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if observer == nil {
		observer = llm.NoopObserver{}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	gc := &genai.GenerateContentConfig{Temperature: genai.Ptr(cfg.Temperature)}
	if cfg.MaxOutputTokens > 0 {
		gc.MaxOutputTokens = cfg.MaxOutputTokens
	}
	if cfg.SystemInstruction != "" {
		gc.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}
	return &Client{
		client:   client,
		model:    cfg.Model,
		config:   gc,
		timeout:  cfg.Timeout,
		observer: observer,
	}, nil
}

// Generate sends prompt as a single user turn and returns the response text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), c.config)
	if err == nil && strings.TrimSpace(resp.Text()) == "" {
		err = fmt.Errorf("%w: empty response", llm.ErrInvalidOutput)
	}
	if err != nil {
		err = classify(ctx, err)
		c.observer.OnCallComplete(llm.CallEvent{
			Provider:  "gemini",
			Model:     c.model,
			LatencyMs: time.Since(start).Milliseconds(),
			ErrorCode: llm.ErrorCode(err),
		})
		return "", err
	}
	c.observer.OnCallComplete(llm.CallEvent{
		Provider:  "gemini",
		Model:     c.model,
		LatencyMs: time.Since(start).Milliseconds(),
		Success:   true,
	})
	return resp.Text(), nil
}

func classify(ctx context.Context, err error) error {
	if code, ok := apiCode(err); ok && code == http.StatusTooManyRequests {
		return &llm.RateLimitError{Provider: "gemini", Err: err}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", llm.ErrTimeout, err)
	}
	if errors.Is(err, llm.ErrInvalidOutput) {
		return err
	}
	return fmt.Errorf("gemini generate: %w", err)
}

// apiCode extracts the HTTP status of a genai API error, which the SDK
// returns by value.
func apiCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code, true
	}
	return 0, false
}
