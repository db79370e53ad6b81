package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"google.golang.org/genai"

	"runrag/internal/embedding"
)

const defaultModel = "gemini-embedding-001"

// Config configures the Gemini embedding engine.
type Config struct {
	APIKeyEnv string
	Model     string
	// TaskType is one of the Gemini task types, e.g. RETRIEVAL_DOCUMENT.
	TaskType  string
	Dimension int
	// BaseURL overrides the API endpoint; used against local fakes.
	BaseURL string
}

// Engine generates embeddings using Google's Gemini API.
type Engine struct {
	client    *genai.Client
	model     string
	taskType  string
	dimension int
}

// NewEngine creates a Gemini embedding engine.
func NewEngine(ctx context.Context, cfg Config) (*Engine, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 768
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Engine{
		client:    client,
		model:     cfg.Model,
		taskType:  taskType(cfg.TaskType),
		dimension: cfg.Dimension,
	}, nil
}

func taskType(raw string) string {
	switch raw {
	case "SEMANTIC_SIMILARITY", "CLASSIFICATION", "CLUSTERING",
		"RETRIEVAL_DOCUMENT", "RETRIEVAL_QUERY", "QUESTION_ANSWERING", "FACT_VERIFICATION":
		return raw
	default:
		return "SEMANTIC_SIMILARITY"
	}
}

// Name returns the engine name.
func (e *Engine) Name() string { return "genai:" + e.model }

// Dimension returns the requested output dimensionality.
func (e *Engine) Dimension() int { return e.dimension }

// Embed generates an embedding for a single text.
func (e *Engine) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	dim := int32(e.dimension)
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType:             e.taskType,
		OutputDimensionality: &dim,
	})
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %v", embedding.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("genai embed failed: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, errors.New("no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}

func isRateLimited(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code == http.StatusTooManyRequests
	}
	return false
}
