package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in the type fields.
const (
	EmbedderHashing = "hashing"
	EmbedderOpenAI  = "openai"
	EmbedderGenAI   = "genai"

	GeneratorGenAI  = "genai"
	GeneratorOllama = "ollama"
	GeneratorNone   = "none"

	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreQdrant = "qdrant"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// GenAIEmbedderConfig configures Gemini embeddings.
type GenAIEmbedderConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	TaskType  string `yaml:"task_type"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	GenAI     *GenAIEmbedderConfig  `yaml:"genai,omitempty"`
}

// GenAIGeneratorConfig configures Gemini text generation.
type GenAIGeneratorConfig struct {
	APIKeyEnv       string  `yaml:"api_key_env"`
	Model           string  `yaml:"model"`
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
	TimeoutSecs     int     `yaml:"timeout_secs"`
}

// OllamaGeneratorConfig configures a local Ollama server.
type OllamaGeneratorConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	NumPredict  int     `yaml:"num_predict"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries"`
}

// GeneratorConfig selects the generative backend used for query
// interpretation and coaching replies.
type GeneratorConfig struct {
	Type              string                 `yaml:"type"`
	RateLimitWaitSecs int                    `yaml:"rate_limit_wait_secs"`
	LogCalls          bool                   `yaml:"log_calls"`
	GenAI             *GenAIGeneratorConfig  `yaml:"genai,omitempty"`
	Ollama            *OllamaGeneratorConfig `yaml:"ollama,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL              string `yaml:"url"`
	APIKeyEnv        string `yaml:"api_key_env"`
	CollectionPrefix string `yaml:"collection_prefix"`
	TimeoutSecs      int    `yaml:"timeout_secs"`
}

// StoreConfig selects where each user's documents live.
type StoreConfig struct {
	Type   string        `yaml:"type"`
	Root   string        `yaml:"root"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// RetrievalConfig holds the retrieval limits.
type RetrievalConfig struct {
	ResultCap      int `yaml:"result_cap"`
	Oversample     int `yaml:"oversample"`
	FallbackLatest int `yaml:"fallback_latest"`
}

// IngestConfig paces bulk ingestion.
type IngestConfig struct {
	IntervalMS int `yaml:"interval_ms"`
}

// ReplyConfig bounds coaching replies.
type ReplyConfig struct {
	MaxChars int `yaml:"max_chars"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Generator GeneratorConfig `yaml:"generator"`
	Store     StoreConfig     `yaml:"store"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Reply     ReplyConfig     `yaml:"reply"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./runrag.yaml first, then ~/.config/runrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/runrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "runrag.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects unknown backend names and missing backend sections.
func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Embedder.Type {
	case EmbedderHashing, EmbedderOpenAI, EmbedderGenAI:
	default:
		errs = append(errs, fmt.Errorf("unknown embedder type %q", c.Embedder.Type))
	}
	switch c.Generator.Type {
	case GeneratorGenAI, GeneratorOllama, GeneratorNone:
	default:
		errs = append(errs, fmt.Errorf("unknown generator type %q", c.Generator.Type))
	}
	switch c.Store.Type {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.Root == "" {
			errs = append(errs, errors.New("store.root is required for sqlite"))
		}
	case StoreQdrant:
		if c.Store.Qdrant == nil || c.Store.Qdrant.URL == "" {
			errs = append(errs, errors.New("store.qdrant.url is required for qdrant"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store type %q", c.Store.Type))
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "runrag", "config.yaml"), nil
}

func defaultDataRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".runrag"
	}
	return filepath.Join(home, ".local", "share", "runrag")
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:  EmbedderConfig{Type: EmbedderHashing},
		Generator: GeneratorConfig{Type: GeneratorGenAI},
		Store:     StoreConfig{Type: StoreSQLite},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = EmbedderHashing
	}
	if cfg.Embedder.Type == EmbedderOpenAI {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Type == EmbedderGenAI {
		if cfg.Embedder.GenAI == nil {
			cfg.Embedder.GenAI = &GenAIEmbedderConfig{}
		}
		if cfg.Embedder.GenAI.APIKeyEnv == "" {
			cfg.Embedder.GenAI.APIKeyEnv = "GEMINI_API_KEY"
		}
	}

	if cfg.Generator.Type == "" {
		cfg.Generator.Type = GeneratorGenAI
	}
	if cfg.Generator.RateLimitWaitSecs == 0 {
		cfg.Generator.RateLimitWaitSecs = 60
	}
	switch cfg.Generator.Type {
	case GeneratorGenAI:
		if cfg.Generator.GenAI == nil {
			cfg.Generator.GenAI = &GenAIGeneratorConfig{}
		}
		if cfg.Generator.GenAI.APIKeyEnv == "" {
			cfg.Generator.GenAI.APIKeyEnv = "GEMINI_API_KEY"
		}
		if cfg.Generator.GenAI.TimeoutSecs == 0 {
			cfg.Generator.GenAI.TimeoutSecs = 60
		}
	case GeneratorOllama:
		if cfg.Generator.Ollama == nil {
			cfg.Generator.Ollama = &OllamaGeneratorConfig{}
		}
		if cfg.Generator.Ollama.Endpoint == "" {
			cfg.Generator.Ollama.Endpoint = "http://localhost:11434"
		}
		if cfg.Generator.Ollama.Model == "" {
			cfg.Generator.Ollama.Model = "llama3.2"
		}
		if cfg.Generator.Ollama.TimeoutSecs == 0 {
			cfg.Generator.Ollama.TimeoutSecs = 60
		}
	}

	if cfg.Store.Type == "" {
		cfg.Store.Type = StoreSQLite
	}
	if cfg.Store.Type == StoreSQLite && cfg.Store.Root == "" {
		cfg.Store.Root = defaultDataRoot()
	}
	if cfg.Store.Type == StoreQdrant && cfg.Store.Qdrant != nil {
		if cfg.Store.Qdrant.CollectionPrefix == "" {
			cfg.Store.Qdrant.CollectionPrefix = "runs_"
		}
		if cfg.Store.Qdrant.TimeoutSecs == 0 {
			cfg.Store.Qdrant.TimeoutSecs = 10
		}
	}

	if cfg.Retrieval.ResultCap == 0 {
		cfg.Retrieval.ResultCap = 20
	}
	if cfg.Retrieval.Oversample == 0 {
		cfg.Retrieval.Oversample = 3
	}
	if cfg.Retrieval.FallbackLatest == 0 {
		cfg.Retrieval.FallbackLatest = 5
	}
	if cfg.Ingest.IntervalMS == 0 {
		cfg.Ingest.IntervalMS = 2000
	}
	if cfg.Reply.MaxChars == 0 {
		cfg.Reply.MaxChars = 3000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
