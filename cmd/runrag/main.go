package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"runrag/internal/cli"
	"runrag/internal/config"
	"runrag/internal/docstore"
	"runrag/internal/embedding"
	"runrag/internal/embedding/genai"
	"runrag/internal/embedding/hashing"
	"runrag/internal/embedding/openai"
	"runrag/internal/llm"
	"runrag/internal/llm/gemini"
	"runrag/internal/llm/ollama"
	"runrag/internal/logging"
	"runrag/internal/retrieval"
	"runrag/internal/service"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Open: open,
		IsInteractive: func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
		},
	}
	if err := cli.NewRootCmd(app).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func open(cfgPath string) (*cli.Runtime, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()

	emb, err := newEmbedder(ctx, cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	gen, err := newGenerator(ctx, cfg.Generator, logger)
	if err != nil {
		// ingest and the listing commands still work without a model
		logger.Warn("generator unavailable, ask is disabled", zap.Error(err))
		gen = nil
	}

	storeCfg := docstore.Config{
		Backend:  cfg.Store.Type,
		Root:     cfg.Store.Root,
		Interval: time.Duration(cfg.Ingest.IntervalMS) * time.Millisecond,
	}
	if q := cfg.Store.Qdrant; q != nil {
		storeCfg.Qdrant = docstore.QdrantConfig{
			URL:              q.URL,
			APIKey:           os.Getenv(q.APIKeyEnv),
			CollectionPrefix: q.CollectionPrefix,
			Timeout:          time.Duration(q.TimeoutSecs) * time.Second,
		}
	}
	stores := docstore.NewManager(storeCfg, emb, logger.Named("docstore"))

	svc := service.New(stores, gen, service.Config{
		Retrieval: retrieval.Config{
			ResultCap:      cfg.Retrieval.ResultCap,
			Oversample:     cfg.Retrieval.Oversample,
			FallbackLatest: cfg.Retrieval.FallbackLatest,
		},
		ReplyMaxChars: cfg.Reply.MaxChars,
	}, logger)

	return &cli.Runtime{
		Service: svc,
		Close: func() error {
			err := stores.Close()
			_ = logger.Sync()
			return err
		},
	}, nil
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	format := cfg.Format
	if format == "" {
		format = "json"
		if isatty.IsTerminal(os.Stderr.Fd()) {
			format = "console"
		}
	}
	return logging.New(cfg.Level, format)
}

func newEmbedder(ctx context.Context, cfg config.EmbedderConfig) (embedding.Embedder, error) {
	switch cfg.Type {
	case config.EmbedderHashing, "":
		return hashing.NewEmbedder(cfg.Dimension), nil
	case config.EmbedderOpenAI:
		if cfg.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			Dimension:  cfg.Dimension,
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
	case config.EmbedderGenAI:
		if cfg.GenAI == nil {
			return nil, errors.New("genai embedder config missing")
		}
		return genai.NewEngine(ctx, genai.Config{
			APIKeyEnv: cfg.GenAI.APIKeyEnv,
			Model:     cfg.GenAI.Model,
			TaskType:  cfg.GenAI.TaskType,
			Dimension: cfg.Dimension,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func newGenerator(ctx context.Context, cfg config.GeneratorConfig, logger *zap.Logger) (llm.Generator, error) {
	var observer llm.Observer = llm.NoopObserver{}
	if cfg.LogCalls {
		observer = llm.NewLogObserver(logger.Named("llm"))
	}
	wait := time.Duration(cfg.RateLimitWaitSecs) * time.Second

	var gen llm.Generator
	switch cfg.Type {
	case config.GeneratorNone:
		return nil, nil
	case config.GeneratorGenAI, "":
		if cfg.GenAI == nil {
			return nil, errors.New("genai generator config missing")
		}
		c, err := gemini.New(ctx, gemini.Config{
			APIKeyEnv:       cfg.GenAI.APIKeyEnv,
			Model:           cfg.GenAI.Model,
			Temperature:     cfg.GenAI.Temperature,
			MaxOutputTokens: cfg.GenAI.MaxOutputTokens,
			Timeout:         time.Duration(cfg.GenAI.TimeoutSecs) * time.Second,
		}, observer)
		if err != nil {
			return nil, err
		}
		gen = c
	case config.GeneratorOllama:
		if cfg.Ollama == nil {
			return nil, errors.New("ollama generator config missing")
		}
		oc := ollama.DefaultConfig()
		oc.Endpoint = cfg.Ollama.Endpoint
		oc.Model = cfg.Ollama.Model
		if cfg.Ollama.Temperature != 0 {
			oc.Temperature = cfg.Ollama.Temperature
		}
		if cfg.Ollama.NumPredict != 0 {
			oc.NumPredict = cfg.Ollama.NumPredict
		}
		oc.Timeout = time.Duration(cfg.Ollama.TimeoutSecs) * time.Second
		if cfg.Ollama.MaxRetries != 0 {
			oc.MaxRetries = cfg.Ollama.MaxRetries
		}
		gen = ollama.New(oc, observer)
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
	return llm.RetryOnRateLimit(gen, wait, logger.Named("llm")), nil
}
