package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"runrag/internal/embedding"
	"runrag/internal/vectorstore"
	"runrag/internal/vectorstore/memory"
	"runrag/internal/vectorstore/qdrant"
	"runrag/internal/vectorstore/sqlite"
)

// Backend names accepted in Config.Backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

// ErrInvalidUser is returned for user IDs that cannot name a store.
var ErrInvalidUser = errors.New("invalid user id")

var userPattern = regexp.MustCompile(`^[A-Za-z0-9_.@-]+$`)

// QdrantConfig locates the Qdrant server. Each user gets the collection
// CollectionPrefix + userID.
type QdrantConfig struct {
	URL              string
	APIKey           string
	CollectionPrefix string
	Timeout          time.Duration
}

// Config selects and locates the backend for every user store.
type Config struct {
	Backend  string
	Root     string
	Qdrant   QdrantConfig
	Interval time.Duration
}

// Manager hands out one Store per user, opening backends lazily.
type Manager struct {
	cfg      Config
	embedder embedding.Embedder
	logger   *zap.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

// NewManager builds a manager over cfg.
func NewManager(cfg Config, emb embedding.Embedder, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendMemory
	}
	return &Manager{
		cfg:      cfg,
		embedder: emb,
		logger:   logger,
		stores:   make(map[string]*Store),
	}
}

// Open returns the store of userID, creating it on first use. A user that
// never ingested anything gets an empty store.
func (m *Manager) Open(ctx context.Context, userID string) (*Store, error) {
	if !userPattern.MatchString(userID) || userID == "." || userID == ".." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUser, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stores[userID]; ok {
		return s, nil
	}
	backend, err := m.openBackend(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("opening store for %s: %w", userID, err)
	}
	s := New(userID, backend, m.embedder,
		WithLogger(m.logger.With(zap.String("user", userID))),
		WithInterval(m.cfg.Interval),
	)
	m.stores[userID] = s
	m.logger.Debug("opened store", zap.String("user", userID), zap.String("backend", m.cfg.Backend))
	return s, nil
}

func (m *Manager) openBackend(_ context.Context, userID string) (vectorstore.Storage, error) {
	switch m.cfg.Backend {
	case BackendMemory:
		return memory.NewStorage(), nil
	case BackendSQLite:
		root := m.cfg.Root
		if root == "" {
			return nil, errors.New("sqlite store requires a root directory")
		}
		dir := filepath.Join(root, userID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
		return sqlite.Open(filepath.Join(dir, sqlite.FileName))
	case BackendQdrant:
		return qdrant.NewStorage(qdrant.Config{
			URL:        m.cfg.Qdrant.URL,
			APIKey:     m.cfg.Qdrant.APIKey,
			Collection: m.cfg.Qdrant.CollectionPrefix + userID,
			Timeout:    m.cfg.Qdrant.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", m.cfg.Backend)
	}
}

// Close closes every open store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for id, s := range m.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store %s: %w", id, err))
		}
		delete(m.stores, id)
	}
	return errors.Join(errs...)
}
