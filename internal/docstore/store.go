// Package docstore is the per-user document store: it renders records,
// embeds them and answers the lookups the retrieval engine needs.
package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"runrag/internal/document"
	"runrag/internal/domain"
	"runrag/internal/embedding"
	"runrag/internal/vectorstore"
)

// Store answers queries over one user's documents.
type Store struct {
	user     string
	backend  vectorstore.Storage
	embedder embedding.Embedder
	logger   *zap.Logger
	// interval paces embedding calls during bulk ingestion.
	interval time.Duration
	sleep    func(context.Context, time.Duration) error
}

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the logger used for ingestion progress.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithInterval sets the pause between consecutive embeddings in Upsert.
func WithInterval(d time.Duration) Option {
	return func(s *Store) { s.interval = d }
}

// New wraps a backend. The embedder is used for both documents and queries.
func New(user string, backend vectorstore.Storage, emb embedding.Embedder, opts ...Option) *Store {
	s := &Store{
		user:     user,
		backend:  backend,
		embedder: emb,
		logger:   zap.NewNop(),
		sleep:    sleepCtx,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// User returns the owner of this store.
func (s *Store) User() string { return s.user }

// Upsert renders, embeds and appends each record, one at a time, so an
// interrupted run keeps what was already written. It returns the number of
// documents written. Records are not de-duplicated.
func (s *Store) Upsert(ctx context.Context, records []domain.ActivityRecord) (int, error) {
	written := 0
	for i, rec := range records {
		if i > 0 && s.interval > 0 {
			if err := s.sleep(ctx, s.interval); err != nil {
				return written, err
			}
		}
		doc := document.FromRecord(rec)
		vec, err := s.embedder.Embed(ctx, doc.Text)
		if err != nil {
			return written, fmt.Errorf("embedding %q: %w", rec.Name, err)
		}
		if err := s.backend.Upsert(ctx, []domain.StoredDocument{doc}, [][]float32{vec}); err != nil {
			return written, fmt.Errorf("storing %q: %w", rec.Name, err)
		}
		written++
		s.logger.Debug("stored activity",
			zap.String("user", s.user),
			zap.String("name", rec.Name),
			zap.String("id", doc.ID),
		)
	}
	return written, nil
}

// ListNames returns the names of every stored activity.
func (s *Store) ListNames(ctx context.Context) (map[string]struct{}, error) {
	docs, err := s.backend.All(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		names[d.Metadata.Name] = struct{}{}
	}
	return names, nil
}

// Search returns up to k documents nearest to query, optionally restricted
// to an activity type. An empty query skips embedding and enumerates matching
// documents in store order. k <= 0 means no limit.
func (s *Store) Search(ctx context.Context, query, typeEq string, k int) ([]domain.StoredDocument, error) {
	var vec []float32
	if strings.TrimSpace(query) != "" {
		v, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embedding query: %w", err)
		}
		vec = v
	}
	return s.backend.Search(ctx, vec, k, vectorstore.Filter{Type: typeEq})
}

// GetByNames returns every document whose name contains any of names,
// ignoring case, in store order.
func (s *Store) GetByNames(ctx context.Context, names []string) ([]domain.StoredDocument, error) {
	needles := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			needles = append(needles, n)
		}
	}
	if len(needles) == 0 {
		return nil, nil
	}
	docs, err := s.backend.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.StoredDocument
	for _, d := range docs {
		name := strings.ToLower(d.Metadata.Name)
		for _, n := range needles {
			if strings.Contains(name, n) {
				out = append(out, d)
				break
			}
		}
	}
	return out, nil
}

// Latest returns the n most recent documents by date, newest first. Ties
// keep store order; documents with unparseable dates sort last.
func (s *Store) Latest(ctx context.Context, n int) ([]domain.StoredDocument, error) {
	if n <= 0 {
		return nil, nil
	}
	docs, err := s.backend.All(ctx)
	if err != nil {
		return nil, err
	}
	SortByDateDesc(docs)
	if len(docs) > n {
		docs = docs[:n]
	}
	return docs, nil
}

// Reset deletes every document of the user.
func (s *Store) Reset(ctx context.Context) error {
	return s.backend.Reset(ctx)
}

// Close releases the backend.
func (s *Store) Close() error { return s.backend.Close() }

// SortByDateDesc orders docs newest first by Metadata.Date. The sort is
// stable and documents whose date does not parse go to the end.
func SortByDateDesc(docs []domain.StoredDocument) {
	type keyed struct {
		doc domain.StoredDocument
		t   time.Time
		ok  bool
	}
	ks := make([]keyed, len(docs))
	for i, d := range docs {
		t, err := ParseDate(d.Metadata.Date)
		ks[i] = keyed{doc: d, t: t, ok: err == nil}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].ok != ks[j].ok {
			return ks[i].ok
		}
		return ks[i].ok && ks[i].t.After(ks[j].t)
	})
	for i := range ks {
		docs[i] = ks[i].doc
	}
}

// ParseDate parses a stored date, accepting a bare YYYY-MM-DD as well.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(domain.DateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
