// Package retrieval resolves a QueryFilter into an ordered list of stored
// documents, falling back to the most recent runs when nothing matches.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"runrag/internal/docstore"
	"runrag/internal/domain"
)

// Store is the part of the document store the engine reads from.
type Store interface {
	Search(ctx context.Context, query, typeEq string, k int) ([]domain.StoredDocument, error)
	GetByNames(ctx context.Context, names []string) ([]domain.StoredDocument, error)
	Latest(ctx context.Context, n int) ([]domain.StoredDocument, error)
}

// Tier names the strategy that produced a Result.
type Tier string

const (
	TierNames    Tier = "names"
	TierFilter   Tier = "filter"
	TierFallback Tier = "latest"
)

// Config holds the engine's limits.
type Config struct {
	// ResultCap is the default and maximum number of documents returned.
	ResultCap int
	// Oversample multiplies the limit when fetching candidates for
	// post-filtering.
	Oversample int
	// FallbackLatest is how many recent runs the fallback returns.
	FallbackLatest int
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{ResultCap: 20, Oversample: 3, FallbackLatest: 5}
}

// Result is the outcome of one query.
type Result struct {
	Documents []domain.StoredDocument
	Tier      Tier
	// Fallback is set when the filter matched nothing and Documents are the
	// latest runs instead.
	Fallback bool
}

// RetrievalError wraps a store failure with the operation that failed.
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string { return fmt.Sprintf("retrieval %s: %v", e.Op, e.Err) }
func (e *RetrievalError) Unwrap() error { return e.Err }

type Engine struct {
	store  Store
	cfg    Config
	logger *zap.Logger
}

func New(store Store, cfg Config, logger *zap.Logger) *Engine {
	def := DefaultConfig()
	if cfg.ResultCap <= 0 {
		cfg.ResultCap = def.ResultCap
	}
	if cfg.Oversample <= 0 {
		cfg.Oversample = def.Oversample
	}
	if cfg.FallbackLatest <= 0 {
		cfg.FallbackLatest = def.FallbackLatest
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, cfg: cfg, logger: logger}
}

// Query runs f against the store. limit <= 0 or above the cap means the cap.
// Named runs win over every other field. Anything that yields no documents,
// contradictory filters included, falls back to the latest runs.
func (e *Engine) Query(ctx context.Context, f domain.QueryFilter, limit int) (Result, error) {
	if limit <= 0 || limit > e.cfg.ResultCap {
		limit = e.cfg.ResultCap
	}

	var (
		res Result
		err error
	)
	if f.HasRunNames() {
		res, err = e.byNames(ctx, f.RunNames, limit)
	} else {
		res, err = e.byFilter(ctx, f, limit)
	}
	if err != nil {
		return Result{}, err
	}
	if len(res.Documents) > 0 {
		return res, nil
	}

	docs, err := e.store.Latest(ctx, e.cfg.FallbackLatest)
	if err != nil {
		return Result{}, &RetrievalError{Op: "latest", Err: err}
	}
	e.logger.Info("no documents matched, falling back to latest runs",
		zap.String("tier", string(res.Tier)), zap.Int("returned", len(docs)))
	return Result{Documents: docs, Tier: TierFallback, Fallback: true}, nil
}

func (e *Engine) byNames(ctx context.Context, names []string, limit int) (Result, error) {
	docs, err := e.store.GetByNames(ctx, names)
	if err != nil {
		return Result{}, &RetrievalError{Op: "get_by_names", Err: err}
	}
	return Result{Documents: capDocs(docs, limit), Tier: TierNames}, nil
}

func (e *Engine) byFilter(ctx context.Context, f domain.QueryFilter, limit int) (Result, error) {
	typeEq := ""
	if f.Type != nil {
		typeEq = *f.Type
	}
	k := limit * e.cfg.Oversample
	if f.LastNRuns != nil {
		// recency needs every candidate, not the first k in store order
		k = 0
	}
	cands, err := e.store.Search(ctx, "", typeEq, k)
	if err != nil {
		return Result{}, &RetrievalError{Op: "search", Err: err}
	}

	docs := make([]domain.StoredDocument, 0, len(cands))
	for _, d := range cands {
		if Matches(f, d.Metadata) {
			docs = append(docs, d)
		}
	}
	if f.LastNRuns != nil {
		docstore.SortByDateDesc(docs)
		docs = capDocs(docs, *f.LastNRuns)
	}
	return Result{Documents: capDocs(docs, limit), Tier: TierFilter}, nil
}

// Matches applies the metadata predicates of f to md. Missing heart rate
// passes both bounds and missing distance passes the distance bound. Date
// bounds compare lexically and inclusively on the bound's length, so a bare
// date covers the whole day.
func Matches(f domain.QueryFilter, md domain.Metadata) bool {
	if f.Type != nil && md.Type != *f.Type {
		return false
	}
	if md.AvgHR != nil {
		if f.MinAvgHR != nil && *md.AvgHR < *f.MinAvgHR {
			return false
		}
		if f.MaxAvgHR != nil && *md.AvgHR > *f.MaxAvgHR {
			return false
		}
	}
	if f.DistanceKM != nil && md.Distance != nil && *md.Distance < *f.DistanceKM {
		return false
	}
	if f.StartDate != nil && datePrefix(md.Date, *f.StartDate) < strings.TrimSpace(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && datePrefix(md.Date, *f.EndDate) > strings.TrimSpace(*f.EndDate) {
		return false
	}
	return true
}

func datePrefix(date, bound string) string {
	n := len(strings.TrimSpace(bound))
	if len(date) > n {
		return date[:n]
	}
	return date
}

func capDocs(docs []domain.StoredDocument, n int) []domain.StoredDocument {
	if n >= 0 && len(docs) > n {
		return docs[:n]
	}
	return docs
}
