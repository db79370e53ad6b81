// Package vectorstore defines the backend port for per-user document storage
// and the similarity ranking shared by the local backends.
package vectorstore

import (
	"context"
	"errors"
	"math"
	"sort"

	"runrag/internal/domain"
)

var (
	// ErrLengthMismatch is returned when docs and vectors differ in length.
	ErrLengthMismatch = errors.New("documents and vectors length mismatch")
	// ErrDimensionMismatch is returned when a vector does not match the
	// dimension the store was first written with.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Filter restricts a search by metadata. Zero values mean "no constraint".
type Filter struct {
	Type string
}

// Match reports whether md satisfies the filter.
func (f Filter) Match(md domain.Metadata) bool {
	return f.Type == "" || md.Type == f.Type
}

// Storage persists documents with their vectors for one user.
//
// Search ranks by cosine similarity. When the query vector is empty, or
// scores tie, documents keep insertion order. A topK <= 0 returns every
// match. All returns documents in insertion order.
type Storage interface {
	Upsert(ctx context.Context, docs []domain.StoredDocument, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int, f Filter) ([]domain.StoredDocument, error)
	All(ctx context.Context) ([]domain.StoredDocument, error)
	Reset(ctx context.Context) error
	Close() error
}

// Candidate is a stored document with its vector, in insertion order.
type Candidate struct {
	Doc    domain.StoredDocument
	Vector []float32
}

// Rank filters candidates and orders them by descending cosine similarity to
// query. The sort is stable so insertion order breaks ties.
func Rank(cands []Candidate, query []float32, topK int, f Filter) []domain.StoredDocument {
	type scored struct {
		doc   domain.StoredDocument
		score float64
	}
	matched := make([]scored, 0, len(cands))
	for _, c := range cands {
		if !f.Match(c.Doc.Metadata) {
			continue
		}
		s := 0.0
		if len(query) > 0 {
			s = Cosine(c.Vector, query)
		}
		matched = append(matched, scored{doc: c.Doc, score: s})
	}
	if len(query) > 0 {
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].score > matched[j].score })
	}
	if topK > 0 && topK < len(matched) {
		matched = matched[:topK]
	}
	out := make([]domain.StoredDocument, len(matched))
	for i, m := range matched {
		out[i] = m.doc
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
