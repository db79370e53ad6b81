package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"runrag/internal/domain"
	"runrag/internal/vectorstore"
)

const scrollPage = 256

var errNotFound = errors.New("qdrant: not found")

// Storage is a minimal REST client to Qdrant holding one user's documents in
// one collection. It assumes cosine distance and creates the collection on
// first write. A payload sequence number preserves insertion order.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu      sync.Mutex
	ready   bool
	nextSeq int64
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type payload struct {
	Seq      int64           `json:"seq"`
	Type     string          `json:"type"`
	Text     string          `json:"text"`
	Metadata domain.Metadata `json:"metadata"`
}

type point struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Payload payload `json:"payload"`
}

func (p point) doc() domain.StoredDocument {
	return domain.StoredDocument{ID: p.ID, Text: p.Payload.Text, Metadata: p.Payload.Metadata}
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

// ensure creates the collection when missing and primes the sequence counter.
// Callers hold s.mu.
func (s *Storage) ensure(ctx context.Context, dimension int) error {
	if s.ready {
		return nil
	}
	err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, nil)
	switch {
	case errors.Is(err, errNotFound):
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		if err := s.do(ctx, http.MethodPut, s.collectionURL(), body, nil); err != nil {
			return err
		}
		s.nextSeq = 0
	case err != nil:
		return err
	default:
		var resp struct {
			Result struct {
				Count int64 `json:"count"`
			} `json:"result"`
		}
		if err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp); err != nil {
			return err
		}
		s.nextSeq = resp.Result.Count
	}
	s.ready = true
	return nil
}

func (s *Storage) Upsert(ctx context.Context, docs []domain.StoredDocument, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return vectorstore.ErrLengthMismatch
	}
	if len(docs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(ctx, len(vectors[0])); err != nil {
		return err
	}
	points := make([]map[string]any, len(docs))
	for i, d := range docs {
		points[i] = map[string]any{
			"id":     d.ID,
			"vector": vectors[i],
			"payload": payload{
				Seq:      s.nextSeq + int64(i),
				Type:     d.Metadata.Type,
				Text:     d.Text,
				Metadata: d.Metadata,
			},
		}
	}
	body := map[string]any{"points": points}
	if err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil); err != nil {
		return err
	}
	s.nextSeq += int64(len(docs))
	return nil
}

func filterBody(f vectorstore.Filter) map[string]any {
	if f.Type == "" {
		return nil
	}
	return map[string]any{
		"must": []map[string]any{
			{"key": "type", "match": map[string]any{"value": f.Type}},
		},
	}
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int, f vectorstore.Filter) ([]domain.StoredDocument, error) {
	if len(vector) == 0 {
		pts, err := s.scroll(ctx, f)
		if err != nil {
			return nil, err
		}
		if topK > 0 && topK < len(pts) {
			pts = pts[:topK]
		}
		return docs(pts), nil
	}

	limit := topK
	if limit <= 0 {
		n, err := s.count(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		limit = int(n)
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if fb := filterBody(f); fb != nil {
		req["filter"] = fb
	}
	var resp struct {
		Result []point `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pts := resp.Result
	sort.SliceStable(pts, func(i, j int) bool {
		if pts[i].Score != pts[j].Score {
			return pts[i].Score > pts[j].Score
		}
		return pts[i].Payload.Seq < pts[j].Payload.Seq
	})
	return docs(pts), nil
}

func (s *Storage) All(ctx context.Context) ([]domain.StoredDocument, error) {
	pts, err := s.scroll(ctx, vectorstore.Filter{})
	if err != nil {
		return nil, err
	}
	return docs(pts), nil
}

func (s *Storage) count(ctx context.Context) (int64, error) {
	var resp struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	return resp.Result.Count, err
}

// scroll pages through every matching point and returns them by seq.
func (s *Storage) scroll(ctx context.Context, f vectorstore.Filter) ([]point, error) {
	var (
		out    []point
		offset any
	)
	for {
		req := map[string]any{
			"limit":        scrollPage,
			"with_payload": true,
			"with_vector":  false,
		}
		if fb := filterBody(f); fb != nil {
			req["filter"] = fb
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points         []point `json:"points"`
				NextPageOffset any     `json:"next_page_offset"`
			} `json:"result"`
		}
		err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/scroll", req, &resp)
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, resp.Result.Points...)
		if resp.Result.NextPageOffset == nil {
			break
		}
		offset = resp.Result.NextPageOffset
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Payload.Seq < out[j].Payload.Seq })
	return out, nil
}

func (s *Storage) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	if err != nil && !errors.Is(err, errNotFound) {
		return err
	}
	s.ready = false
	s.nextSeq = 0
	return nil
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func docs(pts []point) []domain.StoredDocument {
	out := make([]domain.StoredDocument, len(pts))
	for i, p := range pts {
		out[i] = p.doc()
	}
	return out
}

func (s *Storage) do(ctx context.Context, method, url string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("qdrant %s %s: %w", method, url, errNotFound)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
