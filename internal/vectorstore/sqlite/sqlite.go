package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"runrag/internal/domain"
	"runrag/internal/vectorstore"
)

// FileName is the database file created inside a user's store directory.
const FileName = "documents.db"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		seq       INTEGER PRIMARY KEY AUTOINCREMENT,
		id        TEXT NOT NULL UNIQUE,
		name      TEXT NOT NULL,
		type      TEXT NOT NULL DEFAULT '',
		date      TEXT NOT NULL DEFAULT '',
		text      TEXT NOT NULL,
		metadata  TEXT NOT NULL,
		dimension INTEGER NOT NULL,
		vector    BLOB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(type)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_date ON documents(date)`,
}

// Storage keeps one user's documents in a SQLite file. Vectors are stored as
// little-endian float32 blobs and ranked in process.
type Storage struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" is
// accepted for throwaway stores.
func Open(path string) (*Storage, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// each connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Storage{db: db}, nil
}

func migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, docs []domain.StoredDocument, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return vectorstore.ErrLengthMismatch
	}
	if len(docs) == 0 {
		return nil
	}
	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting upsert transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for i, doc := range docs {
		v := vectors[i]
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return vectorstore.ErrDimensionMismatch
		}
		md, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", doc.ID, err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO documents (id, name, type, date, text, metadata, dimension, vector)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, type = excluded.type, date = excluded.date,
				text = excluded.text, metadata = excluded.metadata,
				dimension = excluded.dimension, vector = excluded.vector`,
			doc.ID, doc.Metadata.Name, doc.Metadata.Type, doc.Metadata.Date, doc.Text, string(md), len(v), encodeVector(v))
		if err != nil {
			return fmt.Errorf("inserting document %s: %w", doc.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	committed = true
	return nil
}

func (s *Storage) dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, `SELECT dimension FROM documents ORDER BY seq LIMIT 1`).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading store dimension: %w", err)
	}
	return dim, nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int, f vectorstore.Filter) ([]domain.StoredDocument, error) {
	cands, err := s.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return vectorstore.Rank(cands, vector, topK, f), nil
}

func (s *Storage) All(ctx context.Context) ([]domain.StoredDocument, error) {
	cands, err := s.load(ctx, vectorstore.Filter{})
	if err != nil {
		return nil, err
	}
	out := make([]domain.StoredDocument, len(cands))
	for i, c := range cands {
		out[i] = c.Doc
	}
	return out, nil
}

func (s *Storage) load(ctx context.Context, f vectorstore.Filter) ([]vectorstore.Candidate, error) {
	query := `SELECT id, text, metadata, vector FROM documents`
	var args []any
	if f.Type != "" {
		query += ` WHERE type = ?`
		args = append(args, f.Type)
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var out []vectorstore.Candidate
	for rows.Next() {
		var (
			c    vectorstore.Candidate
			md   string
			blob []byte
		)
		if err := rows.Scan(&c.Doc.ID, &c.Doc.Text, &md, &blob); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal([]byte(md), &c.Doc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", c.Doc.ID, err)
		}
		c.Vector = decodeVector(blob)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Storage) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("resetting documents: %w", err)
	}
	return nil
}

func (s *Storage) Close() error { return s.db.Close() }

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
