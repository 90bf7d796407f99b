package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"

	"corpus/embedder"
	"corpus/internal/vec32"
)

// Compile-time interface check.
var _ VectorStore = (*SQLite)(nil)

// SQLite is a durable backend. Vectors are stored as little-endian float32
// blobs and metadata as JSON, so every DocumentChunk field round-trips
// losslessly. Search is an exact linear scan over the collection's rows, run
// in insertion (seq) order so the stable sort preserves the tie-break
// contract.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and creates) a store at the given path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("store: pragma failed: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS collections (
			id       TEXT PRIMARY KEY,
			metadata TEXT
		);
		CREATE TABLE IF NOT EXISTS chunks (
			collection_id      TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			chunk_id           TEXT NOT NULL,
			source_document_id TEXT NOT NULL,
			chunk_index        INTEGER NOT NULL,
			content            TEXT NOT NULL,
			embedding          BLOB,
			metadata           TEXT,
			seq                INTEGER NOT NULL,
			PRIMARY KEY (collection_id, chunk_id)
		);
		CREATE INDEX IF NOT EXISTS chunks_source_idx
			ON chunks (collection_id, source_document_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: schema creation failed: %w", err)
	}
	return nil
}

// Create registers a collection. Creating an existing collection is a no-op.
func (s *SQLite) Create(ctx context.Context, collectionID string, metadata map[string]any) error {
	metaJSON, err := marshalMeta(metadata)
	if err != nil {
		return fmt.Errorf("store: create %s: %w", collectionID, err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO collections (id, metadata) VALUES (?, ?)",
		collectionID, metaJSON)
	return err
}

func (s *SQLite) exists(ctx context.Context, q queryer, collectionID string) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM collections WHERE id = ?", collectionID).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionID)
	}
	return err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Add upserts chunks. New chunks get the next insertion sequence number;
// overwritten chunks keep their original one, so tie-breaks stay stable
// across re-ingestion.
func (s *SQLite) Add(ctx context.Context, collectionID string, chunks []DocumentChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.exists(ctx, tx, collectionID); err != nil {
		return err
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM chunks WHERE collection_id = ?",
		collectionID).Scan(&seq); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (collection_id, chunk_id, source_document_id, chunk_index, content, embedding, metadata, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection_id, chunk_id) DO UPDATE SET
			source_document_id = excluded.source_document_id,
			chunk_index        = excluded.chunk_index,
			content            = excluded.content,
			embedding          = excluded.embedding,
			metadata           = excluded.metadata
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		metaJSON, err := marshalMeta(c.Metadata)
		if err != nil {
			return fmt.Errorf("store: add %s: %w", c.ID, err)
		}
		var blob []byte
		if c.Embedding != nil {
			blob = vec32.Encode(c.Embedding)
		}
		seq++
		if _, err := stmt.ExecContext(ctx,
			collectionID, c.ID, c.SourceDocumentID, c.ChunkIndex,
			c.Text, blob, metaJSON, seq); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Search scans the collection's embedded chunks and returns the topK nearest.
func (s *SQLite) Search(ctx context.Context, collectionID string, query []float32, topK int) ([]SearchResult, error) {
	if err := s.exists(ctx, s.db, collectionID); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []SearchResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, content, metadata, embedding
		FROM chunks
		WHERE collection_id = ? AND embedding IS NOT NULL
		ORDER BY seq
	`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			chunkID  string
			content  string
			metaJSON sql.NullString
			blob     []byte
		)
		if err := rows.Scan(&chunkID, &content, &metaJSON, &blob); err != nil {
			return nil, err
		}

		dist, err := embedder.Distance(query, vec32.Decode(blob))
		if err != nil {
			return nil, fmt.Errorf("store: search %s: %w", collectionID, err)
		}

		results = append(results, SearchResult{
			ChunkID:      chunkID,
			Text:         content,
			Metadata:     unmarshalMeta(metaJSON),
			Distance:     dist,
			CollectionID: collectionID,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > topK {
		results = results[:topK]
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// RemoveDocument drops every chunk belonging to a source document.
func (s *SQLite) RemoveDocument(ctx context.Context, collectionID, sourceDocumentID string) error {
	if err := s.exists(ctx, s.db, collectionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE collection_id = ? AND source_document_id = ?",
		collectionID, sourceDocumentID)
	return err
}

// Delete removes a collection and its chunks. Unknown ids are a no-op.
func (s *SQLite) Delete(ctx context.Context, collectionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE collection_id = ?", collectionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE id = ?", collectionID); err != nil {
		return err
	}
	return tx.Commit()
}

// Collections enumerates stored collections.
func (s *SQLite) Collections(ctx context.Context) ([]CollectionRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, metadata FROM collections")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CollectionRecord
	for rows.Next() {
		var rec CollectionRecord
		var metaJSON sql.NullString
		if err := rows.Scan(&rec.ID, &metaJSON); err != nil {
			return nil, err
		}
		rec.Metadata = unmarshalMeta(metaJSON)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats summarizes a collection.
func (s *SQLite) Stats(ctx context.Context, collectionID string) (CollectionStats, error) {
	if err := s.exists(ctx, s.db, collectionID); err != nil {
		return CollectionStats{}, err
	}

	var stats CollectionStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(LENGTH(content)), 0), COUNT(DISTINCT source_document_id)
		FROM chunks WHERE collection_id = ?
	`, collectionID).Scan(&stats.ChunkCount, &stats.AvgChunkLength, &stats.SourceDocumentCount)
	return stats, err
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func marshalMeta(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	return json.Marshal(meta)
}

func unmarshalMeta(metaJSON sql.NullString) map[string]any {
	if !metaJSON.Valid || metaJSON.String == "" {
		return nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(metaJSON.String), &meta); err != nil {
		return nil
	}
	return meta
}
