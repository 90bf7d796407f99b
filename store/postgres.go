package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Compile-time interface check.
var _ VectorStore = (*Postgres)(nil)

// Postgres is a durable backend on pgvector. Distance ordering runs in the
// database (`<=>` is cosine distance), with the insertion sequence as the
// tie-break. Without an ivfflat/hnsw index this is an exact scan; adding one
// trades recall for speed, which is an operator decision, not ours.
type Postgres struct {
	pool *pgxpool.Pool
	dims int
}

// NewPostgres connects, verifies the connection and ensures the schema.
// dims fixes the vector column width and must match the embedding provider.
func NewPostgres(ctx context.Context, connStr string, dims int) (*Postgres, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("store: postgres requires a positive vector dimension, got %d", dims)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	p := &Postgres{pool: pool, dims: dims}
	if err := p.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) init(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		`CREATE TABLE IF NOT EXISTS collections (
			id       TEXT PRIMARY KEY,
			metadata JSONB
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			collection_id      TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
			chunk_id           TEXT NOT NULL,
			source_document_id TEXT NOT NULL,
			chunk_index        INTEGER NOT NULL,
			content            TEXT NOT NULL,
			embedding          vector(%d),
			metadata           JSONB,
			seq                BIGSERIAL,
			PRIMARY KEY (collection_id, chunk_id)
		)`, p.dims),
		`CREATE INDEX IF NOT EXISTS chunks_source_idx
			ON chunks (collection_id, source_document_id)`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: postgres schema: %w", err)
		}
	}
	return nil
}

// Create registers a collection. Creating an existing collection is a no-op.
func (p *Postgres) Create(ctx context.Context, collectionID string, metadata map[string]any) error {
	metaJSON, err := marshalMeta(metadata)
	if err != nil {
		return fmt.Errorf("store: create %s: %w", collectionID, err)
	}
	_, err = p.pool.Exec(ctx,
		"INSERT INTO collections (id, metadata) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING",
		collectionID, metaJSON)
	return err
}

func (p *Postgres) exists(ctx context.Context, collectionID string) error {
	var one int
	err := p.pool.QueryRow(ctx, "SELECT 1 FROM collections WHERE id = $1", collectionID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionID)
		}
		return err
	}
	return nil
}

// Add upserts chunks; overwritten chunks keep their original sequence number.
func (p *Postgres) Add(ctx context.Context, collectionID string, chunks []DocumentChunk) error {
	if err := p.exists(ctx, collectionID); err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const q = `
		INSERT INTO chunks (collection_id, chunk_id, source_document_id, chunk_index, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (collection_id, chunk_id) DO UPDATE SET
			source_document_id = excluded.source_document_id,
			chunk_index        = excluded.chunk_index,
			content            = excluded.content,
			embedding          = excluded.embedding,
			metadata           = excluded.metadata
	`
	for _, c := range chunks {
		metaJSON, err := marshalMeta(c.Metadata)
		if err != nil {
			return fmt.Errorf("store: add %s: %w", c.ID, err)
		}
		var vec any
		if c.Embedding != nil {
			vec = pgvector.NewVector(c.Embedding)
		}
		if _, err := tx.Exec(ctx, q,
			collectionID, c.ID, c.SourceDocumentID, c.ChunkIndex,
			c.Text, vec, metaJSON); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Search ranks by cosine distance in the database.
func (p *Postgres) Search(ctx context.Context, collectionID string, query []float32, topK int) ([]SearchResult, error) {
	if err := p.exists(ctx, collectionID); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []SearchResult{}, nil
	}

	vec := pgvector.NewVector(query)
	rows, err := p.pool.Query(ctx, `
		SELECT chunk_id, content, metadata, (embedding <=> $2)::float8 AS distance
		FROM chunks
		WHERE collection_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2, seq
		LIMIT $3
	`, collectionID, vec, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		var metaJSON []byte
		if err := rows.Scan(&r.ChunkID, &r.Text, &metaJSON, &r.Distance); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			var meta map[string]any
			if err := json.Unmarshal(metaJSON, &meta); err == nil {
				r.Metadata = meta
			}
		}
		r.CollectionID = collectionID
		results = append(results, r)
	}
	return results, rows.Err()
}

// RemoveDocument drops every chunk belonging to a source document.
func (p *Postgres) RemoveDocument(ctx context.Context, collectionID, sourceDocumentID string) error {
	if err := p.exists(ctx, collectionID); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx,
		"DELETE FROM chunks WHERE collection_id = $1 AND source_document_id = $2",
		collectionID, sourceDocumentID)
	return err
}

// Delete removes a collection and its chunks. Unknown ids are a no-op.
func (p *Postgres) Delete(ctx context.Context, collectionID string) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM collections WHERE id = $1", collectionID)
	return err
}

// Collections enumerates stored collections.
func (p *Postgres) Collections(ctx context.Context) ([]CollectionRecord, error) {
	rows, err := p.pool.Query(ctx, "SELECT id, metadata FROM collections")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CollectionRecord
	for rows.Next() {
		var rec CollectionRecord
		var metaJSON []byte
		if err := rows.Scan(&rec.ID, &metaJSON); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			var meta map[string]any
			if err := json.Unmarshal(metaJSON, &meta); err == nil {
				rec.Metadata = meta
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats summarizes a collection.
func (p *Postgres) Stats(ctx context.Context, collectionID string) (CollectionStats, error) {
	if err := p.exists(ctx, collectionID); err != nil {
		return CollectionStats{}, err
	}

	var stats CollectionStats
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(LENGTH(content)), 0), COUNT(DISTINCT source_document_id)
		FROM chunks WHERE collection_id = $1
	`, collectionID).Scan(&stats.ChunkCount, &stats.AvgChunkLength, &stats.SourceDocumentCount)
	return stats, err
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
