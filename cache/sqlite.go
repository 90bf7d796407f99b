package cache

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"corpus/embedder"
	"corpus/internal/vec32"
)

// formatVersion is stamped into the database's user_version pragma so a
// future schema change can detect and migrate old files instead of
// misreading them.
const formatVersion = 1

// durable is the SQLite tier. Rows are keyed by the same hash as the memory
// tier and written with INSERT OR REPLACE, so a write is atomic per key.
type durable struct {
	db *sql.DB
}

func openDurable(path string) (*durable, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &durable{db: db}
	if err := d.init(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *durable) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA user_version=%d", formatVersion),
	}
	for _, p := range pragmas {
		if _, err := d.db.Exec(p); err != nil {
			return fmt.Errorf("pragma failed: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS embeddings (
			key       TEXT PRIMARY KEY,
			text      TEXT NOT NULL,
			model_id  TEXT NOT NULL,
			dimension INTEGER NOT NULL,
			vector    BLOB NOT NULL
		);
	`
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}
	return nil
}

func (d *durable) get(key string) (embedder.Result, bool, error) {
	var res embedder.Result
	var blob []byte

	row := d.db.QueryRow(
		"SELECT text, model_id, dimension, vector FROM embeddings WHERE key = ?", key)
	if err := row.Scan(&res.Text, &res.ModelID, &res.Dimension, &blob); err != nil {
		if err == sql.ErrNoRows {
			return embedder.Result{}, false, nil
		}
		return embedder.Result{}, false, err
	}

	res.Vector = vec32.Decode(blob)
	return res, true, nil
}

func (d *durable) put(key string, res embedder.Result) error {
	_, err := d.db.Exec(
		"INSERT OR REPLACE INTO embeddings (key, text, model_id, dimension, vector) VALUES (?, ?, ?, ?, ?)",
		key, res.Text, res.ModelID, res.Dimension, vec32.Encode(res.Vector))
	return err
}

func (d *durable) clear() error {
	_, err := d.db.Exec("DELETE FROM embeddings")
	return err
}

func (d *durable) count() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM embeddings").Scan(&n)
	return n, err
}

func (d *durable) close() error {
	return d.db.Close()
}
