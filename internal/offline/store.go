// Package offline implements the device-side resilience layer: a durable
// key→JSON store on embedded SQLite, the offline action queue that defers
// backend mutations while the network is down, and the offline audio queue
// that stages every captured clip before any transcription attempt.
package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Keyspace names the three logical stores sharing one SQLite file.
const (
	KeyspaceActions   = "pending_actions"
	KeyspaceAudio     = "pending_audio"
	KeyspaceSnapshots = "form_snapshots"
)

// Store is a durable key→JSON store. Values are marshalled on Put and
// unmarshalled on Get; atomicity is per statement, single process only.
// Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if needed creates) the store at path. Use ":memory:"
// for an ephemeral store in tests.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("offline: open store: %w", err)
	}
	// modernc.org/sqlite serializes access per connection; a single
	// connection avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("offline: %s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.initDB(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initDB creates the backing table and indexes.
func (s *Store) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS offline_store (
			keyspace   TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (keyspace, key)
		)
	`)
	if err != nil {
		return fmt.Errorf("offline: create offline_store table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_offline_store_keyspace ON offline_store(keyspace)`)
	if err != nil {
		return fmt.Errorf("offline: create keyspace index: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put marshals value as JSON and upserts it under (keyspace, key).
func (s *Store) Put(ctx context.Context, keyspace, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("offline: marshal %s/%s: %w", keyspace, key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO offline_store (keyspace, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (keyspace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		keyspace, key, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("offline: put %s/%s: %w", keyspace, key, err)
	}
	return nil
}

// Get unmarshals the value under (keyspace, key) into dest. Returns false
// when the key does not exist.
func (s *Store) Get(ctx context.Context, keyspace, key string, dest any) (bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM offline_store WHERE keyspace = ? AND key = ?`,
		keyspace, key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("offline: get %s/%s: %w", keyspace, key, err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("offline: unmarshal %s/%s: %w", keyspace, key, err)
	}
	return true, nil
}

// Delete removes the value under (keyspace, key). Deleting a missing key is
// not an error.
func (s *Store) Delete(ctx context.Context, keyspace, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM offline_store WHERE keyspace = ? AND key = ?`,
		keyspace, key,
	)
	if err != nil {
		return fmt.Errorf("offline: delete %s/%s: %w", keyspace, key, err)
	}
	return nil
}

// List returns every value in keyspace as raw JSON, keyed by store key.
func (s *Store) List(ctx context.Context, keyspace string) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM offline_store WHERE keyspace = ?`,
		keyspace,
	)
	if err != nil {
		return nil, fmt.Errorf("offline: list %s: %w", keyspace, err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("offline: scan %s: %w", keyspace, err)
		}
		out[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("offline: list %s: %w", keyspace, err)
	}
	return out, nil
}

// Count returns the number of keys in keyspace.
func (s *Store) Count(ctx context.Context, keyspace string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM offline_store WHERE keyspace = ?`,
		keyspace,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("offline: count %s: %w", keyspace, err)
	}
	return n, nil
}
