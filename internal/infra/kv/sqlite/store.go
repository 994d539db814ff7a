// Package sqlite is the local key-value store backend. The JSON tree is kept
// as one row per leaf in a single table so subtree reads are range scans.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/infra/kv"
	"github.com/boddenberg/electritrack-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("kv/sqlite")

// Store implements port.KVStore on SQLite.
type Store struct {
	conn          *sql.DB
	watchInterval time.Duration
	logger        *zap.Logger
}

// New opens (or creates) the database at dbPath and initializes the schema.
// Use ":memory:" for an ephemeral store.
func New(dbPath string, watchInterval time.Duration, logger *zap.Logger) (*Store, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and avoids
	// SQLITE_BUSY between concurrent writers.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn, watchInterval: watchInterval, logger: logger}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv_nodes (
		path TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Get assembles the subtree stored at path.
func (s *Store) Get(ctx context.Context, path string) (port.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "SQLite.Get")
	defer span.End()

	path, err := kv.CleanPath(path)
	if err != nil {
		return port.Snapshot{}, err
	}
	span.SetAttributes(attribute.String("kv.path", path))

	rows, err := s.conn.QueryContext(ctx,
		`SELECT path, value FROM kv_nodes WHERE path = ? OR (path >= ? AND path < ?)`,
		path, path+"/", path+"0",
	)
	if err != nil {
		return port.Snapshot{}, fmt.Errorf("querying %s: %w", path, err)
	}
	defer rows.Close()

	var nodes []kv.Node
	for rows.Next() {
		var n kv.Node
		var value string
		if err := rows.Scan(&n.Path, &value); err != nil {
			return port.Snapshot{}, fmt.Errorf("scanning %s: %w", path, err)
		}
		n.Value = []byte(value)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return port.Snapshot{}, fmt.Errorf("reading %s: %w", path, err)
	}

	raw, err := kv.Assemble(path, nodes)
	if err != nil {
		return port.Snapshot{}, err
	}
	return port.Snapshot{Path: path, Value: raw}, nil
}

// Set replaces the subtree at path with value. Leaf ancestors are removed
// so the new subtree is reachable.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	ctx, span := tracer.Start(ctx, "SQLite.Set")
	defer span.End()

	path, err := kv.CleanPath(path)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("kv.path", path))

	nodes, err := kv.Flatten(path, value)
	if err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM kv_nodes WHERE path = ? OR (path >= ? AND path < ?)`,
		path, path+"/", path+"0",
	); err != nil {
		return fmt.Errorf("clearing %s: %w", path, err)
	}
	for _, a := range kv.Ancestors(path) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv_nodes WHERE path = ?`, a); err != nil {
			return fmt.Errorf("clearing ancestor %s: %w", a, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, n := range nodes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kv_nodes (path, value, updated_at) VALUES (?, ?, ?)`,
			n.Path, string(n.Value), now,
		); err != nil {
			return fmt.Errorf("writing %s: %w", n.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", path, err)
	}

	s.logger.Debug("sqlite: set", zap.String("path", path), zap.Int("nodes", len(nodes)))
	return nil
}

// Push stores value under a new time-ordered child key of path.
func (s *Store) Push(ctx context.Context, path string, value any) (string, error) {
	key := kv.PushKey()
	if err := s.Set(ctx, path+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

// Watch polls path every watch interval.
func (s *Store) Watch(ctx context.Context, path string) (<-chan port.Snapshot, error) {
	path, err := kv.CleanPath(path)
	if err != nil {
		return nil, err
	}
	return kv.PollWatch(ctx, s.watchInterval, path, func(ctx context.Context) (port.Snapshot, error) {
		return s.Get(ctx, path)
	}), nil
}
