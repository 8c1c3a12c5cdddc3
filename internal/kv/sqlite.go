// ABOUTME: SQLite Provider storing every namespace in one preferences table
// ABOUTME: Supports the modernc (pure Go) and mattn (cgo) drivers

package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLite driver names accepted by SQLiteConfig.Driver.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// SQLiteConfig configures a SQLiteProvider.
type SQLiteConfig struct {
	Path        string
	Driver      string
	BusyTimeout time.Duration
}

// SQLiteProvider keeps all namespaces in one SQLite database.
type SQLiteProvider struct {
	db     *sql.DB
	logger *slog.Logger

	mu     sync.Mutex
	stores map[string]*sqlStore
}

// NewSQLiteProvider opens the database at cfg.Path, creating parent
// directories and the schema if needed. Path ":memory:" keeps everything in
// one in-process database.
func NewSQLiteProvider(cfg SQLiteConfig) (*SQLiteProvider, error) {
	logger := slog.Default().With("component", "kv.sqlite")

	driver := cfg.Driver
	if driver == "" {
		driver = DriverModernc
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn, err := sqliteDSN(driver, cfg.Path, cfg.BusyTimeout)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.Path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if cfg.Path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	p := &SQLiteProvider{
		db:     db,
		logger: logger,
		stores: make(map[string]*sqlStore),
	}

	if err := p.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite provider initialized", "path", cfg.Path, "driver", driver)
	return p, nil
}

// sqliteDSN builds a DSN carrying the busy timeout in each driver's syntax,
// so it applies to every pooled connection.
func sqliteDSN(driver, path string, busy time.Duration) (string, error) {
	if busy <= 0 {
		busy = 5 * time.Second
	}
	ms := busy.Milliseconds()
	switch driver {
	case DriverModernc:
		return fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, ms), nil
	case DriverMattn:
		return fmt.Sprintf("%s?_busy_timeout=%d", path, ms), nil
	}
	return "", fmt.Errorf("unknown sqlite driver %q", driver)
}

func (p *SQLiteProvider) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS preferences (
			namespace  TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (namespace, key)
		);
	`
	_, err := p.db.Exec(schema)
	return err
}

// Open returns the store for ns. Handles for the same namespace share listeners.
func (p *SQLiteProvider) Open(ctx context.Context, ns Namespace) (Store, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	if err := p.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("opening namespace %s: %w", ns.Name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := ns.ID()
	s, ok := p.stores[id]
	if !ok {
		s = &sqlStore{
			db:        p.db,
			namespace: id,
			listeners: newListenerSet(),
			logger:    p.logger.With("namespace", id),
		}
		p.stores[id] = s
	}
	return s, nil
}

// Close closes the database.
func (p *SQLiteProvider) Close() error {
	return p.db.Close()
}

type sqlStore struct {
	db        *sql.DB
	namespace string
	listeners *listenerSet
	logger    *slog.Logger
}

var _ Store = (*sqlStore)(nil)

func (s *sqlStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting preference: %w", err)
	}
	return value, true, nil
}

func (s *sqlStore) Contains(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM preferences WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking preference: %w", err)
	}
	return n > 0, nil
}

func (s *sqlStore) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM preferences WHERE namespace = ?`,
		s.namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("listing preferences: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning preference: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating preferences: %w", err)
	}
	return out, nil
}

func (s *sqlStore) Edit() Editor {
	return newEditor(s.write, s.listeners, s.logger)
}

func (s *sqlStore) RegisterListener(l Listener) {
	s.listeners.add(l)
}

func (s *sqlStore) UnregisterListener(l Listener) {
	s.listeners.remove(l)
}

func (s *sqlStore) write(ctx context.Context, b Batch) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if b.Clear {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM preferences WHERE namespace = ?`, s.namespace,
		); err != nil {
			return nil, fmt.Errorf("clearing preferences: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	changed := make([]string, 0, len(b.Ops))
	for _, op := range b.Ops {
		if op.Delete {
			res, err := tx.ExecContext(ctx,
				`DELETE FROM preferences WHERE namespace = ? AND key = ?`,
				s.namespace, op.Key,
			)
			if err != nil {
				return nil, fmt.Errorf("removing preference: %w", err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				continue
			}
		} else {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO preferences (namespace, key, value, updated_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (namespace, key) DO UPDATE SET
					value = excluded.value,
					updated_at = excluded.updated_at
			`, s.namespace, op.Key, op.Value, now); err != nil {
				return nil, fmt.Errorf("writing preference: %w", err)
			}
		}
		changed = append(changed, op.Key)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return changed, nil
}
