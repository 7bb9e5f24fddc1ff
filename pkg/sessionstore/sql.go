package sessionstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// SQLStore is a SQL-backed snapshot store.
// It works with any database/sql compatible driver (PostgreSQL, MySQL,
// SQLite). The schema it expects:
//
//	CREATE TABLE urlbind_sessions (
//	    id VARCHAR(64) PRIMARY KEY,
//	    data BYTEA NOT NULL,
//	    expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
//	    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
//	    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
//	);
//	CREATE INDEX idx_urlbind_sessions_expires ON urlbind_sessions(expires_at);
type SQLStore struct {
	db              *sql.DB
	tableName       string
	dialect         SQLDialect
	cleanupInterval time.Duration

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// SQLDialect selects the SQL flavor for query generation.
type SQLDialect int

const (
	// DialectPostgreSQL uses PostgreSQL syntax ($1, $2 placeholders).
	DialectPostgreSQL SQLDialect = iota
	// DialectMySQL uses MySQL syntax (? placeholders).
	DialectMySQL
	// DialectSQLite uses SQLite syntax (? placeholders).
	DialectSQLite
)

// SQLStoreOption configures SQLStore behavior.
type SQLStoreOption func(*sqlStoreConfig)

type sqlStoreConfig struct {
	tableName       string
	dialect         SQLDialect
	cleanupInterval time.Duration
}

// WithSQLTableName sets the table name for snapshot storage.
// Default: "urlbind_sessions".
func WithSQLTableName(name string) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect for query generation.
// Default: DialectPostgreSQL.
func WithSQLDialect(dialect SQLDialect) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.dialect = dialect
	}
}

// WithSQLCleanupInterval sets how often expired snapshots are swept.
// Default: 5 minutes.
func WithSQLCleanupInterval(d time.Duration) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.cleanupInterval = d
	}
}

// NewSQLStore creates a new SQL-backed snapshot store.
// The *sql.DB is borrowed, not owned: Close does not close it.
func NewSQLStore(db *sql.DB, opts ...SQLStoreOption) *SQLStore {
	cfg := &sqlStoreConfig{
		tableName:       "urlbind_sessions",
		dialect:         DialectPostgreSQL,
		cleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	store := &SQLStore{
		db:              db,
		tableName:       cfg.tableName,
		dialect:         cfg.dialect,
		cleanupInterval: cfg.cleanupInterval,
		done:            make(chan struct{}),
	}

	go store.cleanupLoop()
	return store
}

func (s *SQLStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// placeholder returns the parameter marker for the dialect.
func (s *SQLStore) placeholder(n int) string {
	if s.dialect == DialectPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// nowExpr returns the dialect's current-timestamp expression.
func (s *SQLStore) nowExpr() string {
	if s.dialect == DialectSQLite {
		return "datetime('now')"
	}
	return "NOW()"
}

// upsertQuery returns the insert-or-replace statement for one snapshot.
// Shared by Save and SaveAll. Parameters: id, data, expires_at.
func (s *SQLStore) upsertQuery() string {
	switch s.dialect {
	case DialectMySQL:
		return fmt.Sprintf(`
			INSERT INTO %s (id, data, expires_at, updated_at)
			VALUES (?, ?, ?, NOW())
			ON DUPLICATE KEY UPDATE
				data = VALUES(data),
				expires_at = VALUES(expires_at),
				updated_at = NOW()
		`, s.tableName)
	case DialectSQLite:
		return fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (id, data, expires_at, updated_at)
			VALUES (?, ?, ?, datetime('now'))
		`, s.tableName)
	default:
		return fmt.Sprintf(`
			INSERT INTO %s (id, data, expires_at, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (id) DO UPDATE SET
				data = EXCLUDED.data,
				expires_at = EXCLUDED.expires_at,
				updated_at = NOW()
		`, s.tableName)
	}
}

// Save stores snapshot bytes with an expiry.
func (s *SQLStore) Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error {
	if s.isClosed() {
		return ErrStoreClosed{}
	}

	_, err := s.db.ExecContext(ctx, s.upsertQuery(), id, data, expiresAt)
	return err
}

// Load retrieves snapshot bytes if they exist and haven't expired.
func (s *SQLStore) Load(ctx context.Context, id string) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed{}
	}

	query := fmt.Sprintf(`
		SELECT data FROM %s
		WHERE id = %s AND expires_at > %s
	`, s.tableName, s.placeholder(1), s.nowExpr())

	var data []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Delete removes a snapshot from the database.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	if s.isClosed() {
		return ErrStoreClosed{}
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, s.tableName, s.placeholder(1))
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// Touch extends the expiry of a snapshot.
func (s *SQLStore) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	if s.isClosed() {
		return ErrStoreClosed{}
	}

	query := fmt.Sprintf(`
		UPDATE %s SET expires_at = %s, updated_at = %s
		WHERE id = %s
	`, s.tableName, s.placeholder(1), s.nowExpr(), s.placeholder(2))

	_, err := s.db.ExecContext(ctx, query, expiresAt, id)
	return err
}

// SaveAll stores multiple snapshots inside one transaction.
func (s *SQLStore) SaveAll(ctx context.Context, snapshots map[string]Record) error {
	if s.isClosed() {
		return ErrStoreClosed{}
	}
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.upsertQuery())
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, rec := range snapshots {
		if _, err := stmt.ExecContext(ctx, id, rec.Data, rec.ExpiresAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Close stops the cleanup loop. It does not close the underlying *sql.DB,
// which may be shared with other components.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

// cleanupLoop periodically deletes expired snapshots.
func (s *SQLStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.done:
			return
		}
	}
}

func (s *SQLStore) cleanup() {
	if s.isClosed() {
		return
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at < %s`, s.tableName, s.nowExpr())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.db.ExecContext(ctx, query)
}

// CreateTable creates the snapshot table if it doesn't exist.
// A convenience for development and tests; production schemas should be
// managed by migrations.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	var query string
	switch s.dialect {
	case DialectMySQL:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id VARCHAR(64) PRIMARY KEY,
				data BLOB NOT NULL,
				expires_at DATETIME NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
			)
		`, s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				data BLOB NOT NULL,
				expires_at TEXT NOT NULL,
				created_at TEXT DEFAULT (datetime('now')),
				updated_at TEXT DEFAULT (datetime('now'))
			)
		`, s.tableName)
	default:
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id VARCHAR(64) PRIMARY KEY,
				data BYTEA NOT NULL,
				expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			)
		`, s.tableName)
	}

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return err
	}

	var indexQuery string
	switch s.dialect {
	case DialectMySQL:
		// MySQL has no CREATE INDEX IF NOT EXISTS; a duplicate is harmless.
		indexQuery = fmt.Sprintf(`
			CREATE INDEX idx_%s_expires ON %s(expires_at)
		`, s.tableName, s.tableName)
	default:
		indexQuery = fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS idx_%s_expires ON %s(expires_at)
		`, s.tableName, s.tableName)
	}

	s.db.ExecContext(ctx, indexQuery)
	return nil
}
