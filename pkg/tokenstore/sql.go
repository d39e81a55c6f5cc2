package tokenstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Dialect names a SQL backend
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStore keeps tokens in a two-column key/value table
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	table   string

	getQuery    string
	upsertQuery string
	deleteQuery string
}

// OpenSQLStore opens a database with the dialect's driver and prepares the table
func OpenSQLStore(dialect Dialect, dsn, table string, timeout time.Duration) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("SQL DSN is required for %s token store", dialect)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
	}

	store, err := NewSQLStore(ctx, db, dialect, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLStore wraps an open database and creates the table if missing
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect, table string) (*SQLStore, error) {
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return nil, fmt.Errorf("unsupported SQL dialect: %s", dialect)
	}
	if table == "" {
		table = "portal_tokens"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}

	s := &SQLStore{
		db:      db,
		dialect: dialect,
		table:   table,
	}
	s.getQuery = s.rebind(fmt.Sprintf(`SELECT value FROM %s WHERE name = ?`, table))
	s.upsertQuery = s.rebind(fmt.Sprintf(
		`INSERT INTO %s (name, value, updated_at) VALUES (?, ?, ?) ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		table))
	s.deleteQuery = s.rebind(fmt.Sprintf(`DELETE FROM %s WHERE name = ?`, table))

	if err := s.createTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create token table: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders into the dialect's form
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Get returns the stored value
func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.getQuery, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores a value
func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.upsertQuery, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes a value
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.deleteQuery, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Ping checks the database connection
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}
