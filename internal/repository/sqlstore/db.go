// Package sqlstore implements every repository interface on database/sql.
//
// The same queries run against SQLite (modernc.org/sqlite, the default) and
// PostgreSQL (pgx stdlib driver). Queries are written with "?" placeholders
// and rebound for Postgres. Schema changes live in embedded goose migrations,
// one directory per dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/sakif/flashcards/internal/repository"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// DB is the storage client shared by all repositories.
type DB struct {
	conn     *sql.DB
	postgres bool
	blobs    repository.BlobStore
}

var (
	_ repository.SetRepository  = (*DB)(nil)
	_ repository.CardRepository = (*DB)(nil)
	_ repository.UserRepository = (*DB)(nil)
	_ repository.FileRepository = (*DB)(nil)
)

// Option adjusts a DB during Open.
type Option func(*DB)

// WithBlobStore keeps file bytes in bs instead of the database.
func WithBlobStore(bs repository.BlobStore) Option {
	return func(db *DB) { db.blobs = bs }
}

// New opens a SQLite database at dbPath (":memory:" for a throwaway one)
// and migrates it.
func New(dbPath string, opts ...Option) (*DB, error) {
	return Open(context.Background(), DriverSQLite, dbPath, opts...)
}

// Open connects to the database, verifies the connection and applies
// pending migrations.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*DB, error) {
	var (
		conn    *sql.DB
		err     error
		dialect goose.Dialect
		dir     string
	)

	switch driver {
	case DriverSQLite:
		conn, err = sql.Open("sqlite", sqliteDSN(dsn))
		dialect, dir = goose.DialectSQLite3, "migrations/sqlite"
	case DriverPostgres:
		conn, err = sql.Open("pgx", dsn)
		dialect, dir = goose.DialectPostgres, "migrations/postgres"
	default:
		return nil, fmt.Errorf("sqlstore: unknown driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening database: %w", err)
	}

	db := &DB{conn: conn, postgres: driver == DriverPostgres}

	if driver == DriverSQLite {
		// One connection: ":memory:" databases are per-connection, and
		// SQLite serialises writers anyway.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: pinging database: %w", err)
	}

	if err := db.migrate(ctx, dialect, dir); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: running migrations: %w", err)
	}

	for _, opt := range opts {
		opt(db)
	}
	if db.blobs == nil {
		db.blobs = db.ChunkStore()
	}

	return db, nil
}

// sqlitePragmas are run by the driver on every connection it opens, so a
// connection the pool replaces keeps foreign keys enforced.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(path)
	for _, pragma := range sqlitePragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(pragma)
		sep = "&"
	}
	return b.String()
}

func (db *DB) migrate(ctx context.Context, dialect goose.Dialect, dir string) error {
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, db.conn, fsys)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// rebind rewrites "?" placeholders to "$n" for Postgres.
func (db *DB) rebind(query string) string {
	if !db.postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
