// internal/store/store.go

// Package store persists canonical profile and video records into a tabular
// warehouse with reconciling (one row per natural key) semantics, and serves
// the derived per-username summary rollup.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/valpere/TikTokIngester/internal/utils"
)

// Dialect selects the SQL flavor for DDL, placeholders and upserts.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
	DialectMySQL    Dialect = "mysql"
)

// Strategy selects the reconciliation mode applied on Load.
type Strategy string

const (
	// StrategyMerge stages the batch and applies a keyed upsert. Re-running
	// the same merge is idempotent and unrelated rows are never unreachable.
	StrategyMerge Strategy = "merge"

	// StrategyReplace deletes the key's prior rows before reinsertion. The
	// caller must treat a failed run as retryable as a unit.
	StrategyReplace Strategy = "replace"
)

// Store wraps the warehouse connection.
type Store struct {
	db       *sql.DB
	dialect  Dialect
	strategy Strategy
	logger   utils.Logger

	// Loads share global staging tables, so they are serialized here. This
	// also satisfies the at-most-one-writer-per-key requirement.
	loadMu sync.Mutex
}

// Options configures a Store.
type Options struct {
	Driver   string
	DSN      string
	Strategy Strategy
	Logger   utils.Logger
}

// Open connects to the warehouse and verifies the connection.
func Open(opts Options) (*Store, error) {
	dialect := Dialect(opts.Driver)
	switch dialect {
	case DialectPostgres, DialectSQLite, DialectMySQL:
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", opts.Driver)
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyMerge
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewLogger()
	}

	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", opts.Driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", opts.Driver, err)
	}

	if dialect == DialectSQLite {
		// SQLite serializes writers anyway; a single connection avoids
		// table-lock errors and keeps :memory: databases coherent.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	return &Store{
		db:       db,
		dialect:  dialect,
		strategy: opts.Strategy,
		logger:   opts.Logger,
	}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// DB exposes the raw handle for ad hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// rebind converts ?-style placeholders to the dialect's form.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// concat builds a dialect-appropriate string concatenation expression.
func (s *Store) concat(parts ...string) string {
	if s.dialect == DialectMySQL {
		return "CONCAT(" + strings.Join(parts, ", ") + ")"
	}
	return strings.Join(parts, " || ")
}

// keyType returns the column type usable as a primary key. MySQL cannot
// index an unbounded TEXT column.
func (s *Store) keyType() string {
	if s.dialect == DialectMySQL {
		return "VARCHAR(512)"
	}
	return "TEXT"
}

// profileColumns and videoColumns are the canonical column orders shared by
// the base and staging tables.
var profileColumns = []string{
	"username", "user_id", "display_name", "following_count", "follower_count",
	"total_like_count", "bio", "caption", "bio_link", "profile_pic_url",
	"is_verified", "scrape_timestamp",
}

var videoColumns = []string{
	"url", "views", "thumbnail_url", "description", "create_time",
	"like_count", "comment_count", "share_count", "scrape_timestamp",
}

// EnsureSchema creates the base and staging tables if they do not exist.
// Timestamps cross the store boundary as RFC3339 TEXT: it is portable across
// all three dialects and orders lexicographically.
func (s *Store) EnsureSchema() error {
	profileBody := fmt.Sprintf(`
	username %s PRIMARY KEY,
	user_id TEXT,
	display_name TEXT,
	following_count BIGINT,
	follower_count BIGINT,
	total_like_count BIGINT,
	bio TEXT,
	caption TEXT,
	bio_link TEXT,
	profile_pic_url TEXT,
	is_verified BOOLEAN,
	scrape_timestamp TEXT`, s.keyType())

	videoBody := fmt.Sprintf(`
	url %s PRIMARY KEY,
	views BIGINT,
	thumbnail_url TEXT,
	description TEXT,
	create_time TEXT,
	like_count BIGINT,
	comment_count BIGINT,
	share_count BIGINT,
	scrape_timestamp TEXT`, s.keyType())

	statements := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS profiles (%s\n)", profileBody),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS videos (%s\n)", videoBody),
		// Staging tables mirror the base tables but carry no keys; the merge
		// step resolves conflicts.
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS profiles_stage (%s\n)",
			strings.Replace(profileBody, " PRIMARY KEY", "", 1)),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS videos_stage (%s\n)",
			strings.Replace(videoBody, " PRIMARY KEY", "", 1)),
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: create table: %w", err)
		}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
