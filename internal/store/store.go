package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a scene or render does not exist.
var ErrNotFound = errors.New("not found")

// connParams are applied by the driver on every new connection, so a pool
// that recycles its connection keeps WAL, the busy timeout and foreign keys.
var connParams = url.Values{
	"_journal_mode": {"WAL"},
	"_synchronous":  {"NORMAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"1"},
}

// migration upgrades a database from version-1 to version. Each one must be
// a no-op on a database created from the current schema.sql.
type migration struct {
	version int
	name    string
	apply   func(*sql.DB) error
}

var migrations = []migration{
	{version: 1, name: "events.symbol", apply: addSymbolColumn},
}

// Store keeps scenes, renders and their event logs in one SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path, which may be
// ":memory:", and brings its schema up to date. Reopening an existing file
// changes nothing.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?"+connParams.Encode())
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// One connection: renders are written by a single goroutine, and an
	// in-memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing schema in %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the connection for ad-hoc queries (tests, repair tooling).
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate creates missing tables, then runs every migration newer than the
// database's user_version and records the latest.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading user_version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := m.apply(db); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		version = m.version
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("writing user_version: %w", err)
	}
	return nil
}

// latestVersion is the user_version of a fully migrated database.
func latestVersion() int {
	return migrations[len(migrations)-1].version
}

// addSymbolColumn adds events.symbol, which records the markov state of
// each event, to databases written before it existed.
func addSymbolColumn(db *sql.DB) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('events') WHERE name = 'symbol'`).Scan(&n)
	if err != nil || n > 0 {
		return err
	}
	_, err = db.Exec(`ALTER TABLE events ADD COLUMN symbol TEXT NOT NULL DEFAULT ''`)
	return err
}

// pragma reads one pragma as text.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	return value, nil
}
