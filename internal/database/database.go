// Package database is the relational backend of the project database.
// The local mode runs on a single sqlite file; the remote mode talks to a
// mysql server. Both share one set of SQL statements in Queries.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"projectdb-go/internal/database/migrations"
	"projectdb-go/internal/projectdb"
)

// Database implements projectdb.Backend on a relational store.
type Database struct {
	db            *sql.DB
	queries       *Queries
	dialect       migrations.Dialect
	removeOrphans bool
}

var _ projectdb.Backend = (*Database)(nil)

// NewSQLiteDatabase opens a local store. path can be a file path or
// ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string, removeOrphans bool) (*Database, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return newDatabase(db, migrations.SQLite, removeOrphans), nil
}

// NewMySQLDatabase opens a remote store with a bounded connection pool.
func NewMySQLDatabase(opts MySQLOptions, removeOrphans bool) (*Database, error) {
	db, err := sql.Open("mysql", mysqlDSN(opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(opts.PoolSize + opts.MaxOverflow)
	db.SetMaxIdleConns(opts.PoolSize)
	db.SetConnMaxLifetime(opts.Recycle)
	return newDatabase(db, migrations.MySQL, removeOrphans), nil
}

func newDatabase(db *sql.DB, dialect migrations.Dialect, removeOrphans bool) *Database {
	return &Database{
		db:            db,
		queries:       New(db),
		dialect:       dialect,
		removeOrphans: removeOrphans,
	}
}

// OpenConnection opens a sqlite store configured the way the backend
// expects. It is exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer; also keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Initialize creates the schema if it is missing.
func (d *Database) Initialize(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	if err := migrations.MigrateUp(d.db, d.dialect); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) SchemaVersion(ctx context.Context) (string, error) {
	v, err := d.queries.GetMetadata(ctx, "schema_version")
	if err != nil {
		return "", fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// writeTxOptions returns the options of a write transaction. sqlite takes
// its write lock at BEGIN; mysql runs serializable so that the rows read
// by the conflict gate stay locked until commit.
func (d *Database) writeTxOptions() *sql.TxOptions {
	if d.dialect == migrations.MySQL {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return nil
}

// inTx runs fn in one write transaction. It commits when fn succeeds and
// rolls back otherwise, including on context cancellation. A save losing
// a race against a concurrent one is reported as a conflict.
func (d *Database) inTx(ctx context.Context, fn func(q *Queries) error) error {
	err := d.runTx(ctx, d.writeTxOptions(), fn)
	if isSerializationFailure(err) {
		return projectdb.Wrap(projectdb.KindConflict, "item was changed by a concurrent save", err)
	}
	return err
}

// inReadTx runs fn in a read-only transaction so that multi-statement
// reads see one snapshot.
func (d *Database) inReadTx(ctx context.Context, fn func(q *Queries) error) error {
	return d.runTx(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (d *Database) runTx(ctx context.Context, opts *sql.TxOptions, fn func(q *Queries) error) error {
	tx, err := d.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(d.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Domains

func (d *Database) ListDomains(ctx context.Context) ([]string, error) {
	domains, err := d.queries.ListDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing domains: %w", err)
	}
	names := make([]string, len(domains))
	for i, dom := range domains {
		names[i] = dom.Name
	}
	return names, nil
}

func (d *Database) DomainExists(ctx context.Context, domain string) (bool, error) {
	_, err := d.queries.GetDomainByName(ctx, domain)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("finding domain: %w", err)
	}
	return true, nil
}

func (d *Database) AddDomain(ctx context.Context, domain string) error {
	return d.inTx(ctx, func(q *Queries) error {
		_, err := ensureDomain(ctx, q, domain)
		return err
	})
}

// ensureDomain returns the id of domain, creating it if needed. A
// concurrent creator winning the race is not an error.
func ensureDomain(ctx context.Context, q *Queries, domain string) (int64, error) {
	dom, err := q.GetDomainByName(ctx, domain)
	if err == nil {
		return dom.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("finding domain: %w", err)
	}
	id, err := q.InsertDomain(ctx, domain)
	if err == nil {
		return id, nil
	}
	if !isUniqueViolation(err) {
		return 0, fmt.Errorf("inserting domain: %w", err)
	}
	dom, err = q.GetDomainByName(ctx, domain)
	if err != nil {
		return 0, fmt.Errorf("finding domain: %w", err)
	}
	return dom.ID, nil
}

func lookupDomain(ctx context.Context, q *Queries, domain string) (int64, bool, error) {
	dom, err := q.GetDomainByName(ctx, domain)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("finding domain: %w", err)
	}
	return dom.ID, true, nil
}
