// Package duckdb implements the DuckDB target backend: metadata
// bookkeeping tables, table materialization, and batched apply
// protocols per CDC policy.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/ryanwith/melchi/internal/warehouse"
)

// MetadataSchema is the change-tracking schema melchi's own
// bookkeeping tables live in on the target (spec.md §3).
const MetadataSchema = "melchi_metadata"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Backend is the DuckDB implementation of warehouse.Warehouse. It only
// ever plays warehouse.RoleTarget; every source-role method returns a
// NotSupported error.
type Backend struct {
	db  *sql.DB
	tx  *sql.Tx
	cfg warehouse.ConnectionConfig
}

// New constructs an unconnected Backend, registered into the default
// warehouse registry under warehouse.KindDuckDB.
func New() warehouse.Warehouse { return &Backend{} }

func init() {
	warehouse.Register(warehouse.KindDuckDB, New)
}

func (b *Backend) Kind() warehouse.WarehouseKind { return warehouse.KindDuckDB }

func (b *Backend) q() querier {
	if b.tx != nil {
		return b.tx
	}
	return b.db
}

// Connect opens the DuckDB file named by cfg.Path (":memory:" when
// empty), mirroring go-duckdb's file-or-memory DSN convention.
func (b *Backend) Connect(ctx context.Context, cfg warehouse.ConnectionConfig) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return warehouse.Wrap(warehouse.Connection, string(warehouse.KindDuckDB), "connect", warehouse.TableDescriptor{}, err)
	}
	db.SetMaxOpenConns(1) // DuckDB's single-writer-process model

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return warehouse.Wrap(warehouse.Connection, string(warehouse.KindDuckDB), "connect", warehouse.TableDescriptor{}, err)
	}

	// Install and load the spatial extension on every connect so
	// GEOMETRY columns (spec.md §4.8a's GEOGRAPHY/GEOMETRY target type,
	// §4.4 "Install optional spatial support") are usable immediately;
	// the overhead of a no-op install when already present is minimal.
	if _, err := db.ExecContext(ctx, "INSTALL spatial;"); err != nil {
		db.Close()
		return warehouse.Wrap(warehouse.Connection, string(warehouse.KindDuckDB), "connect", warehouse.TableDescriptor{}, fmt.Errorf("installing spatial extension: %w", err))
	}
	if _, err := db.ExecContext(ctx, "LOAD spatial;"); err != nil {
		db.Close()
		return warehouse.Wrap(warehouse.Connection, string(warehouse.KindDuckDB), "connect", warehouse.TableDescriptor{}, fmt.Errorf("loading spatial extension: %w", err))
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdent(MetadataSchema))); err != nil {
		db.Close()
		return warehouse.Wrap(warehouse.Connection, string(warehouse.KindDuckDB), "connect", warehouse.TableDescriptor{}, err)
	}

	b.db = db
	b.cfg = cfg
	return nil
}

func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *Backend) Begin(ctx context.Context) error {
	if b.tx != nil {
		return warehouse.Wrap(warehouse.Bookkeeping, string(warehouse.KindDuckDB), "begin", warehouse.TableDescriptor{}, fmt.Errorf("a transaction is already open"))
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return warehouse.Wrap(warehouse.Connection, string(warehouse.KindDuckDB), "begin", warehouse.TableDescriptor{}, err)
	}
	b.tx = tx
	return nil
}

func (b *Backend) Commit(ctx context.Context) error {
	if b.tx == nil {
		return nil
	}
	err := b.tx.Commit()
	b.tx = nil
	if err != nil {
		return warehouse.Wrap(warehouse.Bookkeeping, string(warehouse.KindDuckDB), "commit", warehouse.TableDescriptor{}, err)
	}
	return nil
}

func (b *Backend) Rollback(ctx context.Context) error {
	if b.tx == nil {
		return nil
	}
	err := b.tx.Rollback()
	b.tx = nil
	if err != nil && err != sql.ErrTxDone {
		return warehouse.Wrap(warehouse.Bookkeeping, string(warehouse.KindDuckDB), "rollback", warehouse.TableDescriptor{}, err)
	}
	return nil
}

// quoteIdent double-quotes a DuckDB identifier, escaping any embedded
// quote.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func qualifiedIdent(table warehouse.TableDescriptor) string {
	return quoteIdent(table.Schema) + "." + quoteIdent(table.Table)
}

func metaTableIdent(name string) string {
	return quoteIdent(MetadataSchema) + "." + quoteIdent(name)
}
