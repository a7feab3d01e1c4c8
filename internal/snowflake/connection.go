// Package snowflake implements the Snowflake source backend: schema
// introspection, stream/staging setup, and batched extraction of both
// full-table snapshots and staged change rows.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"

	"github.com/ryanwith/melchi/internal/warehouse"
)

// querier is satisfied by both *sql.DB and *sql.Tx, letting every
// method run against whichever is currently live without branching on
// call sites.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Backend is the Snowflake implementation of warehouse.Warehouse. It
// only ever plays warehouse.RoleSource; every target-role method
// returns a NotSupported error.
type Backend struct {
	db  *sql.DB
	tx  *sql.Tx
	cfg warehouse.ConnectionConfig
}

// q returns the currently open transaction if one exists, else the
// pool itself, so DDL/data-plane methods run inside whatever
// transaction span the coordinator currently has open (spec.md §4.5).
func (b *Backend) q() querier {
	if b.tx != nil {
		return b.tx
	}
	return b.db
}

func (b *Backend) Begin(ctx context.Context) error {
	if b.tx != nil {
		return warehouse.Wrap(warehouse.Bookkeeping, string(warehouse.KindSnowflake), "begin", warehouse.TableDescriptor{}, fmt.Errorf("a transaction is already open"))
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return warehouse.Wrap(warehouse.Connection, string(warehouse.KindSnowflake), "begin", warehouse.TableDescriptor{}, err)
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
		return warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "commit", warehouse.TableDescriptor{}, err)
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
		return warehouse.Wrap(warehouse.DataPlane, string(warehouse.KindSnowflake), "rollback", warehouse.TableDescriptor{}, err)
	}
	return nil
}

// New constructs an unconnected Backend, registered into the default
// warehouse registry under warehouse.KindSnowflake.
func New() warehouse.Warehouse { return &Backend{} }

func init() {
	warehouse.Register(warehouse.KindSnowflake, New)
}

func (b *Backend) Kind() warehouse.WarehouseKind { return warehouse.KindSnowflake }

// Connect builds a gosnowflake DSN from cfg and opens the pool,
// following the teacher's account-as-host, database-as-path DSN shape
// with role and warehouse as query parameters.
func (b *Backend) Connect(ctx context.Context, cfg warehouse.ConnectionConfig) error {
	var dsn strings.Builder
	fmt.Fprintf(&dsn, "%s:%s@%s/%s", cfg.Username, cfg.Password, cfg.Account, cfg.Database)
	var params []string
	if cfg.Role != "" {
		params = append(params, "role="+cfg.Role)
	}
	if cfg.Warehouse != "" {
		params = append(params, "warehouse="+cfg.Warehouse)
	}
	if len(params) > 0 {
		dsn.WriteByte('?')
		dsn.WriteString(strings.Join(params, "&"))
	}

	if _, err := gosnowflake.ParseDSN(dsn.String()); err != nil {
		return warehouse.Wrap(warehouse.Connection, string(warehouse.KindSnowflake), "connect", warehouse.TableDescriptor{}, fmt.Errorf("parsing DSN: %w", err))
	}

	db, err := sql.Open("snowflake", dsn.String())
	if err != nil {
		return warehouse.Wrap(warehouse.Connection, string(warehouse.KindSnowflake), "connect", warehouse.TableDescriptor{}, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return warehouse.Wrap(warehouse.Connection, string(warehouse.KindSnowflake), "connect", warehouse.TableDescriptor{}, err)
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

// quoteIdent double-quotes a Snowflake identifier, escaping any
// embedded quote.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func qualifiedIdent(table warehouse.TableDescriptor) string {
	return quoteIdent(table.Database) + "." + quoteIdent(table.Schema) + "." + quoteIdent(table.Table)
}
