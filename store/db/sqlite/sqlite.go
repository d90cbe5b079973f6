// Package sqlite implements the relational driver on SQLite for local and
// test deployments.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	// Pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/partdesk/partdesk/store"
)

type DB struct {
	db *sql.DB
}

func NewDB(dsn string) (store.Driver, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)
	return &DB{db: db}, nil
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) QueryRows(ctx context.Context, query string) ([]map[string]any, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &store.QueryError{Err: err}
	}
	defer rows.Close()
	return store.ScanRowMaps(rows)
}
