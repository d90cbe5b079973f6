// Package postgres implements the relational driver on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	// Postgres driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/partdesk/partdesk/store"
)

type DB struct {
	db *sql.DB
}

func NewDB(dsn string) (store.Driver, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	return &DB{db: db}, nil
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.db.Close()
}

// QueryRows runs a caller-supplied read query. The backend's rejection of
// a malformed query is reported as *store.QueryError.
func (d *DB) QueryRows(ctx context.Context, query string) ([]map[string]any, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &store.QueryError{Err: err}
	}
	defer rows.Close()
	return store.ScanRowMaps(rows)
}

func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
