// Package store provides the relational parts catalog behind a pluggable
// driver seam, plus the raw read-query surface the agent's SQL tool runs on.
package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Driver abstracts the relational backend. Implementations live under
// store/db.
type Driver interface {
	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// EnsureSchema creates the parts catalog tables when missing.
	EnsureSchema(ctx context.Context) error

	// QueryRows executes a caller-supplied read query and returns the rows
	// in mapping form. Backend rejections are wrapped in *QueryError.
	QueryRows(ctx context.Context, query string) ([]map[string]any, error)

	// SearchParts finds parts by name, part number, or keyword.
	SearchParts(ctx context.Context, find *FindPart) ([]*Part, error)

	// GetPart returns the first part matching the filter, or nil.
	GetPart(ctx context.Context, find *FindPart) (*Part, error)

	// GetCompatibleModels lists model numbers compatible with a part.
	GetCompatibleModels(ctx context.Context, partUID string, limit int) ([]string, error)

	Close() error
}

// Store is the facade the rest of the application talks to.
type Store struct {
	driver Driver
}

func New(driver Driver) *Store {
	return &Store{driver: driver}
}

func (s *Store) Ping(ctx context.Context) error         { return s.driver.Ping(ctx) }
func (s *Store) EnsureSchema(ctx context.Context) error { return s.driver.EnsureSchema(ctx) }
func (s *Store) Close() error                           { return s.driver.Close() }

func (s *Store) QueryRows(ctx context.Context, query string) ([]map[string]any, error) {
	return s.driver.QueryRows(ctx, query)
}

func (s *Store) SearchParts(ctx context.Context, find *FindPart) ([]*Part, error) {
	return s.driver.SearchParts(ctx, find)
}

func (s *Store) GetPart(ctx context.Context, find *FindPart) (*Part, error) {
	return s.driver.GetPart(ctx, find)
}

func (s *Store) GetCompatibleModels(ctx context.Context, partUID string, limit int) ([]string, error) {
	return s.driver.GetCompatibleModels(ctx, partUID, limit)
}

// QueryError marks a backend rejection of a caller-supplied query (syntax
// error, unknown relation), as opposed to an infrastructure failure.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return e.Err.Error() }
func (e *QueryError) Unwrap() error { return e.Err }

// IsQueryError reports whether err is a backend query rejection.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// ScanRowMaps converts a result set into column-name keyed maps. Byte
// slices are normalized to strings so results serialize cleanly.
func ScanRowMaps(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "read columns")
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
