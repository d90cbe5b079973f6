package tools

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partdesk/partdesk/store"
)

type stubQuerier struct {
	calls int
	rows  []map[string]any
	err   error
}

func (s *stubQuerier) QueryRows(_ context.Context, _ string) ([]map[string]any, error) {
	s.calls++
	return s.rows, s.err
}

func TestSQLSearchRejectsEmptyQuery(t *testing.T) {
	db := &stubQuerier{}
	tool := NewSQLSearchTool(db)

	for _, query := range []string{"", "   ", "\n\t"} {
		result := tool.Execute(context.Background(), query)
		require.Len(t, result, 1)
		assert.Equal(t, "Invalid input: sql_query must be a non-empty string", result[0]["error"])
		_, hasQuery := result[0]["query"]
		assert.False(t, hasQuery)
	}
	assert.Equal(t, 0, db.calls, "validation failures must not reach the database")
}

func TestSQLSearchRejectsDangerousKeywords(t *testing.T) {
	db := &stubQuerier{}
	tool := NewSQLSearchTool(db)

	result := tool.Execute(context.Background(), "DROP TABLE parts")
	require.Len(t, result, 1)
	assert.Equal(t, "Dangerous SQL keyword 'DROP' detected. Only SELECT queries are allowed.", result[0]["error"])
	assert.Equal(t, "DROP TABLE parts", result[0]["query"])
	assert.Equal(t, 0, db.calls)
}

func TestSQLSearchRejectsKeywordInsideSelect(t *testing.T) {
	db := &stubQuerier{}
	tool := NewSQLSearchTool(db)

	// The keyword scan covers the whole text, including subqueries.
	result := tool.Execute(context.Background(), "SELECT * FROM parts; DELETE FROM parts")
	require.Len(t, result, 1)
	assert.Equal(t, "Dangerous SQL keyword 'DELETE' detected. Only SELECT queries are allowed.", result[0]["error"])
	assert.Equal(t, 0, db.calls)
}

func TestSQLSearchRejectsNonSelect(t *testing.T) {
	db := &stubQuerier{}
	tool := NewSQLSearchTool(db)

	result := tool.Execute(context.Background(), "EXPLAIN ANALYZE some_table")
	require.Len(t, result, 1)
	assert.Equal(t, "Only SELECT queries are allowed. No INSERT, UPDATE, DELETE, DROP, or other modifying statements.", result[0]["error"])
	assert.Equal(t, 0, db.calls)
}

func TestSQLSearchCaseAndWhitespaceInsensitive(t *testing.T) {
	db := &stubQuerier{rows: []map[string]any{{"part_name": "Door Shelf Bin"}}}
	tool := NewSQLSearchTool(db)

	result := tool.Execute(context.Background(), "  select part_name from parts limit 1  ")
	require.Len(t, result, 1)
	assert.Equal(t, "Door Shelf Bin", result[0]["part_name"])
	assert.Equal(t, 1, db.calls)
}

func TestSQLSearchEmptyResultSet(t *testing.T) {
	db := &stubQuerier{rows: nil}
	tool := NewSQLSearchTool(db)

	result := tool.Execute(context.Background(), "SELECT * FROM parts WHERE part_number = 'nope'")
	require.NotNil(t, result)
	assert.Empty(t, result)
}

func TestSQLSearchBackendRejection(t *testing.T) {
	db := &stubQuerier{err: &store.QueryError{Err: errors.New("syntax error at or near \"FROMM\"\nLINE 1: SELECT * FROMM parts")}}
	tool := NewSQLSearchTool(db)

	result := tool.Execute(context.Background(), "SELECT * FROMM parts")
	require.Len(t, result, 1)
	assert.Equal(t, `SQL execution error: syntax error at or near "FROMM"`, result[0]["error"])
	assert.Equal(t, "SELECT * FROMM parts", result[0]["query"])
}

func TestSQLSearchInfrastructureFailure(t *testing.T) {
	db := &stubQuerier{err: errors.New("connection refused")}
	tool := NewSQLSearchTool(db)

	result := tool.Execute(context.Background(), "SELECT 1")
	require.Len(t, result, 1)
	assert.Equal(t, "Tool execution error: connection refused", result[0]["error"])
}

func TestSQLSearchCallParsesArguments(t *testing.T) {
	db := &stubQuerier{rows: []map[string]any{{"n": float64(1)}}}
	tool := NewSQLSearchTool(db)

	out, err := tool.Call(context.Background(), `{"sql_query": "SELECT 1 AS n"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"n": 1}]`, out)

	out, err = tool.Call(context.Background(), `{not json`)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"error": "Invalid input: sql_query must be a non-empty string"}]`, out)
	assert.Equal(t, 1, db.calls)
}
