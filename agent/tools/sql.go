package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/partdesk/partdesk/store"
)

// RowQuerier executes a raw read query and returns the rows in mapping form.
// *store.Store satisfies this; tests substitute a stub.
type RowQuerier interface {
	QueryRows(ctx context.Context, query string) ([]map[string]any, error)
}

// dangerousKeywords are mutating statements rejected anywhere in the query
// text, even inside subqueries. This is a best-effort guard, not a provable
// sandbox: a single SELECT can still be arbitrarily expensive.
var dangerousKeywords = []string{
	"DROP", "DELETE", "INSERT", "UPDATE", "ALTER", "CREATE", "TRUNCATE", "GRANT", "REVOKE",
}

const sqlSearchDescription = `Execute SQL queries against the parts database to retrieve structured information about appliance parts, compatible models, and part-model compatibility relationships. Direct access to the parts catalog: pricing, ratings, installation details, availability, and compatibility mappings for refrigerator and dishwasher parts.

Only SELECT statements are accepted.

Best practices:
- Always use a LIMIT clause (recommended: 10-50 rows)
- Use ILIKE for case-insensitive text searches
- Use ORDER BY to sort results by relevance (rating, price, discount_percentage)
- When searching by model compatibility, JOIN through the part_model_mapping table
- Use WHERE rating IS NOT NULL when filtering by ratings
- For symptom searches, use ILIKE '%keyword%' against the symptoms field

Schema:

Table parts: part_id (PK), part_name, manufacturer_part_number, part_number, brand, appliance_type ('refrigerator'|'dishwasher'), current_price, original_price, has_discount, discount_percentage, rating (0-5, NULL if no reviews), review_count, description, symptoms (pipe-separated), installation_difficulty, installation_time, delivery_time, availability, image_url, video_url, product_url, compatible_models_count

Table models: model_id (PK), model_number (UNIQUE), model_url, brand, appliance_type, description, parts_count

Table part_model_mapping: mapping_id (PK), part_id (FK parts), model_id (FK models)

Examples:
- "Tell me about part PS11752778" -> SELECT * FROM parts WHERE part_number = 'PS11752778';
- "Ice maker parts for refrigerators" -> SELECT * FROM parts WHERE part_name ILIKE '%ice maker%' AND appliance_type = 'refrigerator' ORDER BY rating DESC LIMIT 10;
- "Is PS11752778 compatible with WDT780SAEM1?" -> SELECT p.part_name, m.model_number FROM parts p JOIN part_model_mapping pmm ON p.part_id = pmm.part_id JOIN models m ON pmm.model_id = m.model_id WHERE p.part_number = 'PS11752778' AND m.model_number = 'WDT780SAEM1';`

// SQLSearchTool executes caller-supplied read-only queries against the
// relational parts store. All failures are returned as data so the agent
// loop can feed the error text back to the decision step.
type SQLSearchTool struct {
	db RowQuerier
}

func NewSQLSearchTool(db RowQuerier) *SQLSearchTool {
	return &SQLSearchTool{db: db}
}

func (t *SQLSearchTool) Name() string        { return "sql_search" }
func (t *SQLSearchTool) Description() string { return sqlSearchDescription }

func (t *SQLSearchTool) InputSchema() (map[string]any, []string) {
	return map[string]any{
		"sql_query": map[string]any{
			"type":        "string",
			"description": "Raw SQL SELECT query to execute against the parts database.",
		},
	}, []string{"sql_query"}
}

// Call implements tools.Tool. The input is the JSON-encoded tool arguments.
func (t *SQLSearchTool) Call(ctx context.Context, input string) (string, error) {
	var payload struct {
		SQLQuery string `json:"sql_query"`
	}
	if err := json.Unmarshal([]byte(input), &payload); err != nil {
		return marshalResult(errorRecord(map[string]any{
			"error": "Invalid input: sql_query must be a non-empty string",
		}))
	}
	return marshalResult(t.Execute(ctx, payload.SQLQuery))
}

// Execute validates and runs the query, returning either result rows or a
// single-element error sequence. No backend call is issued when validation
// fails.
func (t *SQLSearchTool) Execute(ctx context.Context, sqlQuery string) []map[string]any {
	if strings.TrimSpace(sqlQuery) == "" {
		return errorRecord(map[string]any{
			"error": "Invalid input: sql_query must be a non-empty string",
		})
	}

	queryUpper := strings.ToUpper(strings.TrimSpace(sqlQuery))
	for _, keyword := range dangerousKeywords {
		if strings.Contains(queryUpper, keyword) {
			return errorRecord(map[string]any{
				"error": "Dangerous SQL keyword '" + keyword + "' detected. Only SELECT queries are allowed.",
				"query": sqlQuery,
			})
		}
	}

	if !strings.HasPrefix(queryUpper, "SELECT") {
		return errorRecord(map[string]any{
			"error": "Only SELECT queries are allowed. No INSERT, UPDATE, DELETE, DROP, or other modifying statements.",
			"query": sqlQuery,
		})
	}

	rows, err := t.db.QueryRows(ctx, sqlQuery)
	if err != nil {
		if store.IsQueryError(err) {
			return errorRecord(map[string]any{
				"error": "SQL execution error: " + firstLine(err.Error()),
				"query": sqlQuery,
			})
		}
		return errorRecord(map[string]any{
			"error": "Tool execution error: " + err.Error(),
			"query": sqlQuery,
		})
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func marshalResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return `[{"error": "Tool execution error: failed to encode result"}]`, nil
	}
	return string(b), nil
}
