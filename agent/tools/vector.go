package tools

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/partdesk/partdesk/plugin/vectorstore"
)

// Searcher is the nearest-neighbor retrieval capability behind the semantic
// search tool. *vectorstore.Handle satisfies this; tests substitute a stub.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]vectorstore.Document, error)
}

const vectorSearchDescription = `Search the appliance knowledge base using semantic search. Performs natural language search over blog articles, repair guides, and company policies to find relevant information about appliance troubleshooting, repair instructions, and policies.

When to use this tool:
- Troubleshooting questions ("Why is my ice maker not working?")
- Repair/how-to instructions ("How do I replace a door seal?")
- Company policy questions ("What's your return policy?")
- Symptom descriptions that need solutions

When NOT to use (use sql_search instead):
- Specific part details (price, part number, availability)
- Model compatibility checks
- Exact product specifications

Search behavior:
- Semantic similarity search over chunked documents (1000 chars, 200 overlap)
- Results ranked by similarity; filterable by document type and appliance type
- Use natural, conversational queries ("refrigerator is leaking water")
- Request k=5-10 for most queries (higher for exploratory, lower for specific)`

// ValidVectorDocumentTypes and ValidVectorApplianceTypes enumerate the
// accepted filter values.
var (
	ValidVectorDocumentTypes  = []string{"all", "blog", "repair", "policy"}
	ValidVectorApplianceTypes = []string{"all", "refrigerator", "dishwasher"}
)

// VectorSearchRequest is the validated input of the semantic search tool.
type VectorSearchRequest struct {
	Query         string `json:"query"`
	K             int    `json:"k"`
	DocumentType  string `json:"document_type"`
	ApplianceType string `json:"appliance_type"`
	IncludeScore  bool   `json:"include_score"`
}

// validate normalizes the request in place and returns the first violation.
// Validation happens before the index is touched.
func (r *VectorSearchRequest) validate() string {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return "query must be a non-empty string"
	}
	queryLen := utf8.RuneCountInString(r.Query)
	if queryLen < 3 {
		return "query must be at least 3 characters long"
	}
	if queryLen > 500 {
		return "query exceeds maximum length of 500 characters"
	}
	if r.K == 0 {
		r.K = 5
	}
	if r.K < 1 || r.K > 20 {
		return "k must be an integer between 1 and 20"
	}
	if r.DocumentType == "" {
		r.DocumentType = "all"
	}
	r.DocumentType = strings.ToLower(r.DocumentType)
	if !contains(ValidVectorDocumentTypes, r.DocumentType) {
		return "document_type must be one of: " + strings.Join(ValidVectorDocumentTypes, ", ")
	}
	if r.ApplianceType == "" {
		r.ApplianceType = "all"
	}
	r.ApplianceType = strings.ToLower(r.ApplianceType)
	if !contains(ValidVectorApplianceTypes, r.ApplianceType) {
		return "appliance_type must be one of: " + strings.Join(ValidVectorApplianceTypes, ", ")
	}
	return ""
}

// SemanticHit is one formatted search result. Every hit carries the common
// fields; the variant fields are populated according to document_type.
type SemanticHit struct {
	Rank          int    `json:"rank"`
	Content       string `json:"content"`
	DocumentType  string `json:"document_type"`
	ApplianceType string `json:"appliance_type,omitempty"`
	ChunkIndex    int    `json:"chunk_index"`
	TotalChunks   int    `json:"total_chunks"`

	// Blog variant.
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Author  string `json:"author,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`

	// Repair variant.
	PartName   string `json:"part_name,omitempty"`
	Category   string `json:"category,omitempty"`
	PartURL    string `json:"part_url,omitempty"`
	SymptomURL string `json:"symptom_url,omitempty"`

	// Policy variant.
	PolicyType string `json:"policy_type,omitempty"`

	RelevanceScore *float32 `json:"relevance_score,omitempty"`
}

// VectorSearchError is the data form of a semantic search failure.
type VectorSearchError struct {
	Message string // user-facing error text
	Type    string // "ValidationError" | "VectorStoreError" | "SearchError"
}

// VectorSearchTool performs validated nearest-neighbor retrieval with
// metadata post-filtering over the knowledge-base index.
type VectorSearchTool struct {
	index Searcher
}

func NewVectorSearchTool(index Searcher) *VectorSearchTool {
	return &VectorSearchTool{index: index}
}

func (t *VectorSearchTool) Name() string        { return "vector_search" }
func (t *VectorSearchTool) Description() string { return vectorSearchDescription }

func (t *VectorSearchTool) InputSchema() (map[string]any, []string) {
	return map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": "Natural language search query describing the problem, question, or topic. Min 3, max 500 characters.",
		},
		"k": map[string]any{
			"type":        "integer",
			"description": "Number of results to return. Range 1-20, default 5.",
		},
		"document_type": map[string]any{
			"type":        "string",
			"enum":        ValidVectorDocumentTypes,
			"description": "Filter by document type. Default: all.",
		},
		"appliance_type": map[string]any{
			"type":        "string",
			"enum":        ValidVectorApplianceTypes,
			"description": "Filter by appliance type. Default: all.",
		},
		"include_score": map[string]any{
			"type":        "boolean",
			"description": "Include relevance score in results. Default: false.",
		},
	}, []string{"query"}
}

// Call implements tools.Tool. The input is the JSON-encoded tool arguments.
func (t *VectorSearchTool) Call(ctx context.Context, input string) (string, error) {
	var req VectorSearchRequest
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		return marshalResult(errorRecord(map[string]any{
			"error":      "invalid tool input: " + err.Error(),
			"error_type": "ValidationError",
		}))
	}
	hits, searchErr := t.Execute(ctx, req)
	if searchErr != nil {
		return marshalResult(errorRecord(map[string]any{
			"error":      searchErr.Message,
			"error_type": searchErr.Type,
			"query":      req.Query,
		}))
	}
	return marshalResult(hits)
}

// Execute runs the search pipeline: validate, over-fetch, filter, truncate,
// shape. The over-fetch (min(k*3, 50)) exists because metadata filtering can
// only shrink the candidate set; fetching exactly k risks returning fewer
// than k results even when enough matching documents exist.
func (t *VectorSearchTool) Execute(ctx context.Context, req VectorSearchRequest) ([]SemanticHit, *VectorSearchError) {
	if msg := req.validate(); msg != "" {
		return nil, &VectorSearchError{Message: msg, Type: "ValidationError"}
	}

	searchK := req.K * 3
	if searchK > 50 {
		searchK = 50
	}

	docs, err := t.index.Search(ctx, req.Query, searchK)
	if err != nil {
		if vectorstore.IsLoadError(err) {
			return nil, &VectorSearchError{
				Message: "Search failed: " + err.Error(),
				Type:    "VectorStoreError",
			}
		}
		return nil, &VectorSearchError{
			Message: "Search failed: " + err.Error(),
			Type:    "SearchError",
		}
	}

	filtered := filterDocuments(docs, req.DocumentType, req.ApplianceType)
	if len(filtered) > req.K {
		filtered = filtered[:req.K]
	}

	hits := make([]SemanticHit, 0, len(filtered))
	for i, doc := range filtered {
		hits = append(hits, formatHit(doc, i+1, req.IncludeScore))
	}
	return hits, nil
}

// filterDocuments applies the document_type and appliance_type equality
// predicates. Policy documents carry no appliance_type and therefore pass
// the appliance filter unconditionally.
func filterDocuments(docs []vectorstore.Document, documentType, applianceType string) []vectorstore.Document {
	filtered := make([]vectorstore.Document, 0, len(docs))
	for _, doc := range docs {
		if documentType != "all" && doc.Metadata["document_type"] != documentType {
			continue
		}
		if applianceType != "all" {
			if appliance := doc.Metadata["appliance_type"]; appliance != "" && appliance != applianceType {
				continue
			}
		}
		filtered = append(filtered, doc)
	}
	return filtered
}

// formatHit shapes one document into its tagged variant. Rank is 1-based
// over the final truncated list, not the pre-filter candidate set.
func formatHit(doc vectorstore.Document, rank int, includeScore bool) SemanticHit {
	meta := doc.Metadata
	hit := SemanticHit{
		Rank:          rank,
		Content:       doc.Content,
		DocumentType:  meta["document_type"],
		ApplianceType: meta["appliance_type"],
		ChunkIndex:    atoiOrZero(meta["chunk_index"]),
		TotalChunks:   atoiOrDefault(meta["total_chunks"], 1),
	}
	switch hit.DocumentType {
	case "blog":
		hit.Title = meta["title"]
		hit.URL = meta["url"]
		hit.Author = meta["author"]
		hit.Excerpt = meta["excerpt"]
	case "repair":
		hit.PartName = meta["part_name"]
		hit.Category = meta["category"]
		hit.PartURL = meta["part_url"]
		hit.SymptomURL = meta["symptom_url"]
	case "policy":
		hit.PolicyType = meta["policy_type"]
		hit.Title = meta["title"]
		hit.URL = meta["url"]
	}
	if includeScore {
		score := doc.Similarity
		hit.RelevanceScore = &score
	}
	return hit
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoiOrDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
