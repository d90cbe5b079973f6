package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partdesk/partdesk/plugin/vectorstore"
)

type stubSearcher struct {
	docs   []vectorstore.Document
	err    error
	lastK  int
	called int
}

func (s *stubSearcher) Search(_ context.Context, _ string, k int) ([]vectorstore.Document, error) {
	s.called++
	s.lastK = k
	if s.err != nil {
		return nil, s.err
	}
	if k < len(s.docs) {
		return s.docs[:k], nil
	}
	return s.docs, nil
}

func blogDoc(id string, appliance string) vectorstore.Document {
	return vectorstore.Document{
		ID:      id,
		Content: "content of " + id,
		Metadata: map[string]string{
			"document_type":  "blog",
			"appliance_type": appliance,
			"title":          "Title " + id,
			"url":            "https://example.com/" + id,
			"chunk_index":    "0",
			"total_chunks":   "2",
		},
		Similarity: 0.9,
	}
}

func policyDoc(id string) vectorstore.Document {
	return vectorstore.Document{
		ID:      id,
		Content: "policy " + id,
		Metadata: map[string]string{
			"document_type": "policy",
			"policy_type":   "returns",
			"title":         "Return Policy",
			"chunk_index":   "0",
			"total_chunks":  "1",
		},
		Similarity: 0.8,
	}
}

func TestVectorSearchValidation(t *testing.T) {
	index := &stubSearcher{}
	tool := NewVectorSearchTool(index)

	cases := []struct {
		name string
		req  VectorSearchRequest
		want string
	}{
		{"empty query", VectorSearchRequest{Query: "  "}, "query must be a non-empty string"},
		{"short query", VectorSearchRequest{Query: "ab"}, "query must be at least 3 characters long"},
		{"long query", VectorSearchRequest{Query: strings.Repeat("x", 501)}, "query exceeds maximum length of 500 characters"},
		{"k too small", VectorSearchRequest{Query: "ice maker", K: -1}, "k must be an integer between 1 and 20"},
		{"k too large", VectorSearchRequest{Query: "ice maker", K: 21}, "k must be an integer between 1 and 20"},
		{"bad document type", VectorSearchRequest{Query: "ice maker", DocumentType: "video"}, "document_type must be one of: all, blog, repair, policy"},
		{"bad appliance type", VectorSearchRequest{Query: "ice maker", ApplianceType: "oven"}, "appliance_type must be one of: all, refrigerator, dishwasher"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hits, searchErr := tool.Execute(context.Background(), tc.req)
			require.NotNil(t, searchErr)
			assert.Equal(t, tc.want, searchErr.Message)
			assert.Equal(t, "ValidationError", searchErr.Type)
			assert.Nil(t, hits)
		})
	}
	assert.Equal(t, 0, index.called, "validation failures must not touch the index")
}

func TestVectorSearchLengthCountsCharacters(t *testing.T) {
	index := &stubSearcher{}
	tool := NewVectorSearchTool(index)

	// 200 three-byte characters: 600 bytes but well under the 500-character cap.
	_, searchErr := tool.Execute(context.Background(), VectorSearchRequest{Query: strings.Repeat("冷", 200)})
	assert.Nil(t, searchErr)

	_, searchErr = tool.Execute(context.Background(), VectorSearchRequest{Query: strings.Repeat("冷", 501)})
	require.NotNil(t, searchErr)
	assert.Equal(t, "query exceeds maximum length of 500 characters", searchErr.Message)

	_, searchErr = tool.Execute(context.Background(), VectorSearchRequest{Query: "冷蔵庫"})
	assert.Nil(t, searchErr, "three multibyte characters meet the minimum length")
}

func TestVectorSearchOverFetch(t *testing.T) {
	index := &stubSearcher{}
	tool := NewVectorSearchTool(index)

	_, searchErr := tool.Execute(context.Background(), VectorSearchRequest{Query: "leaking dishwasher", K: 5})
	require.Nil(t, searchErr)
	assert.Equal(t, 15, index.lastK)

	_, searchErr = tool.Execute(context.Background(), VectorSearchRequest{Query: "leaking dishwasher", K: 20})
	require.Nil(t, searchErr)
	assert.Equal(t, 50, index.lastK, "over-fetch is capped at 50")
}

func TestVectorSearchDefaultK(t *testing.T) {
	docs := make([]vectorstore.Document, 0, 12)
	for i := 0; i < 12; i++ {
		docs = append(docs, blogDoc("doc"+string(rune('a'+i)), "refrigerator"))
	}
	index := &stubSearcher{docs: docs}
	tool := NewVectorSearchTool(index)

	hits, searchErr := tool.Execute(context.Background(), VectorSearchRequest{Query: "ice maker noise"})
	require.Nil(t, searchErr)
	assert.Len(t, hits, 5)
	for i, hit := range hits {
		assert.Equal(t, i+1, hit.Rank, "ranks are contiguous and 1-based")
	}
}

func TestVectorSearchFilters(t *testing.T) {
	index := &stubSearcher{docs: []vectorstore.Document{
		blogDoc("fridge", "refrigerator"),
		blogDoc("dish", "dishwasher"),
		policyDoc("returns"),
	}}
	tool := NewVectorSearchTool(index)

	hits, searchErr := tool.Execute(context.Background(), VectorSearchRequest{
		Query:         "water leaking",
		ApplianceType: "refrigerator",
	})
	require.Nil(t, searchErr)
	require.Len(t, hits, 2)
	assert.Equal(t, "content of fridge", hits[0].Content)
	// Policy docs carry no appliance_type and pass the appliance filter.
	assert.Equal(t, "policy", hits[1].DocumentType)
	assert.Equal(t, 2, hits[1].Rank, "rank reflects the post-filter position")

	hits, searchErr = tool.Execute(context.Background(), VectorSearchRequest{
		Query:        "return policy",
		DocumentType: "Policy",
	})
	require.Nil(t, searchErr)
	require.Len(t, hits, 1)
	assert.Equal(t, "returns", hits[0].PolicyType)
	assert.Equal(t, "Return Policy", hits[0].Title)
}

func TestVectorSearchVariantShaping(t *testing.T) {
	index := &stubSearcher{docs: []vectorstore.Document{
		{
			ID:      "repair1",
			Content: "replace the inlet valve",
			Metadata: map[string]string{
				"document_type":  "repair",
				"appliance_type": "dishwasher",
				"part_name":      "Water Inlet Valve",
				"category":       "valves",
				"part_url":       "https://example.com/part",
				"symptom_url":    "https://example.com/symptom",
				"chunk_index":    "1",
				"total_chunks":   "3",
			},
			Similarity: 0.77,
		},
	}}
	tool := NewVectorSearchTool(index)

	hits, searchErr := tool.Execute(context.Background(), VectorSearchRequest{
		Query:        "dishwasher not filling",
		IncludeScore: true,
	})
	require.Nil(t, searchErr)
	require.Len(t, hits, 1)
	hit := hits[0]
	assert.Equal(t, "Water Inlet Valve", hit.PartName)
	assert.Equal(t, "valves", hit.Category)
	assert.Equal(t, 1, hit.ChunkIndex)
	assert.Equal(t, 3, hit.TotalChunks)
	require.NotNil(t, hit.RelevanceScore)
	assert.InDelta(t, 0.77, float64(*hit.RelevanceScore), 0.0001)
	assert.Empty(t, hit.Title, "blog fields stay empty on repair hits")
}

func TestVectorSearchScoreOmittedByDefault(t *testing.T) {
	index := &stubSearcher{docs: []vectorstore.Document{blogDoc("a", "refrigerator")}}
	tool := NewVectorSearchTool(index)

	hits, searchErr := tool.Execute(context.Background(), VectorSearchRequest{Query: "ice maker"})
	require.Nil(t, searchErr)
	require.Len(t, hits, 1)
	assert.Nil(t, hits[0].RelevanceScore)
}

func TestVectorSearchErrorClassification(t *testing.T) {
	index := &stubSearcher{err: &vectorstore.LoadError{Err: errors.New("vectorstore not found")}}
	tool := NewVectorSearchTool(index)
	_, searchErr := tool.Execute(context.Background(), VectorSearchRequest{Query: "ice maker"})
	require.NotNil(t, searchErr)
	assert.Equal(t, "VectorStoreError", searchErr.Type)
	assert.Contains(t, searchErr.Message, "Search failed: ")

	index = &stubSearcher{err: errors.New("embedding request failed")}
	tool = NewVectorSearchTool(index)
	_, searchErr = tool.Execute(context.Background(), VectorSearchRequest{Query: "ice maker"})
	require.NotNil(t, searchErr)
	assert.Equal(t, "SearchError", searchErr.Type)
}

func TestVectorSearchCallErrorShape(t *testing.T) {
	index := &stubSearcher{}
	tool := NewVectorSearchTool(index)

	out, err := tool.Call(context.Background(), `{"query": "ab"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"error": "query must be at least 3 characters long", "error_type": "ValidationError", "query": "ab"}]`, out)
}
