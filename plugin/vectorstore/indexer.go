package vectorstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/textsplitter"
)

// Chunking parameters for the knowledge base. Related information may span
// neighboring chunks, hence the overlap.
const (
	chunkSize    = 1000
	chunkOverlap = 200
)

// SourceDocument is one entry of the scraped corpus file consumed by the
// index builder: a blog article, a repair guide, or a policy page.
type SourceDocument struct {
	DocumentType  string `json:"document_type"` // "blog" | "repair" | "policy"
	ApplianceType string `json:"appliance_type,omitempty"`
	Content       string `json:"content"`

	// Blog fields.
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Author  string `json:"author,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`

	// Repair-guide fields.
	PartName   string `json:"part_name,omitempty"`
	Category   string `json:"category,omitempty"`
	PartURL    string `json:"part_url,omitempty"`
	SymptomURL string `json:"symptom_url,omitempty"`

	// Policy fields.
	PolicyType string `json:"policy_type,omitempty"`
}

// BuildIndex ingests the corpus JSON file (an array of SourceDocument),
// splits each document into overlapping chunks, and writes them to the
// index with their variant metadata. Returns the number of chunks written.
func BuildIndex(ctx context.Context, ix *Index, corpusPath string) (int, error) {
	data, err := os.ReadFile(corpusPath)
	if err != nil {
		return 0, errors.Wrap(err, "read corpus")
	}
	var docs []SourceDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return 0, errors.Wrap(err, "parse corpus")
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	written := 0
	for _, doc := range docs {
		chunks, err := splitter.SplitText(doc.Content)
		if err != nil {
			return written, errors.Wrap(err, "split document")
		}
		docID := uuid.New().String()
		for i, chunk := range chunks {
			meta := chunkMetadata(doc, i, len(chunks))
			if err := ix.add(ctx, ChunkID(docID, i), chunk, meta); err != nil {
				return written, errors.Wrapf(err, "index chunk %d of %s document", i, doc.DocumentType)
			}
			written++
		}
		slog.Debug("indexed document", "type", doc.DocumentType, "chunks", len(chunks))
	}
	slog.Info("index build complete", "documents", len(docs), "chunks", written)
	return written, nil
}

// chunkMetadata flattens a source document into the string metadata attached
// to each of its chunks. Policy documents never carry an appliance_type.
func chunkMetadata(doc SourceDocument, chunkIndex, totalChunks int) map[string]string {
	meta := map[string]string{
		"document_type": doc.DocumentType,
		"chunk_index":   strconv.Itoa(chunkIndex),
		"total_chunks":  strconv.Itoa(totalChunks),
	}
	if doc.ApplianceType != "" && doc.DocumentType != "policy" {
		meta["appliance_type"] = doc.ApplianceType
	}
	switch doc.DocumentType {
	case "blog":
		putNonEmpty(meta, "title", doc.Title)
		putNonEmpty(meta, "url", doc.URL)
		putNonEmpty(meta, "author", doc.Author)
		putNonEmpty(meta, "excerpt", doc.Excerpt)
	case "repair":
		putNonEmpty(meta, "part_name", doc.PartName)
		putNonEmpty(meta, "category", doc.Category)
		putNonEmpty(meta, "part_url", doc.PartURL)
		putNonEmpty(meta, "symptom_url", doc.SymptomURL)
	case "policy":
		putNonEmpty(meta, "policy_type", doc.PolicyType)
		putNonEmpty(meta, "title", doc.Title)
		putNonEmpty(meta, "url", doc.URL)
	}
	return meta
}

func putNonEmpty(m map[string]string, key, value string) {
	if value != "" {
		m[key] = value
	}
}
