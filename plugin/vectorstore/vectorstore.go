// Package vectorstore wraps chromem-go with the appliance knowledge-base
// collection: chunked blog articles, repair guides, and policies with
// per-variant metadata. The index is expensive to load (embedding model plus
// on-disk collection), so callers go through a Handle that initializes it
// lazily exactly once.
package vectorstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	chromem "github.com/philippgille/chromem-go"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

const collectionName = "partdesk_docs"

// Document is a single retrieved chunk with its attached metadata.
type Document struct {
	ID         string
	Content    string
	Metadata   map[string]string
	Similarity float32
}

// LoadError marks a failure to open the index itself, as opposed to a
// failure of an individual search.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return "failed to load vector database: " + e.Err.Error() }
func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err stems from index initialization.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// Index is a read-only view over the persisted chromem collection. It is
// safe for unlimited concurrent readers: nothing mutates after load.
type Index struct {
	col *chromem.Collection
}

// Open loads (or creates) the persistent collection at dataDir/vectorstore/.
// embedFn is the embedding function used for both indexing and querying.
func Open(dataDir string, embedFn chromem.EmbeddingFunc) (*Index, error) {
	dir := filepath.Join(dataDir, "vectorstore")
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, errors.Wrap(err, "open vectorstore")
	}
	col := db.GetCollection(collectionName, embedFn)
	if col == nil {
		col, err = db.CreateCollection(collectionName, nil, embedFn)
		if err != nil {
			return nil, errors.Wrap(err, "create collection")
		}
	}
	return &Index{col: col}, nil
}

// Count returns the number of indexed chunks.
func (ix *Index) Count() int { return ix.col.Count() }

// Search returns the k nearest chunks to the query in similarity order.
// k is clamped to the collection size; an empty collection yields no results.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Document, error) {
	count := ix.col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	var results []chromem.Result
	var err error

	// chromem-go sometimes rejects nResults despite the Count clamp.
	// Step down k until the query succeeds.
	for attemptK := k; attemptK > 0; attemptK-- {
		results, err = ix.col.Query(ctx, query, attemptK, nil, nil)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "vector query")
	}

	out := make([]Document, 0, len(results))
	for _, r := range results {
		out = append(out, Document{
			ID:         r.ID,
			Content:    r.Content,
			Metadata:   r.Metadata,
			Similarity: r.Similarity,
		})
	}
	return out, nil
}

// add indexes one chunk. Used by the index builder; never called on the
// serving path.
func (ix *Index) add(ctx context.Context, id, content string, metadata map[string]string) error {
	return ix.col.AddDocument(ctx, chromem.Document{
		ID:       id,
		Content:  content,
		Metadata: metadata,
	})
}

// Handle is a process-scoped reference to the index that defers loading
// until first use. Concurrent first callers share a single load via
// singleflight; after a successful load every Search hits the cached index
// directly. There is no invalidation path: rebuilding the index is an
// offline batch operation.
type Handle struct {
	loader func(ctx context.Context) (*Index, error)
	group  singleflight.Group
	loaded atomic.Pointer[Index]
}

// NewHandle wraps a loader. The loader runs at most once successfully;
// failures are reported to every waiter and retried on the next call.
func NewHandle(loader func(ctx context.Context) (*Index, error)) *Handle {
	return &Handle{loader: loader}
}

func (h *Handle) get(ctx context.Context) (*Index, error) {
	if ix := h.loaded.Load(); ix != nil {
		return ix, nil
	}
	v, err, _ := h.group.Do("load", func() (any, error) {
		if ix := h.loaded.Load(); ix != nil {
			return ix, nil
		}
		ix, err := h.loader(ctx)
		if err != nil {
			return nil, &LoadError{Err: err}
		}
		h.loaded.Store(ix)
		return ix, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

// Search resolves the index (loading it on first use) and queries it.
func (h *Handle) Search(ctx context.Context, query string, k int) ([]Document, error) {
	ix, err := h.get(ctx)
	if err != nil {
		return nil, err
	}
	return ix.Search(ctx, query, k)
}

// ChunkID builds a stable chunk identifier.
func ChunkID(docID string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", docID, chunkIndex)
}
