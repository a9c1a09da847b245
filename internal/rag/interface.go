// Package rag defines the interfaces for the retrieval side of the
// question-answering pipeline: vector search, query embedding, and
// fragment retrieval. Concrete implementations (Qdrant, etc.) satisfy these
// interfaces so the engine never depends on a specific backend.
package rag

import (
	"context"
)

// NoSourcePlaceholder is the sentinel stored in a fragment's source field
// when the indexed document carries no citable provenance link. Fragments
// with this source are used for answer context but never cited.
const NoSourcePlaceholder = "Verified Document"

// Fragment is a retrieved chunk of indexed policy text judged relevant to
// a query, with optional provenance metadata.
type Fragment struct {
	// ID is the unique identifier of the indexed chunk.
	ID string

	// Text is the raw text content of the chunk.
	Text string

	// Source is the provenance link of the chunk (typically a document URL).
	// May be empty, duplicated across fragments, or equal to
	// NoSourcePlaceholder when no citable source exists.
	Source string

	// Metadata holds arbitrary key-value pairs attached at ingestion time.
	Metadata map[string]string

	// Score is the similarity score assigned during retrieval (0.0–1.0).
	// Zero value means the score was not computed.
	Score float32
}

// VectorStore is the interface for searching document embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Search performs a semantic similarity search and returns the top-k
	// most relevant fragments for the given query embedding.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Fragment, error)

	// Close releases any resources held by the store.
	Close() error
}

// SourceLister enumerates provenance links present in the index, most
// recently ingested first. Used by the updates feed; optional for stores
// that cannot enumerate.
type SourceLister interface {
	// ListSources returns up to limit distinct source links from the index.
	ListSources(ctx context.Context, limit int) ([]string, error)
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface the engine uses to fetch relevant
// fragments for a query. It combines embedding and vector search.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the top-k most relevant fragments for the given query.
	Retrieve(ctx context.Context, query string, topK int) ([]Fragment, error)
}
