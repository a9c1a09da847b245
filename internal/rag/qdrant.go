package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Payload keys written by the ingestion side. The reader tolerates both the
// "pdf_link" provenance key and the generic "source" fallback.
const (
	payloadText   = "content"
	payloadLink   = "pdf_link"
	payloadSource = "source"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to search.
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance. The
// collection is owned by the ingestion pipeline; this store only reads.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a read-only QdrantStore for an existing collection.
func NewQdrantStore(cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client, cfg: cfg}, nil
}

// Client exposes the underlying gRPC client for health probing.
func (s *QdrantStore) Client() *qdrant.Client {
	return s.client
}

// Search performs a cosine similarity search and returns the top-k fragments.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Fragment, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	frags := make([]Fragment, 0, len(results))
	for _, r := range results {
		frags = append(frags, fragmentFromPayload(r.Id.GetUuid(), r.Score, r.Payload))
	}

	return frags, nil
}

// ListSources scans the collection and returns up to limit distinct
// provenance links, in scan order. Points without a citable link are skipped.
func (s *QdrantStore) ListSources(ctx context.Context, limit int) ([]string, error) {
	// Scan a bounded number of points; the collection metadata is small
	// relative to the vectors so a single page is enough for the feed.
	scanLimit := uint32(limit * 10)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.cfg.Collection,
		Limit:          &scanLimit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: scroll failed: %w", err)
	}

	seen := make(map[string]bool, limit)
	var sources []string
	for _, p := range points {
		frag := fragmentFromPayload(p.Id.GetUuid(), 0, p.Payload)
		link := frag.Source
		if link == "" || link == NoSourcePlaceholder || seen[link] {
			continue
		}
		seen[link] = true
		sources = append(sources, link)
		if len(sources) >= limit {
			break
		}
	}

	return sources, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// fragmentFromPayload maps a Qdrant point payload onto a Fragment.
// Provenance resolution mirrors the ingestion contract: pdf_link first,
// then source, then the no-source placeholder.
func fragmentFromPayload(id string, score float32, payload map[string]*qdrant.Value) Fragment {
	frag := Fragment{
		ID:       id,
		Score:    score,
		Metadata: make(map[string]string),
	}
	if payload == nil {
		frag.Source = NoSourcePlaceholder
		return frag
	}

	if v, ok := payload[payloadText]; ok {
		frag.Text = v.GetStringValue()
	}
	if v, ok := payload[payloadLink]; ok && v.GetStringValue() != "" {
		frag.Source = v.GetStringValue()
	} else if v, ok := payload[payloadSource]; ok && v.GetStringValue() != "" {
		frag.Source = v.GetStringValue()
	} else {
		frag.Source = NoSourcePlaceholder
	}
	for k, v := range payload {
		if k != payloadText && k != payloadLink && k != payloadSource {
			frag.Metadata[k] = v.GetStringValue()
		}
	}
	return frag
}
