package rag

import (
	"context"
	"fmt"
	"testing"
)

// fakeEmbedder implements Embedder for tests, returning a fixed vector per text.
type fakeEmbedder struct {
	// err is returned instead of embeddings when non-nil.
	err error
	// calls counts Embed invocations.
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// fakeStore implements VectorStore for tests, recording the topK it was asked for.
type fakeStore struct {
	frags    []Fragment
	err      error
	lastTopK int
}

func (f *fakeStore) Search(_ context.Context, _ []float32, topK int) ([]Fragment, error) {
	f.lastTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.frags, nil
}

func (f *fakeStore) Close() error { return nil }

func TestNewRetriever_NilDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(nil, &fakeStore{}, 3); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewRetriever(&fakeEmbedder{}, nil, 3); err == nil {
		t.Error("expected error for nil store")
	}
}

func TestRetrieve_DelegatesToStore(t *testing.T) {
	t.Parallel()

	store := &fakeStore{frags: []Fragment{
		{ID: "a", Text: "deadline is June 30", Source: "docA.pdf"},
		{ID: "b", Text: "file online", Source: "docB.pdf"},
	}}
	r, err := NewRetriever(&fakeEmbedder{}, store, 3)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	frags, err := r.Retrieve(context.Background(), "What is the filing deadline?", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(frags) != 2 {
		t.Fatalf("want 2 fragments, got %d", len(frags))
	}
	if store.lastTopK != 2 {
		t.Errorf("want topK=2 passed to store, got %d", store.lastTopK)
	}
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	r, err := NewRetriever(&fakeEmbedder{}, store, 4)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	if _, err := r.Retrieve(context.Background(), "q", 0); err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if store.lastTopK != 4 {
		t.Errorf("want default topK=4, got %d", store.lastTopK)
	}
}

func TestRetrieve_EmbedderError(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{err: fmt.Errorf("backend down")}
	r, err := NewRetriever(emb, &fakeStore{}, 3)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	if _, err := r.Retrieve(context.Background(), "q", 3); err == nil {
		t.Error("expected error when embedder fails")
	}
}

func TestRetrieve_StoreError(t *testing.T) {
	t.Parallel()

	store := &fakeStore{err: fmt.Errorf("qdrant unreachable")}
	r, err := NewRetriever(&fakeEmbedder{}, store, 3)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	if _, err := r.Retrieve(context.Background(), "q", 3); err == nil {
		t.Error("expected error when store fails")
	}
}
