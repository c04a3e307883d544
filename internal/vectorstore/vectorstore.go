// Package vectorstore provides embedded vector storage for message
// embeddings, backed by chromem-go.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors.
var (
	ErrInvalidConfig      = errors.New("vectorstore: invalid config")
	ErrEmptyDocuments     = errors.New("vectorstore: no documents provided")
	ErrCollectionNotFound = errors.New("vectorstore: collection not found")
)

// Document is a unit of storage: content plus its precomputed embedding.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string

	// Embedding, when non-empty, is stored as-is; otherwise the store
	// computes one with its embedding function.
	Embedding []float32
}

// SearchResult is one similarity hit.
type SearchResult struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]string
}

// Store is the vector storage capability used by the search service.
type Store interface {
	// AddDocuments stores documents, embedding any that lack a vector.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search returns the k most similar documents to a query text.
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)

	// SearchEmbedding returns the k most similar documents to a
	// precomputed query vector.
	SearchEmbedding(ctx context.Context, embedding []float32, k int) ([]SearchResult, error)

	// Count returns the number of stored documents.
	Count() int
}
