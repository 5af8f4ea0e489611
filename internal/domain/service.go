package domain

import "context"

// Retriever returns ranked passages for a query, possibly none.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Passage, error)
}

// Generator turns (prompt, credential) into text. Any upstream problem is an
// opaque error; callers decide whether to try another credential.
type Generator interface {
	Generate(ctx context.Context, prompt, credential string) (string, error)
}
