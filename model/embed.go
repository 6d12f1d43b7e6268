package model

import (
	"context"
	"log"
	"os"
)

// Embedder turns text into a vector for nearest-neighbor search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewEmbedder builds the Ollama-backed embedder from the environment.
func NewEmbedder() Embedder {
	ollamaURL := os.Getenv("OLLAMA_EMBEDDING_URL")
	ollamaModel := os.Getenv("OLLAMA_EMBEDDING_MODEL")

	log.Printf("[EMBEDDER] using Ollama embeddings (%s)", ollamaModel)

	return NewOllamaEmbedder(ollamaURL, ollamaModel)
}
