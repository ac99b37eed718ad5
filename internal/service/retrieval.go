package service

import (
	"context"
	"log"

	"github.com/complexlabs/docchat/internal/codec"
	"github.com/complexlabs/docchat/internal/domain"
	"github.com/complexlabs/docchat/internal/telemetry"
)

// RetrievalTopK is how many nearest neighbors are fetched per question.
const RetrievalTopK = 5

// VectorMatch is one scored result from the vector index.
type VectorMatch struct {
	ID       string
	Score    float32
	Metadata domain.ChunkMetadata
}

// VectorQueryRepository queries the vector index for nearest neighbors.
type VectorQueryRepository interface {
	Query(ctx context.Context, embedding []float32, topK int) ([]VectorMatch, error)
}

// RetrievalService embeds a question and turns the index's matches into
// ranked context chunks.
type RetrievalService struct {
	embedding EmbeddingClient
	vectors   VectorQueryRepository
}

// NewRetrievalService creates a RetrievalService instance
func NewRetrievalService(embedding EmbeddingClient, vectors VectorQueryRepository) *RetrievalService {
	return &RetrievalService{
		embedding: embedding,
		vectors:   vectors,
	}
}

// Retrieve returns decompressed context chunks for the question, in the
// index's descending-similarity order. Matches whose stored group text
// fails to decompress are dropped; the rest are unaffected.
func (s *RetrievalService) Retrieve(ctx context.Context, question string) ([]domain.ContextChunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
	})
	defer span.End()

	embedding, err := s.embedding.GenerateEmbedding(ctx, question)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDependencyError("failed to embed question", err)
	}

	matches, err := s.vectors.Query(ctx, embedding, RetrievalTopK)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDependencyError("vector query failed", err)
	}

	chunks := make([]domain.ContextChunk, 0, len(matches))
	for _, match := range matches {
		if match.Metadata.Text == "" {
			continue
		}

		text, err := codec.Decompress(match.Metadata.Text)
		if err != nil {
			log.Printf("retrieval: decompression error for chunk %s: %v", match.ID, err)
			continue
		}

		chunks = append(chunks, domain.ContextChunk{
			Text:      text,
			Score:     match.Score,
			Source:    match.Metadata.SourceDocument,
			PageRange: match.Metadata.PageRange,
		})
	}

	return chunks, nil
}
