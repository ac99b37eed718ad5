package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/complexlabs/docchat/internal/domain"
	"github.com/complexlabs/docchat/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository handles persistence of embedded document chunks.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// UpsertBatch inserts or replaces the given records. Callers batch to at
// most service.UpsertBatchSize records per call.
func (r *ChunkRepository) UpsertBatch(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		metadataJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata %s: %w", rec.ID, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO document_chunks (id, embedding, metadata, created_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE
			 SET embedding = EXCLUDED.embedding,
			     metadata = EXCLUDED.metadata`,
			rec.ID, pgvector.NewVector(rec.Embedding), metadataJSON, time.Now().UTC(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Query returns the topK nearest chunks to the embedding, scored by
// inverse distance, best first.
func (r *ChunkRepository) Query(ctx context.Context, embedding []float32, topK int) ([]service.VectorMatch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, metadata, (1.0 / (1.0 + (embedding <=> $1)))::float4 AS score
		 FROM document_chunks
		 ORDER BY score DESC
		 LIMIT $2`,
		pgvector.NewVector(embedding), topK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []service.VectorMatch
	for rows.Next() {
		var m service.VectorMatch
		var metadataJSON []byte
		if err := rows.Scan(&m.ID, &metadataJSON, &m.Score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metadataJSON, &m.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal chunk metadata %s: %w", m.ID, err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteBySource removes all chunks ingested from the named document.
func (r *ChunkRepository) DeleteBySource(ctx context.Context, sourceDocument string) (int64, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM document_chunks WHERE metadata->>'source_document' = $1`,
		sourceDocument,
	)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}
