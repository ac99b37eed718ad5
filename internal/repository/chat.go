package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/complexlabs/docchat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

// AppendTurn writes the reasoning trace and the chat turn in a single
// transaction, so a turn can never exist without its trace or vice versa.
func (r *ChatRepository) AppendTurn(ctx context.Context, trace *domain.ReasoningTrace, turn *domain.ChatTurn) error {
	chunksJSON, err := json.Marshal(trace.Chunks)
	if err != nil {
		return fmt.Errorf("marshal trace chunks: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO reasoning_traces (id, session_id, question, chunks, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		trace.ID, trace.SessionID, trace.Question, chunksJSON, trace.CreatedAt,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO chat_turns (id, session_id, query, answer, reason_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		turn.ID, turn.SessionID, turn.Query, turn.Answer, turn.ReasonID, turn.CreatedAt,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *ChatRepository) ListTurns(ctx context.Context, sessionID string) ([]*domain.ChatTurn, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, query, answer, reason_id, created_at
		 FROM chat_turns
		 WHERE session_id = $1
		 ORDER BY created_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []*domain.ChatTurn
	for rows.Next() {
		var t domain.ChatTurn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Query, &t.Answer, &t.ReasonID, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, &t)
	}
	return turns, rows.Err()
}

func (r *ChatRepository) GetTrace(ctx context.Context, id string) (*domain.ReasoningTrace, error) {
	var trace domain.ReasoningTrace
	var chunksJSON []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, session_id, question, chunks, created_at
		 FROM reasoning_traces
		 WHERE id = $1`,
		id,
	).Scan(&trace.ID, &trace.SessionID, &trace.Question, &chunksJSON, &trace.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTraceNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(chunksJSON, &trace.Chunks); err != nil {
		return nil, fmt.Errorf("unmarshal trace chunks: %w", err)
	}
	return &trace, nil
}

// DeleteOrphanTraces removes traces older than the cutoff that no chat
// turn references. Returns the number of rows deleted.
func (r *ChatRepository) DeleteOrphanTraces(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM reasoning_traces t
		 WHERE t.created_at < $1
		   AND NOT EXISTS (SELECT 1 FROM chat_turns c WHERE c.reason_id = t.id)`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}
