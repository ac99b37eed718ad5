//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/complexlabs/docchat/internal/domain"
	"github.com/complexlabs/docchat/internal/pagination"
	"github.com/complexlabs/docchat/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(title string) *domain.Session {
	return &domain.Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestSessionRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSessionRepository(pool)

	session := newTestSession("Quarterly report")
	require.NoError(t, repo.Create(ctx, session))

	retrieved, err := repo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, retrieved.ID)
	assert.Equal(t, "Quarterly report", retrieved.Title)
}

func TestSessionRepository_List_MostRecentFirst(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSessionRepository(pool)

	older := newTestSession("older")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	newer := newTestSession("newer")
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	page, err := repo.List(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "newer", page.Items[0].Title)
	assert.Equal(t, "older", page.Items[1].Title)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.Cursor)
}

func TestSessionRepository_List_Paginates(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSessionRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 3; i++ {
		s := newTestSession(string(rune('a' + i)))
		s.CreatedAt = base.Add(-time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, s))
	}

	first, err := repo.List(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.Cursor)
	assert.Equal(t, "a", first.Items[0].Title)
	assert.Equal(t, "b", first.Items[1].Title)

	cursor, err := pagination.DecodeCursor(first.Cursor)
	require.NoError(t, err)

	second, err := repo.List(ctx, cursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "c", second.Items[0].Title)
	assert.False(t, second.HasMore)
	assert.Empty(t, second.Cursor)
}

func TestSessionRepository_Rename(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSessionRepository(pool)

	session := newTestSession("before")
	require.NoError(t, repo.Create(ctx, session))

	require.NoError(t, repo.Rename(ctx, session.ID, "after"))

	retrieved, err := repo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", retrieved.Title)
}

func TestSessionRepository_Rename_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSessionRepository(pool)

	err := repo.Rename(ctx, uuid.NewString(), "title")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionRepository_Delete_CascadesTurnsAndTraces(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	sessionRepo := NewSessionRepository(pool)
	chatRepo := NewChatRepository(pool)

	session := newTestSession("doomed")
	require.NoError(t, sessionRepo.Create(ctx, session))

	trace, turn := newTestTraceAndTurn(session.ID)
	require.NoError(t, chatRepo.AppendTurn(ctx, trace, turn))

	require.NoError(t, sessionRepo.Delete(ctx, session.ID))

	turns, err := chatRepo.ListTurns(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, turns)

	_, err = chatRepo.GetTrace(ctx, trace.ID)
	assert.ErrorIs(t, err, domain.ErrTraceNotFound)
}

func TestSessionRepository_Delete_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSessionRepository(pool)

	err := repo.Delete(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
