package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCursor_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	encoded := EncodeCursor("item-42", ts)
	require.NotEmpty(t, encoded)

	cursor, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, "item-42", cursor.LastID)
	assert.True(t, cursor.Timestamp.Equal(ts))
}

func TestDecodeCursor_Empty(t *testing.T) {
	cursor, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	for _, bad := range []string{"not-base64!!", "bm8tc2VwYXJhdG9y", "aWR8bm90LWEtdGltZQ=="} {
		_, err := DecodeCursor(bad)
		assert.ErrorIs(t, err, ErrInvalidCursor)
	}
}

type pageItem struct {
	id string
	ts time.Time
}

func TestCreateNextCursor(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	items := []pageItem{
		{id: "a", ts: ts},
		{id: "b", ts: ts.Add(-time.Minute)},
	}
	getID := func(i pageItem) string { return i.id }
	getTS := func(i pageItem) time.Time { return i.ts }

	// Full page: cursor points at the last item.
	next := CreateNextCursor(items, 2, getID, getTS)
	cursor, err := DecodeCursor(next)
	require.NoError(t, err)
	assert.Equal(t, "b", cursor.LastID)

	// Short page or no items: no next cursor.
	assert.Empty(t, CreateNextCursor(items, 3, getID, getTS))
	assert.Empty(t, CreateNextCursor([]pageItem{}, 2, getID, getTS))
}
