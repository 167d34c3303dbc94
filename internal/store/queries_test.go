package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eqb/internal/testutil"
)

func TestPutQuery(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	q := createTestQuery(t, "select Person filter .age > <int64>$p_1", map[string]any{"p_1": 30})

	rec, inserted, err := s.PutQuery(ctx, q, "")
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, q.Text, rec.Text)
	assert.Equal(t, `{"p_1":30}`, rec.Parameters)
	assert.Empty(t, rec.SchemaHash)

	hash, err := q.Hash()
	require.NoError(t, err)
	assert.Equal(t, hash, rec.Hash)

	same := createTestQuery(t, "select Person filter .age > <int64>$p_1", map[string]any{"p_1": int64(30)})
	again, inserted, err := s.PutQuery(ctx, same, "")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, rec, again)

	got, err := s.QueryByHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestPutQueryWithSchema(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, _, err := s.PutQuery(ctx, createTestQuery(t, "select Person", nil), "unknown")
	assert.Error(t, err, "schema_hash must name a stored snapshot")

	snap, _, err := s.PutSchema(ctx, "schema.yaml", testutil.Schema())
	require.NoError(t, err)

	rec, _, err := s.PutQuery(ctx, createTestQuery(t, "select Person", nil), snap.Hash)
	require.NoError(t, err)
	assert.Equal(t, snap.Hash, rec.SchemaHash)
	assert.Equal(t, "{}", rec.Parameters)

	_, _, err = s.PutQuery(ctx, createTestQuery(t, "delete Person", nil), "")
	require.NoError(t, err)

	all, err := s.ListQueries(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "select Person", all[0].Text)
	assert.Equal(t, "delete Person", all[1].Text)

	scoped, err := s.ListQueries(ctx, snap.Hash)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, rec, scoped[0])
}

func TestQueryByHashNotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.QueryByHash(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.ListQueries(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
