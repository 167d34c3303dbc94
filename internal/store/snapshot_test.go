package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eqb/internal/ir"
	"github.com/roach88/eqb/internal/testutil"
	"github.com/roach88/eqb/schema"
)

func TestPutSchema(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	info := testutil.Schema()

	rec, inserted, err := s.PutSchema(ctx, "schema.yaml", info)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(1), rec.Seq)
	assert.Equal(t, "schema.yaml", rec.Source)
	assert.Equal(t, len(info.Types), rec.Types)
	assert.Equal(t, uuid.Version(7), rec.ID.Version())

	_, wantHash, err := ir.SchemaSnapshot(info)
	require.NoError(t, err)
	assert.Equal(t, wantHash, rec.Hash)

	again, inserted, err := s.PutSchema(ctx, "other.cue", info)
	require.NoError(t, err)
	assert.False(t, inserted, "same content is stored once")
	assert.Equal(t, rec, again)
}

func TestSchemaRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	info := testutil.Schema()

	rec, _, err := s.PutSchema(ctx, "schema.yaml", info)
	require.NoError(t, err)

	got, gotRec, err := s.SchemaByHash(ctx, rec.Hash)
	require.NoError(t, err)
	assert.Equal(t, rec, gotRec)
	assert.Equal(t, info, got)

	_, hash, err := ir.SchemaSnapshot(got)
	require.NoError(t, err)
	assert.Equal(t, rec.Hash, hash, "a loaded snapshot hashes like the original")
}

func TestLatestSchema(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, _, err := s.LatestSchema(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	first := &schema.Info{Types: []schema.ObjectType{{Name: "default::A", Properties: []schema.Property{{Name: "x"}}}}}
	second := &schema.Info{Types: []schema.ObjectType{{Name: "default::B", Properties: []schema.Property{{Name: "y"}}}}}

	_, _, err = s.PutSchema(ctx, "a.yaml", first)
	require.NoError(t, err)
	_, _, err = s.PutSchema(ctx, "b.yaml", second)
	require.NoError(t, err)

	latest, rec, err := s.LatestSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b.yaml", rec.Source)
	assert.Equal(t, second, latest)

	list, err := s.ListSchemas(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a.yaml", list[0].Source)
	assert.Equal(t, "b.yaml", list[1].Source)
}

func TestListSchemasEmpty(t *testing.T) {
	s := createTestStore(t)

	list, err := s.ListSchemas(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestSchemaByHashNotFound(t *testing.T) {
	s := createTestStore(t)

	_, _, err := s.SchemaByHash(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
