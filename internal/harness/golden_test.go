package harness

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot(t *testing.T) {
	data, err := Snapshot("select Person filter .id = <uuid>$p_2 and .age > <int64>$p_1", map[string]any{
		"p_2": uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		"p_1": int64(18),
	})
	require.NoError(t, err)
	assert.Equal(t,
		"select Person filter .id = <uuid>$p_2 and .age > <int64>$p_1\n"+
			"-- parameters --\n"+
			`{"p_1":18,"p_2":"00000000-0000-0000-0000-000000000001"}`+"\n",
		string(data))
}

func TestSnapshotNoParameters(t *testing.T) {
	data, err := Snapshot("delete Person", nil)
	require.NoError(t, err)
	assert.Equal(t, "delete Person\n-- parameters --\n{}\n", string(data))
}

func TestSnapshotRejectsNil(t *testing.T) {
	_, err := Snapshot("select <str>$p_1", map[string]any{"p_1": nil})
	assert.Error(t, err)
}

func TestAssertQuery(t *testing.T) {
	AssertQuery(t, "snapshot_example", "select Person { full_name }", map[string]any{})
}
