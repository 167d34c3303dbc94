package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eqb/querybuilder"
)

func TestPrettify(t *testing.T) {
	text := "select Person { full_name, friends: { full_name } } filter .age > 1"

	out, err := execute(t, text+"\n", "prettify")
	require.NoError(t, err)
	assert.Equal(t, querybuilder.Prettify(text)+"\n", out)
	assert.Contains(t, out, "\n")
}

func TestPrettifyJSON(t *testing.T) {
	text := "select Person { full_name }"

	out, err := execute(t, text, "--format", "json", "prettify")
	require.NoError(t, err)

	var resp struct {
		Data QueryOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, querybuilder.Prettify(text), resp.Data.Text)
	assert.Empty(t, resp.Data.Parameters)
}

func TestPrettifyEmptyInput(t *testing.T) {
	_, err := execute(t, "  \n", "prettify")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, ExitStatus(err))
	assert.Contains(t, err.Error(), CodeBadInput)
}
