package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunc(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"count(.friends)", "int64"},
		{"math::mean(.scores)", "float64"},
		{"str_lower(.name)", "string"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			out, err := execute(t, "", "func", tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestFuncJSON(t *testing.T) {
	out, err := execute(t, "", "--format", "json", "func", "count(.friends)")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   FuncResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, FuncResult{Text: "count(.friends)", Type: "int64"}, resp.Data)
}

func TestFuncUnknown(t *testing.T) {
	out, err := execute(t, "", "func", "nope(.x)")
	require.Error(t, err)
	assert.Equal(t, ExitRejected, ExitStatus(err))
	assert.Contains(t, out, "error E005: no known function")
}
