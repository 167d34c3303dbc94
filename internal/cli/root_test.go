package cli

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and stdin, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "eqb", cmd.Use)
	assert.Contains(t, cmd.Short, "EdgeQL")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"schema"},
		{"schema", "import"},
		{"schema", "list"},
		{"schema", "show"},
		{"schema", "conflict"},
		{"func"},
		{"prettify"},
		{"query"},
		{"query", "record"},
		{"query", "show"},
		{"query", "list"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestDatabaseFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"schema", "query"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			dbFlag := sub.PersistentFlags().Lookup("db")
			require.NotNil(t, dbFlag)
			assert.Equal(t, "", dbFlag.DefValue)
		})
	}

	conflictCmd, _, err := cmd.Find([]string{"schema", "conflict"})
	require.NoError(t, err)
	elseFlag := conflictCmd.Flags().Lookup("else")
	require.NotNil(t, elseFlag)
	assert.Equal(t, "false", elseFlag.DefValue)
}

func TestDatabaseFlagRequired(t *testing.T) {
	_, err := execute(t, "", "schema", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, err := execute(t, "", "--format", "invalid", "func", "count(.x)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
