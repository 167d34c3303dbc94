package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personYAML = `types:
  - name: default::Person
    properties:
      - name: id
        is_exclusive: true
        is_readonly: true
      - name: full_name
        required: true
        is_exclusive: true
      - name: friends
        is_link: true
        cardinality: Many
  - name: default::Letter
    properties:
      - name: value
      - name: word
`

const movieCUE = `
types: "default::Movie": {
	properties: {
		title: {required: true}
		year: {required: true}
	}
	constraints: [{exclusive: true, subject: "(.title, .year)"}]
}
`

// writeFile writes content into the test's temp directory.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// importSchema imports a schema file into a fresh database and returns the
// database path.
func importSchema(t *testing.T, name, content string) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "eqb.db")
	_, err := execute(t, "", "schema", "import", writeFile(t, name, content), "--db", db)
	require.NoError(t, err)
	return db
}

func TestSchemaImport(t *testing.T) {
	db := filepath.Join(t.TempDir(), "eqb.db")
	path := writeFile(t, "schema.yaml", personYAML)

	out, err := execute(t, "", "schema", "import", path, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Imported 2 type(s)")
	assert.Contains(t, out, "hash: ")

	out, err = execute(t, "", "schema", "import", path, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Schema already stored (seq 1)")
}

func TestSchemaImportJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "eqb.db")
	path := writeFile(t, "schema.cue", movieCUE)

	out, err := execute(t, "", "--format", "json", "schema", "import", path, "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string             `json:"status"`
		Data   SchemaImportResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Inserted)
	assert.Equal(t, 1, resp.Data.Schema.Types)
	assert.Equal(t, path, resp.Data.Schema.Source)
}

func TestSchemaImportErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "eqb.db")

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantText string
	}{
		{
			name:     "missing file",
			path:     filepath.Join(t.TempDir(), "missing.yaml"),
			wantCode: ExitUsage,
			wantText: CodeRead,
		},
		{
			name:     "unknown yaml field",
			path:     writeFile(t, "bad.yaml", "types:\n  - name: A\n    colour: red\n"),
			wantCode: ExitRejected,
			wantText: CodeSchema,
		},
		{
			name:     "invalid cue",
			path:     writeFile(t, "bad.cue", "types: {"),
			wantCode: ExitRejected,
			wantText: CodeSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "", "schema", "import", tt.path, "--db", db)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, ExitStatus(err))
			assert.Contains(t, err.Error(), tt.wantText)
			assert.Contains(t, out, "error "+tt.wantText+": ")
		})
	}
}

func TestSchemaList(t *testing.T) {
	db := filepath.Join(t.TempDir(), "eqb.db")

	out, err := execute(t, "", "schema", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No schemas stored.")

	_, err = execute(t, "", "schema", "import", writeFile(t, "schema.yaml", personYAML), "--db", db)
	require.NoError(t, err)
	_, err = execute(t, "", "schema", "import", writeFile(t, "schema.cue", movieCUE), "--db", db)
	require.NoError(t, err)

	out, err = execute(t, "", "schema", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "2 type(s)")
	assert.Contains(t, out, "1 type(s)")
}

func TestSchemaShow(t *testing.T) {
	db := importSchema(t, "schema.yaml", personYAML)

	out, err := execute(t, "", "schema", "show", "Person", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "name: default::Person")
	assert.Contains(t, out, "name: full_name")
	assert.Contains(t, out, "cardinality: Many")

	_, err = execute(t, "", "schema", "show", "Movie", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitRejected, ExitStatus(err))
	assert.Contains(t, err.Error(), "type Movie not found")
}

func TestSchemaShowWithoutSchema(t *testing.T) {
	db := filepath.Join(t.TempDir(), "eqb.db")

	_, err := execute(t, "", "schema", "show", "Person", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitUsage, ExitStatus(err))
	assert.Contains(t, err.Error(), CodeNotFound)

	_, err = execute(t, "", "schema", "show", "Person", "--db", db, "--hash", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), CodeNotFound)
}

func TestSchemaConflict(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		schema string
		args   []string
		want   string
	}{
		{"constraint", "movie.cue", movieCUE, []string{"Movie"}, "unless conflict on (.title, .year)"},
		{"exclusive property", "schema.yaml", personYAML, []string{"Person", "--else"}, "unless conflict on .full_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := importSchema(t, tt.file, tt.schema)
			out, err := execute(t, "", append([]string{"schema", "conflict", "--db", db}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestSchemaConflictByHash(t *testing.T) {
	db := importSchema(t, "schema.yaml", personYAML)

	out, err := execute(t, "", "--format", "json", "schema", "list", "--db", db)
	require.NoError(t, err)
	var listed struct {
		Data []struct {
			Hash string `json:"hash"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed.Data, 1)

	_, err = execute(t, "", "schema", "import", writeFile(t, "movie.cue", movieCUE), "--db", db)
	require.NoError(t, err)

	_, err = execute(t, "", "schema", "conflict", "Person", "--db", db)
	require.Error(t, err, "the latest snapshot has no Person")

	out, err = execute(t, "", "schema", "conflict", "Person", "--db", db, "--hash", listed.Data[0].Hash)
	require.NoError(t, err)
	assert.Equal(t, "unless conflict on .full_name\n", out)
}

func TestSchemaConflictNeedsExclusive(t *testing.T) {
	db := importSchema(t, "schema.yaml", personYAML)

	out, err := execute(t, "", "schema", "conflict", "Letter", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "unless conflict\n", out)

	out, err = execute(t, "", "--format", "json", "schema", "conflict", "Letter", "--else", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitRejected, ExitStatus(err))

	var resp response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "NO_EXCLUSIVE_CONSTRAINT", resp.Error.Code)
}
