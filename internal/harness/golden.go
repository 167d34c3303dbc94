package harness

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/eqb/internal/ir"
)

// Snapshot renders a built query as golden file content.
func Snapshot(text string, params map[string]any) ([]byte, error) {
	record, err := ir.NewQueryRecord(text, params)
	if err != nil {
		return nil, err
	}
	paramsJSON, err := ir.MarshalCanonical(record.Object()["parameters"])
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(text)
	buf.WriteString("\n-- parameters --\n")
	buf.Write(paramsJSON)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// AssertQuery compares a built query against testdata/golden/{name}.golden.
func AssertQuery(t *testing.T, name, text string, params map[string]any) {
	t.Helper()

	data, err := Snapshot(text, params)
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
