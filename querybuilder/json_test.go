package querybuilder

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eqb/edgeql"
	"github.com/roach88/eqb/expr"
	"github.com/roach88/eqb/internal/testutil"
	"github.com/roach88/eqb/qerr"
	"github.com/roach88/eqb/schema"
)

func TestWithJSONPathAccess(t *testing.T) {
	b := New[Person]().
		WithJSON("data", map[string]any{"name": "Alice", "tags": []string{"a"}}).
		SelectExpr(func(*expr.Param) expr.Expr {
			return edgeql.Cast[string](edgeql.JSONGet(edgeql.Var[json.RawMessage]("data"), expr.Lit("tags"), expr.Lit("0")))
		})

	q := build(t, b, quiet())
	assert.Equal(t, `with data := <json>$p_1 select <str>json_get(data, "tags", "0")`, q.Text)
	require.IsType(t, json.RawMessage{}, q.Parameters["p_1"])
	assert.JSONEq(t, `{"name":"Alice","tags":["a"]}`, string(q.Parameters["p_1"].(json.RawMessage)))
}

func TestInsertJSON(t *testing.T) {
	people := []*Person{
		{Name: "Alice", Age: testutil.IntPtr(30), BestFriend: &Person{Name: "Bob"}},
		{Name: "Bob"},
	}

	q := build(t, InsertJSON("people", people), quiet())
	assert.Equal(t,
		`with people := <json>$p_1 for json_row in json_array_unpack(people) union `+
			`(insert Person { full_name := <str>json_get(json_row, "full_name"), age := <int64>json_get(json_row, "age") })`,
		q.Text)
	assert.JSONEq(t,
		`[{"full_name":"Alice","age":30},{"full_name":"Bob","age":null}]`,
		string(q.Parameters["p_1"].(json.RawMessage)))
}

func TestInsertJSONNeedsBinding(t *testing.T) {
	_, err := New[Person](quiet()).InsertJSON("people").Build()
	assert.ErrorIs(t, err, qerr.ErrUndefinedVariable)
}

func TestInsertJSONRejectsEnums(t *testing.T) {
	b := New[testutil.Movie]().WithJSON("movies", []testutil.Movie{}).InsertJSON("movies")
	assert.ErrorIs(t, b.Err(), qerr.ErrUnmappedScalar)
}

func TestJSONDocument(t *testing.T) {
	id := uuid.MustParse("0190f3a4-5b6c-7d8e-9f00-112233445566")

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"nil", nil, nil},
		{"scalar", 3, 3},
		{"char and unset id", testutil.Letter{Value: 'z', Word: "zed"}, map[string]any{"value": "z", "word": "zed"}},
		{"set id", &testutil.Account{Object: schema.Object{ID: id}, Email: "a@b.c"}, map[string]any{"id": id, "email": "a@b.c"}},
		{"enum", testutil.GenreHorror, json.RawMessage(`"horror"`)},
		{"nil slice", []string(nil), nil},
		{"bytes", []byte("hi"), []byte("hi")},
		{"map", map[string][]int{"n": {1}}, map[string]any{"n": []any{1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := jsonDocument(reflect.ValueOf(tt.value))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSONDocumentRejectsNonStringKeys(t *testing.T) {
	_, err := jsonDocument(reflect.ValueOf(map[int]string{1: "a"}))
	assert.ErrorIs(t, err, qerr.ErrUnmappedScalar)
}
