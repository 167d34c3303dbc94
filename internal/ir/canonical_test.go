package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"string", String("hello"), `"hello"`},
		{"int", Int(42), `42`},
		{"negative int", Int(-7), `-7`},
		{"bool", Bool(true), `true`},
		{"empty array", Array{}, `[]`},
		{"empty object", Object{}, `{}`},
		{"sorted keys", Object{"z": Int(1), "a": Int(2), "m": Int(3)}, `{"a":2,"m":3,"z":1}`},
		{"nested", Object{"b": Array{Int(1), Object{"y": Bool(false), "x": String("v")}}, "a": String("")},
			`{"a":"","b":[1,{"x":"v","y":false}]}`},
		{"go map", map[string]any{"b": 1, "a": "x"}, `{"a":"x","b":1}`},
		{"go slice", []any{"a", int64(2), true}, `["a",2,true]`},
		{"no html escape", String("<a & b>"), `"<a & b>"`},
		{"quote and backslash", String(`say "hi" \o/`), `"say \"hi\" \\o/"`},
		{"control character", String("a\nb"), `"a\nb"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+1F600 encodes as the surrogate pair D83D DE00, which sorts before
	// U+FB01 in UTF-16 but after it in UTF-8.
	obj := Object{"\U0001F600": Int(1), "\uFB01": Int(2)}
	got, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"\uFB01\":2}", string(got))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	decomposed := "e\u0301"
	got, err := MarshalCanonical(Object{decomposed: String(decomposed)})
	require.NoError(t, err)
	assert.Equal(t, "{\"\u00e9\":\"\u00e9\"}", string(got))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	got, err := MarshalCanonical(String("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(got))

	// Literal backslash-u text stays escaped.
	got, err = MarshalCanonical(String(`\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(got))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"nil", nil},
		{"float", 1.5},
		{"float in map", map[string]any{"x": float32(2)}},
		{"nil in slice", []any{nil}},
		{"unsupported", struct{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestMarshalCanonicalIdempotent(t *testing.T) {
	obj := Object{"k3": Int(3), "k1": Int(1), "k2": Array{String("x")}}
	first, err := MarshalCanonical(obj)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := MarshalCanonical(obj)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
