package querybuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrettify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "flat",
			in:   "select Person",
			want: "select Person",
		},
		{
			name: "shape",
			in:   "select Person { full_name, age }",
			want: "select Person {\n  full_name,\n  age\n}",
		},
		{
			name: "nested shape",
			in:   "select Person { full_name, friends: { id } }",
			want: "select Person {\n  full_name,\n  friends: {\n    id\n  }\n}",
		},
		{
			name: "empty set stays inline",
			in:   "insert Person { friends := {} }",
			want: "insert Person {\n  friends := {}\n}",
		},
		{
			name: "quoted text untouched",
			in:   `select "a, {b}" ++ 'c(d)'`,
			want: `select "a, {b}" ++ 'c(d)'`,
		},
		{
			name: "escaped quote",
			in:   `select "say \"hi, there\""`,
			want: `select "say \"hi, there\""`,
		},
		{
			name: "clause after parens",
			in:   "select Person filter (.age > 1) limit 1",
			want: "select Person filter (\n  .age > 1\n)\nlimit 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Prettify(tt.in))
		})
	}
}

func TestPrettifyIsStableOnOutput(t *testing.T) {
	in := "with a := (select Person { full_name }) select a { full_name }"
	once := Prettify(in)
	assert.Equal(t, once, Prettify(once))
}
