package compiler

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eqb/internal/testutil"
	"github.com/roach88/eqb/schema"
)

func TestLiteral(t *testing.T) {
	tests := []struct {
		name  string
		value any
		raw   bool
		char  bool
		want  string
	}{
		{"nil", nil, false, false, "{}"},
		{"nil pointer", (*int)(nil), false, false, "{}"},
		{"string", `a\b`, false, false, `"a\\b"`},
		{"raw string", "hero", true, false, "hero"},
		{"char", schema.Char('z'), false, false, `"z"`},
		{"int", 42, false, false, "42"},
		{"int in char context", 65, false, true, `"A"`},
		{"negative int", int16(-7), false, false, "-7"},
		{"byte", uint8(200), false, false, "200"},
		{"byte in char context", uint8('b'), false, true, `"b"`},
		{"uintptr", uintptr(9), false, false, "9"},
		{"bool", true, false, false, "true"},
		{"float", 1.5, false, false, "1.5"},
		{"uuid", uuid.MustParse("00000000-0000-0000-0000-000000000001"), false, false, `<uuid>"00000000-0000-0000-0000-000000000001"`},
		{"decimal", decimal.RequireFromString("12.50"), false, false, "12.5n"},
		{"datetime", time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC), false, false, `<datetime>"2024-02-03T04:05:06Z"`},
		{"duration", 90 * time.Second, false, false, `<duration>"90000000 microseconds"`},
		{"bytes", []byte{0x01, 0xff}, false, false, `b"\x01\xff"`},
		{"array", []int{1, 2}, false, false, "[1, 2]"},
		{"enum lower", testutil.GenreHorror, false, false, `"horror"`},
		{"enum numeric", testutil.RatingR, false, false, "3"},
		{"object type", reflect.TypeFor[testutil.Account](), false, false, "UserAccount"},
		{"scalar type", reflect.TypeFor[int32](), false, false, "int32"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Literal(reflect.ValueOf(tt.value), tt.raw, tt.char)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBind(t *testing.T) {
	ctx := testContext()

	text, args, err := Bind(ctx, reflect.ValueOf(schema.Char('q')), nil)
	require.NoError(t, err)
	assert.Equal(t, "<str>$p_1", text)
	assert.Equal(t, "q", args[0].Value)

	text, args, err = Bind(ctx, reflect.ValueOf([]string{"a"}), nil)
	require.NoError(t, err)
	assert.Equal(t, "<array<str>>$p_2", text)
	assert.Equal(t, []string{"a"}, args[0].Value)

	text, args, err = Bind(ctx, reflect.ValueOf([]string(nil)), nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", text)
	assert.Empty(t, args)
}
