package operators

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eqb/expr"
	"github.com/roach88/eqb/qerr"
)

func TestOperator_Build(t *testing.T) {
	tests := []struct {
		name     string
		template string
		args     []string
		want     string
	}{
		{"infix", "{0} > {1}", []string{".age", "18"}, ".age > 18"},
		{"function", "len({0})", []string{".name"}, "len(.name)"},
		{"optional present", "{0}[{1}:{2?}]", []string{".s", "1", "3"}, ".s[1:3]"},
		{"optional missing", "{0}[{1}:{2?}]", []string{".s", "1"}, ".s[1:]"},
		{"optional drops separator", "round({0}, {1?})", []string{".x"}, "round(.x)"},
		{"splice from start", "f({, :0+})", []string{"a", "b", "c"}, "f(a, b, c)"},
		{"splice after fixed", "({0} | {1}{ | :2+})", []string{"A", "B", "C", "D"}, "(A | B | C | D)"},
		{"splice empty", "({0} | {1}{ | :2+})", []string{"A", "B"}, "(A | B)"},
		{"no placeholders", "random()", nil, "random()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := mustParse(Operator{Template: tt.template})
			got, err := op.Build(tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOperator_MissingRequiredArgument(t *testing.T) {
	op := mustParse(Operator{Template: "find({0}, {1})"})
	_, err := op.Build(".a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing argument 1")
	assert.Equal(t, 2, op.Arity())
}

func TestParseTemplate_Rejects(t *testing.T) {
	for _, tmpl := range []string{"len({0)", "{x}", "{a:b+}", "{1x?}"} {
		_, err := parseTemplate(tmpl)
		assert.Error(t, err, tmpl)
	}
}

func TestRegistry_EveryTemplateParses(t *testing.T) {
	for _, key := range Keys() {
		op, ok := ResolveMethod(key)
		require.True(t, ok)
		assert.NotNil(t, op.segments, key)
	}
}

func TestResolve(t *testing.T) {
	op, ok := Resolve(expr.OpCoalesce)
	require.True(t, ok)
	got, err := op.Build(".a", "{}")
	require.NoError(t, err)
	assert.Equal(t, ".a ?? {}", got)

	_, ok = Resolve(expr.BinaryOp(999))
	assert.False(t, ok)

	not, ok := ResolveUnary(expr.OpNot)
	require.True(t, ok)
	got, err = not.Build("(.a = 1)")
	require.NoError(t, err)
	assert.Equal(t, "not (.a = 1)", got)
}

func TestLookupMethod(t *testing.T) {
	_, err := LookupMethod("string.Nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, qerr.ErrOperatorNotFound)

	op, err := LookupMethod("EdgeQL.AddLink")
	require.NoError(t, err)
	assert.True(t, op.SuppressSetOperand)
}

func TestReverseLookupFunction(t *testing.T) {
	tests := []struct {
		text string
		want reflect.Type
		ok   bool
	}{
		{"count(.friends)", reflect.TypeFor[int64](), true},
		{"len(.name)", reflect.TypeFor[int64](), true},
		{"math::mean(.scores)", reflect.TypeFor[float64](), true},
		{"str_lower(.name)", reflect.TypeFor[string](), true},
		{"to_decimal(.x)", tDecimal, true},
		{".name", nil, false},
		{"nope(.x)", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ReverseLookupFunction(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
