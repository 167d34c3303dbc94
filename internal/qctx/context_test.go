package qctx

import (
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eqb/qerr"
)

func TestNewDefaults(t *testing.T) {
	c := New()
	assert.True(t, c.IncludeEmptySets)
	assert.True(t, c.AllowComputedValues)
	assert.Equal(t, DefaultMaxAggregationDepth, c.MaxAggregationDepth)
	assert.NotNil(t, c.Log())
	assert.Nil(t, c.Parent())
	assert.Equal(t, 0, c.Depth())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c = New(WithLogger(logger), WithIncludeEmptySets(false), WithMaxAggregationDepth(2), WithDetached(true))
	assert.Same(t, logger, c.Log())
	assert.False(t, c.IncludeEmptySets)
	assert.Equal(t, 2, c.MaxAggregationDepth)
	assert.True(t, c.UseDetached)
}

func TestEnter(t *testing.T) {
	root := New(WithDetached(true))
	root.LimitToOne = true
	root.ExplicitShapeDefinition = true

	child := root.Enter(func(c *Context) { c.SelectorType = reflect.TypeFor[int]() })
	assert.Same(t, root, child.Parent())
	assert.Equal(t, 1, child.Depth())
	assert.True(t, child.UseDetached, "flags are inherited")
	assert.False(t, child.LimitToOne, "binding-site flags are not inherited")
	assert.False(t, child.ExplicitShapeDefinition)
	assert.Nil(t, root.SelectorType, "overrides stay on the child")

	grandchild := child.Enter(nil)
	assert.Equal(t, 2, grandchild.Depth())
	assert.Equal(t, reflect.TypeFor[int](), grandchild.SelectorType)
}

func TestSinkIsShared(t *testing.T) {
	root := New()
	child := root.Enter(nil).Enter(nil)

	child.AddTrackedVariable("who")
	child.DefineVariable("who")
	assert.Equal(t, []string{"who"}, root.TrackedVariables())
	assert.True(t, root.IsDefined("who"))
	assert.False(t, root.IsDefined("other"))

	assert.Equal(t, "p_1", root.NextArgName())
	assert.Equal(t, "p_2", child.NextArgName())
	assert.Equal(t, "p_3", root.NextArgName())
}

func TestGetOrAddGlobal(t *testing.T) {
	c := New()
	ref := new(int)
	calls := 0
	build := func() (string, Args, error) {
		calls++
		return "(insert Person)", Args{{Name: "p_1", Value: "x"}}, nil
	}

	name, err := c.GetOrAddGlobal("person", ref, build)
	require.NoError(t, err)
	assert.Equal(t, "person_1", name)

	again, err := c.Enter(nil).GetOrAddGlobal("person", ref, build)
	require.NoError(t, err)
	assert.Equal(t, name, again)
	assert.Equal(t, 1, calls, "a known reference is not rebuilt")

	other, err := c.GetOrAddGlobal("person", nil, build)
	require.NoError(t, err)
	assert.Equal(t, "person_2", other)

	globals := c.Globals()
	require.Len(t, globals, 2)
	assert.Equal(t, 2, globals[0].Uses)
	assert.Equal(t, "(insert Person)", globals[0].Value)
	assert.True(t, c.IsDefined("person_1"))

	_, err = c.GetOrAddGlobal("person", new(int), func() (string, Args, error) {
		return "", nil, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.Len(t, c.Globals(), 2)
}

func TestMerge(t *testing.T) {
	a := Args{{Name: "p_1", Value: 1}}
	b := Args{{Name: "p_2", Value: "x"}}

	merged, err := Merge(a, nil, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"p_1", "p_2"}, merged.Names())
	assert.Equal(t, map[string]any{"p_1": 1, "p_2": "x"}, merged.Map())

	empty, err := Merge(nil, Args{})
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = Merge(a, Args{{Name: "p_1", Value: 2}})
	assert.ErrorIs(t, err, qerr.ErrArgumentCollision)
}
