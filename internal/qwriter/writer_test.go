package qwriter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eqb/qerr"
	"github.com/roach88/eqb/schema"
)

func TestWriter_AppendAndHelpers(t *testing.T) {
	w := New()
	w.Append("insert Person ").
		Shape("payload", "full_name := ", "", "age := 3").
		Append(" ").
		QueryArgument("str", "p_1").
		Append(" ").
		Parens("select 1").
		AppendIf(false, "never").
		Append(" ").
		SingleQuoted("x")

	assert.Equal(t, "insert Person { full_name := , age := 3 } <str>$p_1 (select 1) 'x'", w.String())

	markers, ok := w.Labeled("payload")
	require.True(t, ok)
	require.Len(t, markers, 1)
	assert.Equal(t, "{ full_name := , age := 3 }", w.Text(markers[0]))
	assert.Equal(t, MarkerShape, markers[0].Type)
}

func TestWriter_PositionalMovesLabels(t *testing.T) {
	w := New()
	w.Append("select ").LabelText(MarkerVariable, "v", "user_1").Append(" filter true")

	p := w.Positional(0)
	p.Append("with ").Label(MarkerGlobal, "g", "user_1 := (select User)").Append(" ")

	assert.Equal(t, "with user_1 := (select User) select user_1 filter true", w.String())

	v, _ := w.Labeled("v")
	assert.Equal(t, "user_1", w.Text(v[0]))
	g, _ := w.Labeled("g")
	assert.Equal(t, "user_1 := (select User)", w.Text(g[0]))
	assert.Equal(t, []*Marker{g[0]}, w.Markers(MarkerGlobal))
}

func TestWriter_InsertGrowsEnclosingLabel(t *testing.T) {
	w := New()
	w.LabelText(MarkerStatement, "stmt", "select Person")
	w.Insert(6, " detached")

	m, _ := w.Labeled("stmt")
	assert.Equal(t, "select detached Person", w.Text(m[0]))
}

func TestWriter_Replace(t *testing.T) {
	w := New()
	w.Append("(").
		Label(MarkerStatement, "outer", func(w *Writer) {
			w.Append("select ").LabelText(MarkerShape, "shape", "{ id }")
		}).
		Append(") ").
		LabelText(MarkerFunction, "tail", "count()")

	shape, _ := w.Labeled("shape")
	w.Replace(shape[0], "{ id, full_name }")

	assert.Equal(t, "(select { id, full_name }) count()", w.String())
	outer, _ := w.Labeled("outer")
	assert.Equal(t, "select { id, full_name }", w.Text(outer[0]))
	tail, _ := w.Labeled("tail")
	assert.Equal(t, "count()", w.Text(tail[0]))
}

func TestWriter_Remove(t *testing.T) {
	w := New()
	w.Append("select Person ").LabelText(MarkerFunction, "f", "limit 1")
	w.Remove(0, len("select "))

	assert.Equal(t, "Person limit 1", w.String())
	f, _ := w.Labeled("f")
	assert.Equal(t, "limit 1", w.Text(f[0]))
	assert.Equal(t, 7, w.IndexOf("limit", 0))
	assert.Equal(t, -1, w.IndexOf("offset", 0))
}

func TestWriter_WriteCarriesLabelsAndChunks(t *testing.T) {
	inner := New()
	inner.LabelText(MarkerVariable, "x", "x").AppendIntrospected(func(_ *schema.Info, w *Writer) error {
		w.Append("!")
		return nil
	})

	w := New()
	w.Append("ab ").Write(inner)

	m, _ := w.Labeled("x")
	assert.Equal(t, 3, m[0].Position)
	require.True(t, w.RequiresIntrospection())

	got, err := w.Compile(&schema.Info{})
	require.NoError(t, err)
	assert.Equal(t, "ab x!", got)
}

func TestWriter_Compile(t *testing.T) {
	t.Run("no chunks needs no schema", func(t *testing.T) {
		w := New().Append("select 1")
		got, err := w.Compile(nil)
		require.NoError(t, err)
		assert.Equal(t, "select 1", got)
	})

	t.Run("chunks need a schema", func(t *testing.T) {
		w := New().Append("insert A {} ").AppendIntrospected(func(*schema.Info, *Writer) error { return nil })
		_, err := w.Compile(nil)
		assert.ErrorIs(t, err, qerr.ErrIntrospectionRequired)
	})

	t.Run("chunks resolve in place and in order", func(t *testing.T) {
		w := New()
		w.Append("a ")
		w.AppendIntrospected(func(_ *schema.Info, w *Writer) error { w.Append("1"); return nil })
		w.AppendIntrospected(func(_ *schema.Info, w *Writer) error { w.Append("2"); return nil })
		w.Append(" b ")
		w.AppendIntrospected(func(_ *schema.Info, w *Writer) error { w.Append("3"); return nil })

		got, err := w.Compile(&schema.Info{})
		require.NoError(t, err)
		assert.Equal(t, "a 12 b 3", got)
		assert.False(t, w.RequiresIntrospection())
	})

	t.Run("resolver error is wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		w := New().AppendIntrospected(func(*schema.Info, *Writer) error { return boom })
		_, err := w.Compile(&schema.Info{})
		assert.ErrorIs(t, err, boom)
	})
}

func TestMarkerType_String(t *testing.T) {
	assert.Equal(t, "global", MarkerGlobal.String())
	assert.Equal(t, "MarkerType(42)", MarkerType(42).String())
}
