// Package qwriter assembles query text.
//
// A Writer is an append buffer with two extras. Labels mark named spans
// of the text as they are written so a later pass can find or replace
// them. Introspection chunks are placeholders whose text depends on the
// database schema and is only produced by Compile.
//
// Text can be inserted anywhere through a Positional writer; labels and
// chunks after the insertion point move with the text.
package qwriter

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/eqb/qerr"
	"github.com/roach88/eqb/schema"
)

// MarkerType categorizes a labelled span.
type MarkerType int

const (
	MarkerGlobal MarkerType = iota
	MarkerVariable
	MarkerShape
	MarkerFunction
	MarkerStatement
)

func (t MarkerType) String() string {
	switch t {
	case MarkerGlobal:
		return "global"
	case MarkerVariable:
		return "variable"
	case MarkerShape:
		return "shape"
	case MarkerFunction:
		return "function"
	case MarkerStatement:
		return "statement"
	}
	return fmt.Sprintf("MarkerType(%d)", int(t))
}

// Marker is a labelled span of a writer's text.
type Marker struct {
	Type     MarkerType
	Name     string
	Position int
	Size     int
}

// Resolver produces the text of an introspection chunk.
type Resolver func(info *schema.Info, w *Writer) error

type chunk struct {
	position int
	resolve  Resolver
}

// Writer builds query text.
type Writer struct {
	buf    []byte
	labels map[string][]*Marker
	order  []string
	chunks []chunk
}

// New returns an empty writer.
func New() *Writer {
	return &Writer{labels: make(map[string][]*Marker)}
}

// Len is the length of the text written so far.
func (w *Writer) Len() int { return len(w.buf) }

// String returns the text without resolving introspection chunks.
func (w *Writer) String() string { return string(w.buf) }

// Append writes strings at the end.
func (w *Writer) Append(parts ...string) *Writer {
	for _, p := range parts {
		w.buf = append(w.buf, p...)
	}
	return w
}

// AppendIf writes s when cond holds.
func (w *Writer) AppendIf(cond bool, s string) *Writer {
	if cond {
		w.Append(s)
	}
	return w
}

// Label writes through fn and records the written span under name.
func (w *Writer) Label(t MarkerType, name string, fn func(w *Writer)) *Writer {
	start := len(w.buf)
	fn(w)
	if _, ok := w.labels[name]; !ok {
		w.order = append(w.order, name)
	}
	w.labels[name] = append(w.labels[name], &Marker{Type: t, Name: name, Position: start, Size: len(w.buf) - start})
	return w
}

// LabelText writes text and labels it.
func (w *Writer) LabelText(t MarkerType, name, text string) *Writer {
	return w.Label(t, name, func(w *Writer) { w.Append(text) })
}

// Labeled returns the markers recorded under name.
func (w *Writer) Labeled(name string) ([]*Marker, bool) {
	m, ok := w.labels[name]
	return m, ok
}

// Markers returns every marker of type t in label order.
func (w *Writer) Markers(t MarkerType) []*Marker {
	var out []*Marker
	for _, name := range w.order {
		for _, m := range w.labels[name] {
			if m.Type == t {
				out = append(out, m)
			}
		}
	}
	return out
}

// Text returns the current text of a marker.
func (w *Writer) Text(m *Marker) string {
	return string(w.buf[m.Position : m.Position+m.Size])
}

// Replace substitutes the marker's span with text. Enclosing markers grow
// or shrink with it.
func (w *Writer) Replace(m *Marker, text string) {
	start, end := m.Position, m.Position+m.Size
	w.buf = slices.Replace(w.buf, start, end, []byte(text)...)
	delta := len(text) - m.Size
	m.Size = len(text)
	if delta == 0 {
		return
	}
	for _, list := range w.labels {
		for _, o := range list {
			switch {
			case o == m:
			case o.Position >= end:
				o.Position += delta
			case o.Position <= start && end <= o.Position+o.Size:
				o.Size += delta
			}
		}
	}
	for i := range w.chunks {
		if w.chunks[i].position >= end {
			w.chunks[i].position += delta
		}
	}
}

// Insert writes s at index, moving labels and chunks behind it.
func (w *Writer) Insert(index int, s string) *Writer {
	if s == "" {
		return w
	}
	w.buf = slices.Insert(w.buf, index, []byte(s)...)
	w.shift(index, len(s))
	return w
}

// Remove deletes count bytes starting at start.
func (w *Writer) Remove(start, count int) *Writer {
	if count <= 0 {
		return w
	}
	w.buf = slices.Delete(w.buf, start, start+count)
	w.shift(start, -count)
	return w
}

func (w *Writer) shift(at, delta int) {
	for _, list := range w.labels {
		for _, m := range list {
			switch {
			case m.Position >= at && delta > 0:
				m.Position += delta
			case m.Position > at:
				m.Position = max(at, m.Position+delta)
			case at < m.Position+m.Size:
				m.Size = max(0, m.Size+delta)
			}
		}
	}
	for i := range w.chunks {
		if w.chunks[i].position >= at && (delta > 0 || w.chunks[i].position > at) {
			w.chunks[i].position = max(at, w.chunks[i].position+delta)
		}
	}
}

// IndexOf finds s in the text at or after from, or returns -1.
func (w *Writer) IndexOf(s string, from int) int {
	if from >= len(w.buf) {
		return -1
	}
	i := strings.Index(string(w.buf[from:]), s)
	if i < 0 {
		return -1
	}
	return from + i
}

// Positional returns a writer that inserts at index. Index -1 is the end.
func (w *Writer) Positional(index int) *Positional {
	if index < 0 {
		index = len(w.buf)
	}
	return &Positional{w: w, pos: index}
}

// Write appends another writer, carrying over its labels and chunks.
func (w *Writer) Write(other *Writer) *Writer {
	offset := len(w.buf)
	w.buf = append(w.buf, other.buf...)
	for _, name := range other.order {
		if _, ok := w.labels[name]; !ok {
			w.order = append(w.order, name)
		}
		for _, m := range other.labels[name] {
			cp := *m
			cp.Position += offset
			w.labels[name] = append(w.labels[name], &cp)
		}
	}
	for _, c := range other.chunks {
		w.chunks = append(w.chunks, chunk{position: c.position + offset, resolve: c.resolve})
	}
	return w
}

// AppendIntrospected defers text to Compile, where fn writes it with the
// schema at hand.
func (w *Writer) AppendIntrospected(fn Resolver) *Writer {
	w.chunks = append(w.chunks, chunk{position: len(w.buf), resolve: fn})
	return w
}

// RequiresIntrospection reports whether Compile needs schema info.
func (w *Writer) RequiresIntrospection() bool { return len(w.chunks) > 0 }

// Compile resolves introspection chunks and returns the final text. It
// fails with ErrIntrospectionRequired when chunks exist and info is nil.
// The chunks are consumed; compile a writer once.
func (w *Writer) Compile(info *schema.Info) (string, error) {
	if len(w.chunks) == 0 {
		return string(w.buf), nil
	}
	if info == nil {
		return "", qerr.New(qerr.CodeIntrospectionRequired, fmt.Sprintf("%d chunks", len(w.chunks)),
			"query needs schema introspection")
	}

	chunks := slices.Clone(w.chunks)
	slices.Reverse(chunks)
	w.chunks = nil
	// Later chunks first so earlier positions stay valid.
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].position > chunks[j].position })
	for _, c := range chunks {
		sub := New()
		if err := c.resolve(info, sub); err != nil {
			return "", fmt.Errorf("introspection chunk at %d: %w", c.position, err)
		}
		w.Insert(c.position, sub.String())
	}
	return string(w.buf), nil
}

// Positional inserts at a fixed point of its parent writer and advances
// past what it writes.
type Positional struct {
	w   *Writer
	pos int
}

// Append inserts strings at the current position.
func (p *Positional) Append(parts ...string) *Positional {
	for _, s := range parts {
		p.w.Insert(p.pos, s)
		p.pos += len(s)
	}
	return p
}

// Label inserts text at the current position and labels it.
func (p *Positional) Label(t MarkerType, name, text string) *Positional {
	start := p.pos
	p.Append(text)
	if _, ok := p.w.labels[name]; !ok {
		p.w.order = append(p.w.order, name)
	}
	p.w.labels[name] = append(p.w.labels[name], &Marker{Type: t, Name: name, Position: start, Size: len(text)})
	return p
}

// Position is the current insertion point.
func (p *Positional) Position() int { return p.pos }
