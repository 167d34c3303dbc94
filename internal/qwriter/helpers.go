package qwriter

import "strings"

// Assignment writes `name := value`.
func (w *Writer) Assignment(name, value string) *Writer {
	return w.Append(name, " := ", value)
}

// TypeCast writes `<tag>`.
func (w *Writer) TypeCast(tag string) *Writer {
	return w.Append("<", tag, ">")
}

// QueryArgument writes a typed parameter reference, `<tag>$name`.
func (w *Writer) QueryArgument(tag, name string) *Writer {
	return w.TypeCast(tag).Append("$", name)
}

// Wrapped writes value between left and right.
func (w *Writer) Wrapped(value, left, right string) *Writer {
	return w.Append(left, value, right)
}

// Parens writes `(value)`.
func (w *Writer) Parens(value string) *Writer {
	return w.Wrapped(value, "(", ")")
}

// SingleQuoted writes value between single quotes.
func (w *Writer) SingleQuoted(value string) *Writer {
	return w.Wrapped(value, "'", "'")
}

// Shape writes `{ a, b }` and labels it. Empty elements are skipped.
func (w *Writer) Shape(name string, elems ...string) *Writer {
	return w.Label(MarkerShape, name, func(w *Writer) {
		w.Append("{ ", strings.Join(nonEmpty(elems), ", "), " }")
	})
}

// Join writes parts separated by sep, skipping empty ones.
func (w *Writer) Join(sep string, parts ...string) *Writer {
	return w.Append(strings.Join(nonEmpty(parts), sep))
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
