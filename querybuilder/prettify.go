package querybuilder

import (
	"strings"
)

const indentWidth = 2

// Prettify breaks query text into lines after opening braces, parentheses
// and commas, and indents by nesting depth. Quoted strings are copied
// untouched and empty pairs like {} stay on one line.
func Prettify(text string) string {
	p := &prettifier{}
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '"', '\'':
			end := closingQuote(text, i)
			p.write(text[i:end])
			i = end - 1
		case '{', '(':
			if i+1 < len(text) && text[i+1] == closerOf(c) {
				p.write(text[i : i+2])
				i++
				continue
			}
			p.write(string(c))
			p.depth++
			p.newline()
		case '}', ')':
			p.newline()
			p.depth = max(0, p.depth-1)
			p.write(string(c))
			if next := nextNonSpace(text, i+1); next >= 0 && text[next] != ',' {
				p.newline()
			}
		case ',':
			p.write(",")
			p.newline()
		case ' ', '\n', '\t':
			if p.line.Len() > 0 {
				p.write(" ")
			}
		default:
			p.write(string(c))
		}
	}
	p.newline()
	return strings.Join(p.lines, "\n")
}

type prettifier struct {
	lines  []string
	line   strings.Builder
	indent int
	depth  int
}

func (p *prettifier) write(s string) {
	if p.line.Len() == 0 {
		p.indent = p.depth
	}
	p.line.WriteString(s)
}

func (p *prettifier) newline() {
	s := strings.TrimRight(p.line.String(), " ")
	p.line.Reset()
	if s == "" {
		return
	}
	p.lines = append(p.lines, strings.Repeat(" ", p.indent*indentWidth)+s)
}

func closerOf(c byte) byte {
	if c == '{' {
		return '}'
	}
	return ')'
}

// closingQuote returns the index just past the quote closing the string
// that opens at start, honoring backslash escapes.
func closingQuote(text string, start int) int {
	q := text[start]
	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case q:
			return i + 1
		}
	}
	return len(text)
}

func nextNonSpace(text string, from int) int {
	for i := from; i < len(text); i++ {
		if text[i] != ' ' {
			return i
		}
	}
	return -1
}
