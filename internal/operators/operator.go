// Package operators is the operator registry: a hand-maintained table that
// maps expression node kinds and "{declaring}.{method}" keys to EdgeQL
// templates.
//
// Template placeholders:
//
//	{0}        the first argument
//	{2?}       the third argument if supplied; a missing optional argument
//	           also drops a directly preceding ", "
//	{ | :2+}   every argument from the third on, each preceded by " | "
//	{, :0+}    every argument, joined with ", "
//
// Templates are parsed once when the registry is built.
package operators

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Operator builds one EdgeQL fragment from converted argument fragments.
type Operator struct {
	// Template is the EdgeQL text with argument placeholders.
	Template string
	// Return is the Go type the fragment evaluates to, if known.
	Return reflect.Type
	// SuppressSetOperand drops the `:=` marker of the enclosing binding.
	SuppressSetOperand bool
	// TracksVariable registers the fragment as a query variable reference.
	TracksVariable bool
	// TypeParams maps argument positions to generic type argument indexes.
	// The compiler inserts the type's EdgeQL name at each position.
	TypeParams map[int]int

	segments []segment
}

type segmentKind int

const (
	segLiteral segmentKind = iota
	segArg
	segOptional
	segSplice
)

type segment struct {
	kind  segmentKind
	text  string
	index int
}

// Build renders the template with args.
func (o Operator) Build(args ...string) (string, error) {
	segs := o.segments
	if segs == nil {
		var err error
		if segs, err = parseTemplate(o.Template); err != nil {
			return "", err
		}
	}

	var sb strings.Builder
	for _, s := range segs {
		switch s.kind {
		case segLiteral:
			sb.WriteString(s.text)
		case segArg:
			if s.index >= len(args) {
				return "", fmt.Errorf("template %q: missing argument %d (have %d)", o.Template, s.index, len(args))
			}
			sb.WriteString(args[s.index])
		case segOptional:
			if s.index < len(args) {
				sb.WriteString(args[s.index])
				continue
			}
			if out := sb.String(); strings.HasSuffix(out, ", ") {
				sb.Reset()
				sb.WriteString(strings.TrimSuffix(out, ", "))
			}
		case segSplice:
			if s.index >= len(args) {
				continue
			}
			rest := args[s.index:]
			if s.index > 0 {
				sb.WriteString(s.text)
			}
			sb.WriteString(strings.Join(rest, s.text))
		}
	}
	return sb.String(), nil
}

// Arity is the number of required arguments.
func (o Operator) Arity() int {
	n := 0
	for _, s := range o.segments {
		if s.kind == segArg && s.index+1 > n {
			n = s.index + 1
		}
	}
	return n
}

func parseTemplate(tmpl string) ([]segment, error) {
	var segs []segment
	rest := tmpl
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			segs = append(segs, segment{kind: segLiteral, text: rest})
			break
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return nil, fmt.Errorf("template %q: unterminated placeholder", tmpl)
		}
		closing += open

		if open > 0 {
			segs = append(segs, segment{kind: segLiteral, text: rest[:open]})
		}
		seg, err := parsePlaceholder(rest[open+1 : closing])
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", tmpl, err)
		}
		segs = append(segs, seg)
		rest = rest[closing+1:]
	}
	return segs, nil
}

func parsePlaceholder(body string) (segment, error) {
	if n, err := strconv.Atoi(body); err == nil {
		return segment{kind: segArg, index: n}, nil
	}
	if num, ok := strings.CutSuffix(body, "?"); ok {
		n, err := strconv.Atoi(num)
		if err != nil {
			return segment{}, fmt.Errorf("bad optional placeholder {%s}", body)
		}
		return segment{kind: segOptional, index: n}, nil
	}
	if slot, ok := strings.CutSuffix(body, "+"); ok {
		colon := strings.LastIndexByte(slot, ':')
		if colon < 0 {
			return segment{}, fmt.Errorf("bad splice placeholder {%s}", body)
		}
		n, err := strconv.Atoi(slot[colon+1:])
		if err != nil {
			return segment{}, fmt.Errorf("bad splice placeholder {%s}", body)
		}
		return segment{kind: segSplice, text: slot[:colon], index: n}, nil
	}
	return segment{}, fmt.Errorf("unknown placeholder {%s}", body)
}

func mustParse(o Operator) Operator {
	segs, err := parseTemplate(o.Template)
	if err != nil {
		panic(err)
	}
	o.segments = segs
	return o
}
