// Package shape turns projections into EdgeQL shapes: ordered lists of
// property names, computed `name := value` elements and nested
// `name: { ... }` blocks.
//
// Three inputs are accepted: a projection struct value (FromValue), an
// object literal over the subject (FromInit) and a list of property
// selectors (FromSelectors). Input order is preserved; selectors sharing a
// path prefix are merged into one nested block.
package shape

import (
	"reflect"
	"strings"

	"github.com/roach88/eqb/schema"
)

// element is one entry of a shape under construction.
type element struct {
	name string
	// text is rendered verbatim when set.
	text   string
	nested bool
	block  []*element
}

func (e *element) render() string {
	if e.text != "" {
		return e.text
	}
	if !e.nested {
		return e.name
	}
	return schema.Block(e.name, render(e.block))
}

func render(elems []*element) []string {
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = e.render()
	}
	return out
}

func raw(text string) *element { return &element{name: text, text: text} }

// insertPath adds the property path to elems. A non-nil leaf block makes
// the terminal property a nested block; blocks for the same property merge.
func insertPath(elems []*element, path []string, leaf []*element, leafNested bool) []*element {
	head := path[0]
	var found *element
	for _, e := range elems {
		if e.text == "" && e.name == head {
			found = e
			break
		}
	}

	if len(path) == 1 {
		if found == nil {
			return append(elems, &element{name: head, nested: leafNested, block: leaf})
		}
		if leafNested {
			found.nested = true
			for _, l := range leaf {
				found.block = mergeOne(found.block, l)
			}
		}
		return elems
	}

	if found == nil {
		found = &element{name: head}
		elems = append(elems, found)
	}
	found.nested = true
	found.block = insertPath(found.block, path[1:], leaf, leafNested)
	return elems
}

func mergeOne(elems []*element, l *element) []*element {
	if l.text != "" {
		for _, e := range elems {
			if e.text == l.text {
				return elems
			}
		}
		return append(elems, l)
	}
	return insertPath(elems, []string{l.name}, l.block, l.nested)
}

// expansion lists the elements selecting every property of an entity
// type, or nil when t is not a link.
func expansion(t reflect.Type, maxDepth int) ([]*element, bool) {
	target, ok := schema.LinkTarget(t)
	if !ok {
		return nil, false
	}
	if maxDepth <= 1 {
		return []*element{raw("id")}, true
	}
	props := schema.ShapeOf(target, maxDepth-1)
	out := make([]*element, len(props))
	for i, p := range props {
		out[i] = raw(p)
	}
	return out, true
}

func joinPath(path []string) string { return strings.Join(path, ".") }
