package schema

import (
	"reflect"
	"strings"
)

// ShapeOf lists the shape elements selecting every property of t. Links to
// other entity types expand into nested blocks until maxDepth is reached;
// past it a link only selects its id.
func ShapeOf(t reflect.Type, maxDepth int) []string {
	return shapeOf(Indirect(t), maxDepth, 0)
}

func shapeOf(t reflect.Type, maxDepth, depth int) []string {
	fields := Fields(t)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		target, isLink := LinkTarget(f.Type)
		if !isLink {
			out = append(out, f.Name)
			continue
		}
		if depth+1 >= maxDepth {
			out = append(out, f.Name+": { id }")
			continue
		}
		out = append(out, Block(f.Name, shapeOf(target, maxDepth, depth+1)))
	}
	return out
}

// Block renders `name: { a, b }`.
func Block(name string, elems []string) string {
	return name + ": { " + strings.Join(elems, ", ") + " }"
}

// LinkTarget reports the entity type a field links to, through pointers
// and slices.
func LinkTarget(t reflect.Type) (reflect.Type, bool) {
	if elem, ok := EntityElem(t); ok {
		return elem, true
	}
	if IsEntity(t) {
		return Indirect(t), true
	}
	return nil, false
}
