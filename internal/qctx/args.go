package qctx

import (
	"github.com/roach88/eqb/qerr"
)

// Arg is one named query argument.
type Arg struct {
	Name  string
	Value any
}

// Args is an ordered argument map.
type Args []Arg

// Merge concatenates argument lists. A name bound twice is an
// ErrArgumentCollision.
func Merge(lists ...Args) (Args, error) {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	if n == 0 {
		return nil, nil
	}

	out := make(Args, 0, n)
	seen := make(map[string]struct{}, n)
	for _, l := range lists {
		for _, a := range l {
			if _, dup := seen[a.Name]; dup {
				return nil, qerr.New(qerr.CodeArgumentCollision, a.Name, "argument bound twice")
			}
			seen[a.Name] = struct{}{}
			out = append(out, a)
		}
	}
	return out, nil
}

// Map converts the arguments to a name/value map.
func (a Args) Map() map[string]any {
	m := make(map[string]any, len(a))
	for _, arg := range a {
		m[arg.Name] = arg.Value
	}
	return m
}

// Names lists argument names in order.
func (a Args) Names() []string {
	names := make([]string, len(a))
	for i, arg := range a {
		names[i] = arg.Name
	}
	return names
}
