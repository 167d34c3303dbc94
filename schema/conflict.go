package schema

import (
	"github.com/roach88/eqb/qerr"
)

// ConflictClause derives an `unless conflict` clause for inserts of t.
//
// An object-level exclusive constraint wins over a single exclusive
// property. Without either, a bare `unless conflict` is only valid when no
// else branch follows.
func ConflictClause(t *ObjectType, hasElse bool) (string, error) {
	for _, c := range t.Constraints {
		if c.IsExclusive {
			return "unless conflict on " + c.SubjectExpression, nil
		}
	}

	var exclusive []string
	for _, p := range t.Properties {
		if p.Name != "id" && p.IsExclusive {
			exclusive = append(exclusive, p.Name)
		}
	}
	if len(exclusive) == 1 {
		return "unless conflict on ." + exclusive[0], nil
	}

	if !hasElse {
		return "unless conflict", nil
	}

	return "", qerr.New(qerr.CodeNoExclusiveConstraint, t.Name,
		"cannot find a valid exclusive constraint")
}

// ExclusiveProperty returns the single non-id exclusive property of t.
func ExclusiveProperty(t *ObjectType) (string, bool) {
	name := ""
	for _, p := range t.Properties {
		if p.Name != "id" && p.IsExclusive {
			if name != "" {
				return "", false
			}
			name = p.Name
		}
	}
	return name, name != ""
}
