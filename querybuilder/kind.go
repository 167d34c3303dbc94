package querybuilder

import (
	"fmt"
	"strings"

	"github.com/roach88/eqb/qerr"
)

// Kind identifies a query node.
type Kind int

const (
	KindStart Kind = iota
	KindSelect
	KindInsert
	KindUpdate
	KindDelete
	KindWith
	KindFor
	KindFilter
	KindOrderBy
	KindOffset
	KindLimit
	KindSet
	KindTransaction
	KindUnion
	KindUnlessConflictOn
	KindElse
	KindVariable
	KindCommit
	KindRollback
	KindGroup
	KindUsing
	KindBy
)

var kindNames = [...]string{
	KindStart:            "Start",
	KindSelect:           "Select",
	KindInsert:           "Insert",
	KindUpdate:           "Update",
	KindDelete:           "Delete",
	KindWith:             "With",
	KindFor:              "For",
	KindFilter:           "Filter",
	KindOrderBy:          "OrderBy",
	KindOffset:           "Offset",
	KindLimit:            "Limit",
	KindSet:              "Set",
	KindTransaction:      "Transaction",
	KindUnion:            "Union",
	KindUnlessConflictOn: "UnlessConflictOn",
	KindElse:             "Else",
	KindVariable:         "Variable",
	KindCommit:           "Commit",
	KindRollback:         "Rollback",
	KindGroup:            "Group",
	KindUsing:            "Using",
	KindBy:               "By",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// transitions maps a node kind to the states it may be entered from.
// Kinds missing from the table may be entered from any state.
var transitions = map[Kind][]Kind{
	KindWith:             {KindWith, KindStart},
	KindSelect:           {KindElse, KindWith, KindStart},
	KindFor:              {KindElse, KindWith, KindStart},
	KindInsert:           {KindElse, KindWith, KindStart},
	KindUpdate:           {KindElse, KindWith, KindStart},
	KindDelete:           {KindElse, KindWith, KindStart},
	KindGroup:            {KindWith, KindStart},
	KindUsing:            {KindGroup, KindUsing},
	KindBy:               {KindGroup, KindUsing},
	KindOrderBy:          {KindDelete, KindFilter, KindSelect},
	KindOffset:           {KindDelete, KindOrderBy, KindSelect, KindFilter},
	KindLimit:            {KindDelete, KindOrderBy, KindSelect, KindFilter, KindOffset},
	KindTransaction:      {KindStart},
	KindFilter:           {KindSelect, KindUpdate, KindDelete, KindFilter},
	KindUnlessConflictOn: {KindInsert},
	KindElse:             {KindUnlessConflictOn},
	KindCommit:           {KindStart},
	KindRollback:         {KindStart},
	KindUnion:            {KindSelect, KindFilter, KindOrderBy, KindOffset, KindLimit},
}

// thenByStates are the states an ordering continuation may follow.
var thenByStates = []Kind{KindOrderBy}

// rootForbids lists the clauses a statement kind never takes, whatever
// state the builder is in.
var rootForbids = map[Kind][]Kind{
	KindUpdate: {KindOrderBy, KindOffset, KindLimit},
}

// StateError reports a fluent call that is illegal in the current state.
type StateError struct {
	// Attempted is the kind the call would have entered.
	Attempted Kind
	// Current is the state the builder was in.
	Current Kind
	// Legal lists the states Attempted may follow.
	Legal []Kind
	// Root is set when the enclosing statement forbids Attempted.
	Root Kind
}

func (e *StateError) Error() string {
	if e.Root != KindStart {
		return fmt.Sprintf("illegal transition %s -> %s (not allowed in %s statement)",
			e.Current, e.Attempted, e.Root)
	}
	names := make([]string, len(e.Legal))
	for i, k := range e.Legal {
		names[i] = k.String()
	}
	return fmt.Sprintf("illegal transition %s -> %s (expected one of %s)",
		e.Current, e.Attempted, strings.Join(names, ", "))
}

// Is matches qerr.ErrIllegalTransition.
func (e *StateError) Is(target error) bool {
	return target == qerr.ErrIllegalTransition
}
