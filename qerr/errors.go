// Package qerr defines the error taxonomy shared by the query builder,
// the expression compiler and the schema contracts.
//
// Every condition here is a usage error. Nothing in eqb recovers from them;
// they are returned to the caller at the point the query is assembled.
package qerr

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to test for a category.
var (
	// ErrIllegalTransition is returned when a fluent call would enter a node
	// kind that may not follow the current one.
	ErrIllegalTransition = errors.New("illegal query node transition")

	// ErrOperatorNotFound is returned when no operator is registered for a
	// binary/unary kind or a method key.
	ErrOperatorNotFound = errors.New("operator not found")

	// ErrUnmappedScalar is returned when a Go type has no EdgeQL scalar tag.
	ErrUnmappedScalar = errors.New("no edgeql scalar type for go type")

	// ErrMalformedShape is returned when a shape selector is not a member
	// access, a boolean toggle or a Select call.
	ErrMalformedShape = errors.New("malformed shape expression")

	// ErrReferenceExtraction is returned when an update-by-reference value is
	// neither a tracked query result nor a sub-query.
	ErrReferenceExtraction = errors.New("cannot extract reference")

	// ErrUnhandledExpression is returned for expression nodes the compiler has
	// no case for.
	ErrUnhandledExpression = errors.New("unhandled expression")

	// ErrUnknownEnumPolicy is returned for an enum serialization policy the
	// compiler does not know.
	ErrUnknownEnumPolicy = errors.New("unknown enum serialization policy")

	// ErrArgumentCollision is returned when two fragments bind the same
	// argument name.
	ErrArgumentCollision = errors.New("argument name collision")

	// ErrIntrospectionRequired is returned when a query needs schema info
	// that was not supplied.
	ErrIntrospectionRequired = errors.New("schema introspection required")

	// ErrNoExclusiveConstraint is returned when a conflict clause cannot be
	// derived from the schema.
	ErrNoExclusiveConstraint = errors.New("no exclusive constraint")

	// ErrUnknownField is returned when an expression names a struct field
	// that does not exist.
	ErrUnknownField = errors.New("unknown field")

	// ErrUndefinedVariable is returned when a tracked variable is never bound
	// by a with, for or global.
	ErrUndefinedVariable = errors.New("undefined query variable")
)

// Code identifies the error category in a stable, printable form.
type Code string

const (
	CodeIllegalTransition     Code = "ILLEGAL_TRANSITION"
	CodeOperatorNotFound      Code = "OPERATOR_NOT_FOUND"
	CodeUnmappedScalar        Code = "UNMAPPED_SCALAR"
	CodeMalformedShape        Code = "MALFORMED_SHAPE"
	CodeReferenceExtraction   Code = "REFERENCE_EXTRACTION"
	CodeUnhandledExpression   Code = "UNHANDLED_EXPRESSION"
	CodeUnknownEnumPolicy     Code = "UNKNOWN_ENUM_POLICY"
	CodeArgumentCollision     Code = "ARGUMENT_COLLISION"
	CodeIntrospectionRequired Code = "INTROSPECTION_REQUIRED"
	CodeNoExclusiveConstraint Code = "NO_EXCLUSIVE_CONSTRAINT"
	CodeUnknownField          Code = "UNKNOWN_FIELD"
	CodeUndefinedVariable     Code = "UNDEFINED_VARIABLE"
)

var sentinels = map[Code]error{
	CodeIllegalTransition:     ErrIllegalTransition,
	CodeOperatorNotFound:      ErrOperatorNotFound,
	CodeUnmappedScalar:        ErrUnmappedScalar,
	CodeMalformedShape:        ErrMalformedShape,
	CodeReferenceExtraction:   ErrReferenceExtraction,
	CodeUnhandledExpression:   ErrUnhandledExpression,
	CodeUnknownEnumPolicy:     ErrUnknownEnumPolicy,
	CodeArgumentCollision:     ErrArgumentCollision,
	CodeIntrospectionRequired: ErrIntrospectionRequired,
	CodeNoExclusiveConstraint: ErrNoExclusiveConstraint,
	CodeUnknownField:          ErrUnknownField,
	CodeUndefinedVariable:     ErrUndefinedVariable,
}

// Error carries a category code plus the identity of whatever failed
// (operator key, Go type, node kind).
type Error struct {
	// Code identifies the error category.
	Code Code

	// Subject names the offending operator, method, type or node.
	Subject string

	// Message is a human-readable description.
	Message string

	// Err is an optional underlying cause.
	Err error
}

// New creates an Error for code about subject.
func New(code Code, subject, format string, args ...any) *Error {
	return &Error{Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error for code that wraps cause.
func Wrap(code Code, subject string, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Subject: subject, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Subject != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Subject)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's code.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Code]
	return ok && s == target
}

// CodeOf returns the Code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code, true
	}
	return "", false
}
