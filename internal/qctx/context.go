// Package qctx holds the builder context threaded through every conversion
// and build call.
//
// A Context is a value snapshot. Enter produces a clone with overrides; the
// clone inherits every flag by value and shares one sink with the whole
// build tree. The sink is the only shared mutable state: tracked variables,
// tracked sub-queries, globals and the argument counter all live there, so
// whatever a nested conversion records is visible at the root.
//
// A Context tree belongs to one Build call. Building the same builder
// concurrently from two goroutines would share a sink and is unsupported.
package qctx

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/google/uuid"

	"github.com/roach88/eqb/schema"
)

// Defaults for a fresh context.
const (
	DefaultMaxAggregationDepth = 10
)

// Buildable is implemented by query builders that can be embedded as a
// sub-query.
type Buildable interface {
	// BuildSub builds the statement inside ctx, sharing its sink.
	BuildSub(ctx *Context) (string, Args, error)
	// ElementType is the builder's declared result type.
	ElementType() reflect.Type
}

// Tracker resolves the database id of an entity returned by an earlier
// query.
type Tracker interface {
	Lookup(obj *schema.Object) (uuid.UUID, bool)
}

// Context is the configuration snapshot for one conversion.
type Context struct {
	// DontSelectProperties suppresses property selection in select shapes.
	DontSelectProperties bool
	// UseDetached renders selects as detached.
	UseDetached bool
	// IntrospectObjectIDs selects id in every shape so results can be
	// tracked.
	IntrospectObjectIDs bool
	// IncludeEmptySets renders nil payload values as {} rather than
	// omitting them.
	IncludeEmptySets bool
	// AllowComputedValues permits computed shape elements.
	AllowComputedValues bool
	// MaxAggregationDepth bounds nested shape expansion.
	MaxAggregationDepth int
	// LimitToOne marks a binding site that expects a single value.
	LimitToOne bool
	// ExplicitShapeDefinition marks a sub-query built for a shape element.
	ExplicitShapeDefinition bool
	// IsVariable marks a value that is itself a variable reference.
	IsVariable bool
	// VariableName is the name bound when IsVariable is set.
	VariableName string
	// SelectorType is the element type of the enclosing statement.
	SelectorType reflect.Type

	Schema  *schema.Info
	Logger  *slog.Logger
	Tracker Tracker

	parent *Context
	sink   *sink
}

// Global is a with-bound variable.
type Global struct {
	Name  string
	Value string
	Args  Args
	// Reference is the source object, used to dedupe repeated references.
	Reference any
	// Uses counts how many fragments reference the global.
	Uses int
}

type sink struct {
	variables  []string
	subQueries []Buildable
	defined    map[string]bool
	globals    []*Global
	argSeq     int
	globalSeq  int
}

// Option configures a root context.
type Option func(*Context)

// WithSchema supplies introspected schema info.
func WithSchema(info *schema.Info) Option {
	return func(c *Context) { c.Schema = info }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) { c.Logger = l }
}

// WithTracker sets the entity tracker.
func WithTracker(t Tracker) Option {
	return func(c *Context) { c.Tracker = t }
}

// WithIncludeEmptySets controls rendering of nil payload values.
func WithIncludeEmptySets(v bool) Option {
	return func(c *Context) { c.IncludeEmptySets = v }
}

// WithAllowComputedValues controls computed shape elements.
func WithAllowComputedValues(v bool) Option {
	return func(c *Context) { c.AllowComputedValues = v }
}

// WithMaxAggregationDepth bounds nested shape expansion.
func WithMaxAggregationDepth(n int) Option {
	return func(c *Context) { c.MaxAggregationDepth = n }
}

// WithDetached renders selects as detached.
func WithDetached(v bool) Option {
	return func(c *Context) { c.UseDetached = v }
}

// WithDontSelectProperties renders selects without a shape.
func WithDontSelectProperties(v bool) Option {
	return func(c *Context) { c.DontSelectProperties = v }
}

// WithIntrospectObjectIDs selects id in every shape.
func WithIntrospectObjectIDs(v bool) Option {
	return func(c *Context) { c.IntrospectObjectIDs = v }
}

// New creates a root context.
func New(opts ...Option) *Context {
	c := &Context{
		IncludeEmptySets:    true,
		AllowComputedValues: true,
		MaxAggregationDepth: DefaultMaxAggregationDepth,
		sink:                &sink{defined: make(map[string]bool)},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Enter returns a child snapshot. The child inherits every flag and shares
// the sink; modify may override flags on the child only. LimitToOne and
// ExplicitShapeDefinition describe one binding site and are not inherited.
func (c *Context) Enter(modify func(*Context)) *Context {
	child := *c
	child.parent = c
	child.LimitToOne = false
	child.ExplicitShapeDefinition = false
	if modify != nil {
		modify(&child)
	}
	return &child
}

// Parent returns the context this one was entered from.
func (c *Context) Parent() *Context { return c.parent }

// Depth counts the ancestors of c.
func (c *Context) Depth() int {
	d := 0
	for p := c.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// AddTrackedVariable records a variable reference at the root.
func (c *Context) AddTrackedVariable(text string) {
	c.sink.variables = append(c.sink.variables, text)
}

// TrackedVariables returns every variable recorded in this build tree.
func (c *Context) TrackedVariables() []string {
	return c.sink.variables
}

// AddTrackedSubQuery records an embedded builder at the root.
func (c *Context) AddTrackedSubQuery(b Buildable) {
	c.sink.subQueries = append(c.sink.subQueries, b)
}

// TrackedSubQueries returns every embedded builder recorded in this build
// tree.
func (c *Context) TrackedSubQueries() []Buildable {
	return c.sink.subQueries
}

// DefineVariable marks name as bound by a with, for or global.
func (c *Context) DefineVariable(name string) {
	c.sink.defined[name] = true
}

// IsDefined reports whether name has been bound.
func (c *Context) IsDefined(name string) bool {
	return c.sink.defined[name]
}

// NextArgName returns a fresh argument name, unique within the build.
func (c *Context) NextArgName() string {
	c.sink.argSeq++
	return fmt.Sprintf("p_%d", c.sink.argSeq)
}

// Globals returns the globals registered in this build tree.
func (c *Context) Globals() []*Global {
	return c.sink.globals
}

// GetOrAddGlobal returns the name of the global bound to ref, creating it
// with build when ref has not been seen. A nil ref always creates a new
// global.
func (c *Context) GetOrAddGlobal(hint string, ref any, build func() (string, Args, error)) (string, error) {
	if ref != nil {
		for _, g := range c.sink.globals {
			if g.Reference == ref {
				g.Uses++
				return g.Name, nil
			}
		}
	}

	value, args, err := build()
	if err != nil {
		return "", err
	}

	c.sink.globalSeq++
	g := &Global{
		Name:      fmt.Sprintf("%s_%d", hint, c.sink.globalSeq),
		Value:     value,
		Args:      args,
		Reference: ref,
		Uses:      1,
	}
	c.sink.globals = append(c.sink.globals, g)
	c.DefineVariable(g.Name)
	c.Log().Debug("global registered", "name", g.Name, "value", value)
	return g.Name, nil
}

// Log returns the context logger.
func (c *Context) Log() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
