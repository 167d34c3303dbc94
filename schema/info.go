package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
)

// Cardinality is the real cardinality of a pointer.
type Cardinality string

const (
	CardinalityOne        Cardinality = "One"
	CardinalityAtMostOne  Cardinality = "AtMostOne"
	CardinalityAtLeastOne Cardinality = "AtLeastOne"
	CardinalityMany       Cardinality = "Many"
)

// Valid reports whether c is a known cardinality. The empty value is
// treated as One.
func (c Cardinality) Valid() bool {
	switch c {
	case "", CardinalityOne, CardinalityAtMostOne, CardinalityAtLeastOne, CardinalityMany:
		return true
	}
	return false
}

// IsMulti reports whether the pointer may hold more than one value.
func (c Cardinality) IsMulti() bool {
	return c == CardinalityAtLeastOne || c == CardinalityMany
}

// Property is a property or link of an object type.
type Property struct {
	Name        string      `yaml:"name" json:"name"`
	Cardinality Cardinality `yaml:"cardinality,omitempty" json:"cardinality,omitempty"`
	TargetID    *uuid.UUID  `yaml:"target_id,omitempty" json:"target_id,omitempty"`
	IsLink      bool        `yaml:"is_link,omitempty" json:"is_link,omitempty"`
	Required    bool        `yaml:"required,omitempty" json:"required,omitempty"`
	IsExclusive bool        `yaml:"is_exclusive,omitempty" json:"is_exclusive,omitempty"`
	IsComputed  bool        `yaml:"is_computed,omitempty" json:"is_computed,omitempty"`
	IsReadonly  bool        `yaml:"is_readonly,omitempty" json:"is_readonly,omitempty"`
	HasDefault  bool        `yaml:"has_default,omitempty" json:"has_default,omitempty"`
}

// Constraint is an object-level constraint.
type Constraint struct {
	IsExclusive       bool   `yaml:"is_exclusive,omitempty" json:"is_exclusive,omitempty"`
	SubjectExpression string `yaml:"subject_expression" json:"subject_expression"`
}

// ObjectType is one introspected object type.
type ObjectType struct {
	ID          uuid.UUID    `yaml:"id,omitempty" json:"id,omitempty"`
	Name        string       `yaml:"name" json:"name"`
	Properties  []Property   `yaml:"properties" json:"properties"`
	Constraints []Constraint `yaml:"constraints,omitempty" json:"constraints,omitempty"`
}

// CleanedName returns the type name without its module prefix.
func (o *ObjectType) CleanedName() string {
	if i := strings.LastIndex(o.Name, "::"); i >= 0 {
		return o.Name[i+2:]
	}
	return o.Name
}

// Property finds a property by name.
func (o *ObjectType) Property(name string) (*Property, bool) {
	for i := range o.Properties {
		if o.Properties[i].Name == name {
			return &o.Properties[i], true
		}
	}
	return nil, false
}

// Info is the introspected schema.
type Info struct {
	Types []ObjectType `yaml:"types" json:"types"`
}

// Lookup finds a type by full or cleaned name.
func (i *Info) Lookup(name string) (*ObjectType, bool) {
	if i == nil {
		return nil, false
	}
	for idx := range i.Types {
		t := &i.Types[idx]
		if t.Name == name || t.CleanedName() == name {
			return t, true
		}
	}
	return nil, false
}

// LookupType finds the object type matching a Go type's EdgeDB name.
func (i *Info) LookupType(t reflect.Type) (*ObjectType, bool) {
	return i.Lookup(TypeName(t))
}

// Validate checks the schema for duplicate or malformed entries.
func (i *Info) Validate() error {
	seen := make(map[string]bool, len(i.Types))
	for _, t := range i.Types {
		if t.Name == "" {
			return fmt.Errorf("object type with empty name")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate object type %q", t.Name)
		}
		seen[t.Name] = true

		props := make(map[string]bool, len(t.Properties))
		for _, p := range t.Properties {
			if p.Name == "" {
				return fmt.Errorf("type %s: property with empty name", t.Name)
			}
			if props[p.Name] {
				return fmt.Errorf("type %s: duplicate property %q", t.Name, p.Name)
			}
			props[p.Name] = true
			if !p.Cardinality.Valid() {
				return fmt.Errorf("type %s: property %s: invalid cardinality %q", t.Name, p.Name, p.Cardinality)
			}
		}
	}
	return nil
}
