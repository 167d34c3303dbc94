package schema

import (
	"fmt"
	"io"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// LoadError is a schema file error, with a CUE position when one is known.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadYAML decodes a schema document:
//
//	types:
//	  - name: default::Person
//	    properties:
//	      - name: email
//	        is_exclusive: true
func LoadYAML(r io.Reader) (*Info, error) {
	var info Info
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&info); err != nil {
		if err == io.EOF {
			return &Info{}, nil
		}
		return nil, fmt.Errorf("decode schema yaml: %w", err)
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return &info, nil
}

// LoadCUE compiles a CUE schema document. Types are keyed by name and
// properties by property name:
//
//	types: "default::Person": {
//		properties: email: {exclusive: true, cardinality: "One"}
//		constraints: [{exclusive: true, subject: "(.first, .last)"}]
//	}
func LoadCUE(filename string, src []byte) (*Info, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return decodeCUE(v)
}

func decodeCUE(v cue.Value) (*Info, error) {
	info := &Info{}

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if !typesVal.Exists() {
		return info, nil
	}
	iter, err := typesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		t, err := decodeCUEType(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		info.Types = append(info.Types, t)
	}

	if err := info.Validate(); err != nil {
		return nil, err
	}
	return info, nil
}

func decodeCUEType(name string, v cue.Value) (ObjectType, error) {
	t := ObjectType{Name: name}

	if idVal := v.LookupPath(cue.ParsePath("id")); idVal.Exists() {
		s, err := idVal.String()
		if err != nil {
			return t, formatCUEError(err)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return t, &LoadError{Field: name + ".id", Message: err.Error(), Pos: idVal.Pos()}
		}
		t.ID = id
	}

	if propsVal := v.LookupPath(cue.ParsePath("properties")); propsVal.Exists() {
		iter, err := propsVal.Fields()
		if err != nil {
			return t, formatCUEError(err)
		}
		for iter.Next() {
			p, err := decodeCUEProperty(iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return t, err
			}
			t.Properties = append(t.Properties, p)
		}
	}

	if consVal := v.LookupPath(cue.ParsePath("constraints")); consVal.Exists() {
		list, err := consVal.List()
		if err != nil {
			return t, formatCUEError(err)
		}
		for list.Next() {
			c := list.Value()
			subject, err := stringField(c, "subject")
			if err != nil {
				return t, err
			}
			excl, err := boolField(c, "exclusive")
			if err != nil {
				return t, err
			}
			t.Constraints = append(t.Constraints, Constraint{IsExclusive: excl, SubjectExpression: subject})
		}
	}

	return t, nil
}

func decodeCUEProperty(name string, v cue.Value) (Property, error) {
	p := Property{Name: name}

	card, err := stringField(v, "cardinality")
	if err != nil {
		return p, err
	}
	p.Cardinality = Cardinality(card)
	if !p.Cardinality.Valid() {
		return p, &LoadError{Field: name + ".cardinality", Message: fmt.Sprintf("invalid cardinality %q", card), Pos: v.Pos()}
	}

	flags := []struct {
		label string
		dst   *bool
	}{
		{"link", &p.IsLink},
		{"required", &p.Required},
		{"exclusive", &p.IsExclusive},
		{"computed", &p.IsComputed},
		{"readonly", &p.IsReadonly},
		{"default", &p.HasDefault},
	}
	for _, f := range flags {
		b, err := boolField(v, f.label)
		if err != nil {
			return p, err
		}
		*f.dst = b
	}
	return p, nil
}

func stringField(v cue.Value, label string) (string, error) {
	f := v.LookupPath(cue.ParsePath(label))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func boolField(v cue.Value, label string) (bool, error) {
	f := v.LookupPath(cue.ParsePath(label))
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	var pos token.Pos
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		sort.Slice(positions, func(i, j int) bool {
			return positions[i].Line() < positions[j].Line()
		})
		pos = positions[0]
	}
	format, args := first.Msg()
	return &LoadError{Field: "cue", Message: fmt.Sprintf(format, args...), Pos: pos}
}
