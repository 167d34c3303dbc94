package ir

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/eqb/schema"
)

// FromSchema converts introspected schema info to a canonical object.
// Type and property order is kept; false flags and empty fields are left
// out so that equivalent YAML and CUE documents convert equally.
func FromSchema(info *schema.Info) Object {
	types := make(Array, 0, len(info.Types))
	for _, t := range info.Types {
		types = append(types, fromObjectType(t))
	}
	return Object{"types": types}
}

func fromObjectType(t schema.ObjectType) Object {
	obj := Object{"name": String(t.Name)}
	if t.ID != uuid.Nil {
		obj["id"] = String(t.ID.String())
	}

	props := make(Array, 0, len(t.Properties))
	for _, p := range t.Properties {
		po := Object{"name": String(p.Name)}
		if p.Cardinality != "" {
			po["cardinality"] = String(string(p.Cardinality))
		}
		if p.TargetID != nil {
			po["target_id"] = String(p.TargetID.String())
		}
		flag(po, "is_link", p.IsLink)
		flag(po, "required", p.Required)
		flag(po, "is_exclusive", p.IsExclusive)
		flag(po, "is_computed", p.IsComputed)
		flag(po, "is_readonly", p.IsReadonly)
		flag(po, "has_default", p.HasDefault)
		props = append(props, po)
	}
	obj["properties"] = props

	if len(t.Constraints) > 0 {
		cs := make(Array, 0, len(t.Constraints))
		for _, c := range t.Constraints {
			co := Object{"subject_expression": String(c.SubjectExpression)}
			flag(co, "is_exclusive", c.IsExclusive)
			cs = append(cs, co)
		}
		obj["constraints"] = cs
	}
	return obj
}

func flag(o Object, key string, v bool) {
	if v {
		o[key] = Bool(true)
	}
}

// SchemaSnapshot returns the canonical JSON of info and its content hash.
func SchemaSnapshot(info *schema.Info) ([]byte, string, error) {
	data, err := MarshalCanonical(FromSchema(info))
	if err != nil {
		return nil, "", fmt.Errorf("schema snapshot: %w", err)
	}
	return data, SchemaHash(data), nil
}
