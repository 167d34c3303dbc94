package schema

import (
	"reflect"

	"github.com/google/uuid"
)

// Object is the entity marker. Embed it in a struct to make the struct an
// EdgeDB object type:
//
//	type Person struct {
//		schema.Object
//		Name string `edgedb:"full_name"`
//	}
//
// Object also carries the builder slot used for sub-query embedding and the
// tracker handle used to match query results back to their origin.
type Object struct {
	ID uuid.UUID `edgedb:"id"`

	meta *objectMeta
}

type objectMeta struct {
	handle  Handle
	tracked bool
	builder any
}

// Handle identifies a tracked entity in a tracker arena. Owner is the id
// of the tracker that issued it; a handle never resolves in another one.
type Handle struct {
	Owner      uint64
	Slot       uint32
	Generation uint32
}

// Entity is implemented by every pointer to a struct embedding Object.
type Entity interface {
	edgedbObject() *Object
}

// HoldsBuilder is the capability of carrying an embedded query builder.
type HoldsBuilder interface {
	HeldBuilder() (any, bool)
}

var entityType = reflect.TypeOf((*Entity)(nil)).Elem()

func (o *Object) edgedbObject() *Object { return o }

func (o *Object) ensureMeta() *objectMeta {
	if o.meta == nil {
		o.meta = &objectMeta{}
	}
	return o.meta
}

// HeldBuilder returns the query builder this object stands in for, if any.
func (o *Object) HeldBuilder() (any, bool) {
	if o.meta == nil || o.meta.builder == nil {
		return nil, false
	}
	return o.meta.builder, true
}

// HoldBuilder makes the object stand in for the given query builder.
func (o *Object) HoldBuilder(b any) {
	o.ensureMeta().builder = b
}

// TrackerHandle returns the handle assigned by a tracker.
func (o *Object) TrackerHandle() (Handle, bool) {
	if o.meta == nil || !o.meta.tracked {
		return Handle{}, false
	}
	return o.meta.handle, true
}

// SetTrackerHandle records the handle assigned by a tracker.
func (o *Object) SetTrackerHandle(h Handle) {
	m := o.ensureMeta()
	m.handle = h
	m.tracked = true
}

// ClearTrackerHandle drops a tracker handle.
func (o *Object) ClearTrackerHandle() {
	if o.meta != nil {
		o.meta.tracked = false
	}
}

// ObjectOf returns the embedded Object of an entity.
func ObjectOf(e Entity) *Object {
	return e.edgedbObject()
}

// ObjectFromValue extracts the embedded Object from a struct or pointer
// value. Non-addressable structs are copied; the copy shares the object's
// builder and handle.
func ObjectFromValue(v reflect.Value) (*Object, bool) {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		if v.Kind() == reflect.Pointer {
			if e, ok := v.Interface().(Entity); ok {
				return e.edgedbObject(), true
			}
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct || !IsEntity(v.Type()) {
		return nil, false
	}
	if !v.CanAddr() {
		cp := reflect.New(v.Type())
		cp.Elem().Set(v)
		v = cp.Elem()
	}
	return v.Addr().Interface().(Entity).edgedbObject(), true
}
