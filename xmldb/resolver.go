package xmldb

import (
	"fmt"
	"reflect"
	"sync"
)

// containerSuffix is appended to a record type name to find its container.
const containerSuffix = "Database"

// CollectionKind is the declared shape of a container's record collection.
type CollectionKind int

const (
	// KindSlice is an unnamed slice, e.g. []*Sample.
	KindSlice CollectionKind = iota
	// KindNamedSlice is a named slice type, e.g. type Samples []*Sample.
	KindNamedSlice
	// KindArray is a fixed-size array, e.g. [8]*Sample.
	KindArray
)

func (k CollectionKind) String() string {
	switch k {
	case KindSlice:
		return "slice"
	case KindNamedSlice:
		return "named slice"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("CollectionKind(%d)", int(k))
	}
}

// TypeInfo is the derived mapping of a record type to its container.
type TypeInfo struct {
	RecordType      reflect.Type
	ContainerType   reflect.Type
	CollectionField string
	Kind            CollectionKind

	index []int
}

// field returns the collection field of c, a pointer to a container struct.
func (ti *TypeInfo) field(c reflect.Value) reflect.Value {
	return c.Elem().FieldByIndex(ti.index)
}

// Resolver maps record types to their containers within a fixed universe of
// container types. Results are cached for the lifetime of the Resolver.
type Resolver struct {
	containers map[string]reflect.Type

	mu    sync.RWMutex
	infos map[reflect.Type]*TypeInfo
}

// NewResolver returns a Resolver whose universe is the given container types.
// Types that are not containers are ignored.
func NewResolver(types []reflect.Type) *Resolver {
	r := &Resolver{
		containers: make(map[string]reflect.Type, len(types)),
		infos:      make(map[reflect.Type]*TypeInfo),
	}
	for _, t := range types {
		if isContainerType(t) {
			r.containers[qualifiedName(t)] = t
		}
	}
	return r
}

// Resolve returns the TypeInfo of recordType.
func (r *Resolver) Resolve(recordType reflect.Type) (*TypeInfo, error) {
	r.mu.RLock()
	ti, ok := r.infos[recordType]
	r.mu.RUnlock()
	if ok {
		return ti, nil
	}
	ti, err := r.resolve(recordType)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.infos[recordType]; ok {
		return cached, nil
	}
	r.infos[recordType] = ti
	return ti, nil
}

func (r *Resolver) resolve(recordType reflect.Type) (*TypeInfo, error) {
	if !isRecordType(recordType) {
		return nil, errorf("resolve", ErrTypeMismatch, "%s is not a record type", recordType)
	}
	name := qualifiedName(recordType) + containerSuffix
	ct, ok := r.containers[name]
	if !ok {
		return nil, errorf("resolve", ErrResolution, "no container type %s for %s", name, typeName(recordType))
	}
	st := ct.Elem()
	for i := range st.NumField() {
		f := st.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		var kind CollectionKind
		switch f.Type.Kind() { //nolint:exhaustive // Only slices and arrays hold records.
		case reflect.Slice:
			kind = KindSlice
			if f.Type.Name() != "" {
				kind = KindNamedSlice
			}
		case reflect.Array:
			kind = KindArray
		default:
			continue
		}
		if f.Type.Elem() != recordType {
			continue
		}
		return &TypeInfo{
			RecordType:      recordType,
			ContainerType:   ct,
			CollectionField: f.Name,
			Kind:            kind,
			index:           f.Index,
		}, nil
	}
	return nil, errorf("resolve", ErrResolution, "%s has no collection of %s", typeName(ct), typeName(recordType))
}
