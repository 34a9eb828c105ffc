package xmldb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
)

// CreateDatabase writes a new, empty document for container type C with a
// fresh UID, overwriting any existing file.
func CreateDatabase[C Container](e *Engine) error {
	const op = "create database"
	t := reflect.TypeFor[C]()
	path, err := e.containerPath(op, t)
	if err != nil {
		return err
	}
	c := reflect.New(t.Elem()).Interface().(C)
	c.SetUID(e.newContainerUID())

	e.io.Lock()
	defer e.io.Unlock()
	if err := e.storeLocked(op, path, c); err != nil {
		return err
	}
	e.logger.Debug("Created database", "container", typeName(t), "uid", c.GetUID())
	return nil
}

// DeleteDatabase removes the document of container type C. It is a no-op if
// the file does not exist.
func DeleteDatabase[C Container](e *Engine) error {
	const op = "delete database"
	t := reflect.TypeFor[C]()
	path, err := e.containerPath(op, t)
	if err != nil {
		return err
	}

	e.io.Lock()
	defer e.io.Unlock()
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return newError(op, ErrIO, path, err)
	}
	if e.history != nil {
		if err := e.history.Commit(op+" "+filepath.Base(path), path); err != nil {
			return newError(op, ErrIO, path, err)
		}
	}
	e.logger.Debug("Deleted database", "container", typeName(t))
	return nil
}

// Load returns the whole document of container type C.
func Load[C Container](e *Engine) (C, error) {
	const op = "load"
	var zero C
	t := reflect.TypeFor[C]()
	path, err := e.containerPath(op, t)
	if err != nil {
		return zero, err
	}
	e.io.Lock()
	defer e.io.Unlock()
	c, err := e.loadLocked(op, path, t)
	if err != nil {
		return zero, err
	}
	return c.Interface().(C), nil
}

// Get returns every record of type R stored in its container. The result is
// empty, not nil, when the container holds no record.
func Get[R Record](e *Engine) ([]R, error) {
	return query[R](e, "get", nil)
}

// GetWhere returns the records whose field named field has the same string
// form as value. Both arguments must be set, or neither to return all
// records. It returns ErrNoMatch when no record qualifies.
func GetWhere[R Record](e *Engine, field string, value any) ([]R, error) {
	const op = "get"
	if field == "" && value == nil {
		return Get[R](e)
	}
	if field == "" || value == nil {
		return nil, errorf(op, ErrInvalidArgument, "field and value must be both set or both empty")
	}
	want := stringify(reflect.ValueOf(value))
	return query(e, op, func(r R) bool {
		got, ok := fieldString(r, field)
		return ok && got == want
	})
}

// Find returns the records for which key returns value. It returns
// ErrNoMatch when no record qualifies.
func Find[R Record](e *Engine, key func(R) string, value string) ([]R, error) {
	const op = "find"
	if key == nil {
		return nil, errorf(op, ErrInvalidArgument, "key function is nil")
	}
	return query(e, op, func(r R) bool { return key(r) == value })
}

func query[R Record](e *Engine, op string, match func(R) bool) ([]R, error) {
	ti, path, err := e.recordTarget(op, reflect.TypeFor[R]())
	if err != nil {
		return nil, err
	}
	e.io.Lock()
	c, err := e.loadLocked(op, path, ti.ContainerType)
	e.io.Unlock()
	if err != nil {
		return nil, err
	}
	items := collection[R](ti, c)
	if match == nil {
		return items, nil
	}
	out := items[:0]
	for _, r := range items {
		if match(r) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, newError(op, ErrNoMatch, path, nil)
	}
	return out, nil
}

// Insert appends items to their container, assigning each a fresh EID and
// UID. The assigned identifiers are written back into items.
func Insert[R Record](e *Engine, items []R) error {
	const op = "insert"
	return modify(e, op, items, func(stored []R) ([]R, error) {
		usedEIDs := make(map[uint32]struct{}, len(stored)+len(items))
		usedUIDs := make(map[string]struct{}, len(stored)+len(items))
		for _, r := range stored {
			usedEIDs[r.GetEID()] = struct{}{}
			usedUIDs[r.GetUID()] = struct{}{}
		}
		for _, r := range items {
			uid, err := e.uniqueUID(op, usedUIDs)
			if err != nil {
				return nil, err
			}
			r.SetEID(nextEID(usedEIDs))
			r.SetUID(uid)
			stored = append(stored, r)
		}
		return stored, nil
	})
}

// Remove deletes every stored record whose UID matches one of items.
// Unknown UIDs are ignored.
func Remove[R Record](e *Engine, items []R) error {
	return modify(e, "remove", items, func(stored []R) ([]R, error) {
		return withoutUIDs(stored, items), nil
	})
}

// Update replaces every stored record whose UID matches one of items with
// that item. Items whose UID is not stored are appended.
func Update[R Record](e *Engine, items []R) error {
	return modify(e, "update", items, func(stored []R) ([]R, error) {
		return append(withoutUIDs(stored, items), items...), nil
	})
}

// Save replaces the whole collection of R's container with items,
// renumbering their EIDs from 0 in the given order.
func Save[R Record](e *Engine, items []R) error {
	return modify(e, "save", items, func([]R) ([]R, error) {
		return items, nil
	})
}

// modify runs a complete load-mutate-store cycle while holding the I/O lock.
func modify[R Record](e *Engine, op string, items []R, fn func(stored []R) ([]R, error)) error {
	if items == nil {
		return errorf(op, ErrInvalidArgument, "items is nil")
	}
	seen := make(map[uintptr]int, len(items))
	for i, r := range items {
		if isNil(r) {
			return errorf(op, ErrInvalidArgument, "item %d is nil", i)
		}
		// Two entries sharing one struct would share EID and UID at rest.
		p := reflect.ValueOf(r).Pointer()
		if j, dup := seen[p]; dup {
			return errorf(op, ErrInvalidArgument, "items %d and %d are the same record", j, i)
		}
		seen[p] = i
	}
	ti, path, err := e.recordTarget(op, reflect.TypeFor[R]())
	if err != nil {
		return err
	}

	e.io.Lock()
	defer e.io.Unlock()
	c, err := e.loadLocked(op, path, ti.ContainerType)
	if err != nil {
		return err
	}
	next, err := fn(collection[R](ti, c))
	if err != nil {
		return err
	}
	for i, r := range next {
		r.SetEID(uint32(i)) //nolint:gosec // G115: collections never approach 2^32 items.
	}
	if err := setCollection(op, ti, c, next); err != nil {
		return err
	}
	if err := e.storeLocked(op, path, c.Interface()); err != nil {
		return err
	}
	e.logger.Debug("Saved collection", "op", op, "container", typeName(ti.ContainerType), "records", len(next))
	return nil
}

// loadLocked decodes the document at path into a new *T. e.io must be held.
func (e *Engine) loadLocked(op, path string, t reflect.Type) (reflect.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return reflect.Value{}, newError(op, ErrNotFound, path, nil)
		}
		return reflect.Value{}, newError(op, ErrIO, path, err)
	}
	c := reflect.New(t.Elem())
	if err := e.codec.Unmarshal(data, c.Interface()); err != nil {
		return reflect.Value{}, newError(op, ErrFormat, path, err)
	}
	return c, nil
}

// storeLocked encodes v and writes it to path. e.io must be held.
func (e *Engine) storeLocked(op, path string, v any) error {
	data, err := e.codec.Marshal(v)
	if err != nil {
		return newError(op, ErrFormat, path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // G306: documents are not secret.
		return newError(op, ErrIO, path, err)
	}
	if e.history != nil {
		msg := fmt.Sprintf("%s %s", op, filepath.Base(path))
		if err := e.history.Commit(msg, path); err != nil {
			return newError(op, ErrIO, path, err)
		}
	}
	return nil
}

// collection returns the non-nil records held by container c.
func collection[R Record](ti *TypeInfo, c reflect.Value) []R {
	f := ti.field(c)
	out := make([]R, 0, f.Len())
	for i := range f.Len() {
		v := f.Index(i)
		if v.IsNil() {
			continue
		}
		out = append(out, v.Interface().(R))
	}
	return out
}

// setCollection stores items into c's collection field, converting to the
// field's declared kind.
func setCollection[R Record](op string, ti *TypeInfo, c reflect.Value, items []R) error {
	f := ti.field(c)
	var v reflect.Value
	switch ti.Kind {
	case KindArray:
		if len(items) > f.Len() {
			return errorf(op, ErrInvalidArgument, "%d records exceed the capacity %d of %s.%s", len(items), f.Len(), typeName(ti.ContainerType), ti.CollectionField)
		}
		v = reflect.New(f.Type()).Elem()
	case KindSlice, KindNamedSlice:
		v = reflect.MakeSlice(f.Type(), len(items), len(items))
	}
	for i, r := range items {
		v.Index(i).Set(reflect.ValueOf(r))
	}
	f.Set(v)
	return nil
}

func withoutUIDs[R Record](stored, items []R) []R {
	drop := make(map[string]struct{}, len(items))
	for _, r := range items {
		drop[r.GetUID()] = struct{}{}
	}
	out := make([]R, 0, len(stored))
	for _, r := range stored {
		if _, ok := drop[r.GetUID()]; !ok {
			out = append(out, r)
		}
	}
	return out
}

func isNil[R any](r R) bool {
	v := reflect.ValueOf(r)
	return !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil())
}

// fieldString returns the string form of r's field called name.
func fieldString(r any, name string) (string, bool) {
	v := reflect.ValueOf(r)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", false
	}
	sf, ok := v.Type().FieldByName(name)
	if !ok || !sf.IsExported() {
		return "", false
	}
	f := v.FieldByIndex(sf.Index)
	for f.Kind() == reflect.Pointer || f.Kind() == reflect.Interface {
		if f.IsNil() {
			return "", false
		}
		f = f.Elem()
	}
	return stringify(f), true
}

func stringify(v reflect.Value) string {
	for v.Kind() == reflect.Pointer && !v.IsNil() {
		v = v.Elem()
	}
	if !v.IsValid() {
		return ""
	}
	return fmt.Sprint(v.Interface())
}
