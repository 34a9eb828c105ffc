package xmldb

import "reflect"

// Identifiable is implemented by anything carrying a unique identifier.
type Identifiable interface {
	GetUID() string
	SetUID(uid string)
}

// Record is an item stored in a container's collection.
//
// Implement it by embedding RecordBase in a struct and using a pointer to
// that struct as the type parameter.
type Record interface {
	Identifiable
	GetEID() uint32
	SetEID(eid uint32)
}

// Container is the root document persisted as one file per type.
//
// Implement it by embedding ContainerBase.
type Container interface {
	Identifiable
	isContainer()
}

// RecordBase holds the engine-assigned identifiers of a record.
type RecordBase struct {
	EID uint32 `xml:"EID,attr" json:"eid"`
	UID string `xml:"UID,attr" json:"uid"`
}

// GetEID returns the enumeration index.
func (r *RecordBase) GetEID() uint32 { return r.EID }

// SetEID sets the enumeration index.
func (r *RecordBase) SetEID(eid uint32) { r.EID = eid }

// GetUID returns the unique identifier.
func (r *RecordBase) GetUID() string { return r.UID }

// SetUID sets the unique identifier.
func (r *RecordBase) SetUID(uid string) { r.UID = uid }

// ContainerBase holds the identifier of a container document.
type ContainerBase struct {
	UID string `xml:"UID,attr" json:"uid"`
}

// GetUID returns the unique identifier.
func (c *ContainerBase) GetUID() string { return c.UID }

// SetUID sets the unique identifier.
func (c *ContainerBase) SetUID(uid string) { c.UID = uid }

func (c *ContainerBase) isContainer() {}

var (
	recordIface    = reflect.TypeFor[Record]()
	containerIface = reflect.TypeFor[Container]()
)

// TypeOf returns the reflect.Type of T. Use it to build the type list passed
// to Engine.SetWorkspace:
//
//	e.SetWorkspace(dir, xmldb.TypeOf[*SampleDatabase]())
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

func isRecordType(t reflect.Type) bool {
	return t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct && t.Implements(recordIface)
}

func isContainerType(t reflect.Type) bool {
	return t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct && t.Implements(containerIface)
}

// qualifiedName returns "pkgpath.Name" for a pointer-to-struct type.
func qualifiedName(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.PkgPath() + "." + t.Name()
}

// typeName returns the bare struct name for a pointer-to-struct type.
func typeName(t reflect.Type) string {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
