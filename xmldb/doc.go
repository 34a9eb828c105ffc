// Package xmldb provides a generic, concurrent-safe, XML-file-backed object store.
//
// # Overview
//
// Records are grouped into containers. Each container type is persisted as a
// single XML document named after the type inside a workspace directory. The
// [Engine] performs CRUD against a container's record collection without any
// per-type persistence code: the owning container and its collection field are
// derived from the record type by convention.
//
// # Conventions
//
// A record type Foo (embedding [RecordBase]) belongs to the container type
// FooDatabase (embedding [ContainerBase]) declared in the same package. The
// container's first slice or array field whose element type is *Foo holds the
// records.
//
// # Concurrency: Pessimistic Locking
//
// Every durable read and write happens while holding the engine's single
// mutex. Mutating calls hold it for the whole load-mutate-store cycle, so two
// concurrent Insert calls on the same container never lose an update. The
// tradeoff is that unrelated containers contend for the same lock.
//
// # Identifiers
//
// Records carry an enumeration index (EID) and a unique identifier (UID), both
// assigned by the engine. After every mutation the surviving records are
// renumbered 0..n-1, so EIDs are positions, not stable keys. Use the UID to
// refer to a record across calls.
package xmldb
