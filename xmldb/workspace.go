package xmldb

import (
	"log/slog"
	"os"
	"reflect"
	"strings"
	"sync"
)

// containerExt is the file extension of container documents.
const containerExt = ".xml"

// Committer records durable changes to workspace files, for example as
// commits in a version control repository. Paths are absolute.
type Committer interface {
	Commit(msg string, paths ...string) error
}

// Options configures an Engine. The zero value is usable.
type Options struct {
	// Codec encodes container documents. Defaults to XMLCodec{}.
	Codec Codec
	// Logger receives debug and warning logs. Defaults to slog.Default().
	Logger *slog.Logger
	// NewUID generates record identifiers. Defaults to upper-case UUIDv4.
	NewUID func() string
	// NewContainerUID generates container identifiers. Defaults to a
	// time-sortable ksid.
	NewContainerUID func() string
	// History, if set, is called after every container write or delete.
	History Committer
}

// Engine is a file-backed object store rooted at a workspace directory.
//
// An Engine is safe for concurrent use. All durable I/O is serialized by a
// single mutex owned by the Engine.
type Engine struct {
	codec           Codec
	logger          *slog.Logger
	newUID          func() string
	newContainerUID func() string
	history         Committer
	events          *notifier

	// io guards every durable read and write. It is never held while
	// acquiring cfgMu for writing.
	io sync.Mutex

	// setupMu serializes SetWorkspace and ClearHandler so the watch and the
	// path table always refer to the same directory.
	setupMu sync.Mutex

	cfgMu     sync.RWMutex
	workspace string
	types     []reflect.Type
	paths     map[reflect.Type]string
	resolver  *Resolver
}

// New returns an Engine with no workspace. Call SetWorkspace before use.
func New(opts *Options) *Engine {
	if opts == nil {
		opts = &Options{}
	}
	e := &Engine{
		codec:           opts.Codec,
		logger:          opts.Logger,
		newUID:          opts.NewUID,
		newContainerUID: opts.NewContainerUID,
		history:         opts.History,
		paths:           map[reflect.Type]string{},
		resolver:        NewResolver(nil),
	}
	if e.codec == nil {
		e.codec = XMLCodec{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.newUID == nil {
		e.newUID = newRecordUID
	}
	if e.newContainerUID == nil {
		e.newContainerUID = newContainerUID
	}
	e.events = newNotifier(e.logger)
	return e
}

// SetWorkspace roots the engine at dir and registers the container and
// record types it manages.
//
// Each type must be a pointer to a struct implementing Container or Record.
// The directory is created if missing and watched for changes. The path
// table is rebuilt from scratch on each call.
func (e *Engine) SetWorkspace(dir string, types ...reflect.Type) error {
	const op = "set workspace"
	if dir == "" {
		return errorf(op, ErrInvalidArgument, "workspace path is empty")
	}
	for _, t := range types {
		if t == nil || (!isContainerType(t) && !isRecordType(t)) {
			return errorf(op, ErrTypeMismatch, "%v is neither a container nor a record type", t)
		}
	}
	if !strings.HasSuffix(dir, string(os.PathSeparator)) {
		dir += string(os.PathSeparator)
	}

	resolver := NewResolver(types)
	paths := make(map[reflect.Type]string, len(types))
	for _, t := range types {
		ct := t
		if isRecordType(t) {
			ti, err := resolver.Resolve(t)
			if err != nil {
				return err
			}
			ct = ti.ContainerType
		}
		paths[t] = dir + typeName(ct) + containerExt
		paths[ct] = paths[t]
	}

	e.setupMu.Lock()
	defer e.setupMu.Unlock()
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: workspace directories are world-readable.
		return newError(op, ErrIO, dir, err)
	}
	if err := e.events.restart(dir); err != nil {
		return newError(op, ErrIO, dir, err)
	}

	e.cfgMu.Lock()
	e.workspace = dir
	e.types = append([]reflect.Type(nil), types...)
	e.paths = paths
	e.resolver = resolver
	e.cfgMu.Unlock()
	e.logger.Debug("Workspace set", "dir", dir, "types", len(types))
	return nil
}

// ClearHandler stops watching, deletes the workspace directory recursively
// and forgets all registered types and subscribers.
func (e *Engine) ClearHandler() error {
	e.setupMu.Lock()
	defer e.setupMu.Unlock()
	e.events.stop()
	e.events.reset()
	e.events.detachAll()

	e.cfgMu.Lock()
	dir := e.workspace
	e.workspace = ""
	e.types = nil
	e.paths = map[reflect.Type]string{}
	e.resolver = NewResolver(nil)
	e.cfgMu.Unlock()

	if dir == "" {
		return nil
	}
	e.io.Lock()
	defer e.io.Unlock()
	if err := os.RemoveAll(dir); err != nil {
		return newError("clear", ErrIO, dir, err)
	}
	e.logger.Debug("Workspace cleared", "dir", dir)
	return nil
}

// Close stops watching the workspace. Files are left untouched.
func (e *Engine) Close() error {
	e.events.stop()
	return nil
}

// Workspace returns the current workspace directory, with a trailing
// separator, or "" if none is set.
func (e *Engine) Workspace() string {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.workspace
}

// Types returns the types registered by the last SetWorkspace call.
func (e *Engine) Types() []reflect.Type {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return append([]reflect.Type(nil), e.types...)
}

// Path returns the document path of a registered container or record type.
func (e *Engine) Path(t reflect.Type) (string, bool) {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	p, ok := e.paths[t]
	return p, ok
}

// Subscribe registers fn to receive events. The returned function removes
// the subscription.
//
// Change events are delivered one at a time from a goroutine owned by the
// watch. Export and Import events are delivered from the goroutine calling
// them. fn may call any Engine method, including SetWorkspace and Close.
func (e *Engine) Subscribe(fn func(Event)) func() {
	return e.events.subscribe(fn)
}

// containerPath returns the path of container type t.
func (e *Engine) containerPath(op string, t reflect.Type) (string, error) {
	if !isContainerType(t) {
		return "", errorf(op, ErrTypeMismatch, "%s is not a container type", t)
	}
	p, ok := e.Path(t)
	if !ok {
		return "", errorf(op, ErrResolution, "container type %s is not registered", typeName(t))
	}
	return p, nil
}

// recordTarget resolves record type t to its TypeInfo and container path.
func (e *Engine) recordTarget(op string, t reflect.Type) (*TypeInfo, string, error) {
	e.cfgMu.RLock()
	resolver, paths := e.resolver, e.paths
	e.cfgMu.RUnlock()
	ti, err := resolver.Resolve(t)
	if err != nil {
		return nil, "", err
	}
	p, ok := paths[ti.ContainerType]
	if !ok {
		return nil, "", errorf(op, ErrResolution, "container type %s is not registered", typeName(ti.ContainerType))
	}
	return ti, p, nil
}
