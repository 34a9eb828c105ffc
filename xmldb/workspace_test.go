package xmldb

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
)

func TestSetWorkspace(t *testing.T) {
	t.Run("path table", func(t *testing.T) {
		e := New(nil)
		t.Cleanup(func() { _ = e.Close() })
		dir := filepath.Join(t.TempDir(), "a", "b")
		types := []reflect.Type{TypeOf[*NoteDatabase](), TypeOf[*Tag](), TypeOf[*TagDatabase]()}
		if err := e.SetWorkspace(dir, types...); err != nil {
			t.Fatalf("SetWorkspace failed: %v", err)
		}
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			t.Fatalf("workspace not created: %v", err)
		}
		if got, want := e.Workspace(), dir+string(os.PathSeparator); got != want {
			t.Errorf("Workspace() = %q, want %q", got, want)
		}
		if !reflect.DeepEqual(e.Types(), types) {
			t.Errorf("Types() = %v", e.Types())
		}
		for _, tt := range []struct {
			typ  reflect.Type
			want string
		}{
			{TypeOf[*NoteDatabase](), "NoteDatabase.xml"},
			{TypeOf[*Tag](), "TagDatabase.xml"},
			{TypeOf[*TagDatabase](), "TagDatabase.xml"},
		} {
			p, ok := e.Path(tt.typ)
			if !ok || p != filepath.Join(dir, tt.want) {
				t.Errorf("Path(%v) = %q, %t", tt.typ, p, ok)
			}
		}
		// Note was not registered but its container was; it is still
		// reachable through the resolver, not the path table.
		if _, ok := e.Path(TypeOf[*Note]()); ok {
			t.Error("Path(*Note) should not be registered")
		}
	})

	t.Run("trailing separator", func(t *testing.T) {
		e := New(nil)
		t.Cleanup(func() { _ = e.Close() })
		dir := t.TempDir() + string(os.PathSeparator)
		if err := e.SetWorkspace(dir); err != nil {
			t.Fatal(err)
		}
		if got := e.Workspace(); got != dir {
			t.Errorf("Workspace() = %q, want %q", got, dir)
		}
	})

	t.Run("replaces table", func(t *testing.T) {
		e, _ := setupEngine(t, nil)
		dir := t.TempDir()
		if err := e.SetWorkspace(dir, TypeOf[*TagDatabase]()); err != nil {
			t.Fatal(err)
		}
		if _, ok := e.Path(TypeOf[*NoteDatabase]()); ok {
			t.Error("stale path kept after SetWorkspace")
		}
		if _, err := Get[*Note](e); !errors.Is(err, ErrResolution) {
			t.Errorf("Get error = %v, want ErrResolution", err)
		}
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name  string
			dir   string
			types []reflect.Type
			want  error
		}{
			{"empty path", "", nil, ErrInvalidArgument},
			{"builtin type", "x", []reflect.Type{TypeOf[int]()}, ErrTypeMismatch},
			{"struct value", "x", []reflect.Type{TypeOf[Note]()}, ErrTypeMismatch},
			{"nil type", "x", []reflect.Type{nil}, ErrTypeMismatch},
			{"orphan record", "x", []reflect.Type{TypeOf[*Orphan]()}, ErrResolution},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				e := New(nil)
				t.Cleanup(func() { _ = e.Close() })
				dir := tt.dir
				if dir != "" {
					dir = filepath.Join(t.TempDir(), dir)
				}
				if err := e.SetWorkspace(dir, tt.types...); !errors.Is(err, tt.want) {
					t.Errorf("SetWorkspace error = %v, want %v", err, tt.want)
				}
				if e.Workspace() != "" {
					t.Errorf("workspace set despite error: %q", e.Workspace())
				}
			})
		}
	})

	t.Run("unwritable", func(t *testing.T) {
		e := New(nil)
		t.Cleanup(func() { _ = e.Close() })
		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		if err := e.SetWorkspace(filepath.Join(file, "ws")); !errors.Is(err, ErrIO) {
			t.Errorf("SetWorkspace error = %v, want ErrIO", err)
		}
	})

	t.Run("not set", func(t *testing.T) {
		e := New(nil)
		if err := CreateDatabase[*NoteDatabase](e); !errors.Is(err, ErrResolution) {
			t.Errorf("CreateDatabase error = %v, want ErrResolution", err)
		}
		if _, err := Get[*Note](e); !errors.Is(err, ErrResolution) {
			t.Errorf("Get error = %v, want ErrResolution", err)
		}
	})
}

func TestClearHandler(t *testing.T) {
	e, dir := setupEngine(t, nil)
	if err := Insert(e, newNotes("a")); err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	e.Subscribe(func(ev Event) {
		if ev.Kind == EventExported {
			calls.Add(1)
		}
	})

	if err := e.ClearHandler(); err != nil {
		t.Fatalf("ClearHandler failed: %v", err)
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("workspace still exists: %v", err)
	}
	if e.Workspace() != "" || len(e.Types()) != 0 {
		t.Errorf("state not reset: %q %v", e.Workspace(), e.Types())
	}
	if _, ok := e.Path(TypeOf[*NoteDatabase]()); ok {
		t.Error("path table not reset")
	}
	e.events.publish(Event{Kind: EventExported})
	if n := calls.Load(); n != 0 {
		t.Errorf("subscriber still attached: %d calls", n)
	}
	if e.events.last != "" {
		t.Errorf("last notified name not reset: %q", e.events.last)
	}
	// Clearing twice is harmless.
	if err := e.ClearHandler(); err != nil {
		t.Fatalf("second ClearHandler failed: %v", err)
	}

	// The engine is usable again after a new SetWorkspace.
	next := filepath.Join(t.TempDir(), "next")
	if err := e.SetWorkspace(next, TypeOf[*NoteDatabase]()); err != nil {
		t.Fatal(err)
	}
	if err := CreateDatabase[*NoteDatabase](e); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(e.Workspace(), next) {
		t.Errorf("Workspace() = %q", e.Workspace())
	}
}
