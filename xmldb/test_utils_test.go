package xmldb

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

// Note is a record with an unnamed slice collection.
type Note struct {
	RecordBase
	Text  string  `xml:"Text"`
	Count int     `xml:"Count"`
	Extra *string `xml:"Extra,omitempty"`
	note  string
}

// NoteDatabase holds Notes.
type NoteDatabase struct {
	ContainerBase
	Title string  `xml:"Title"`
	Notes []*Note `xml:"Notes>Note"`
}

// Tag is a record stored in a named slice type.
type Tag struct {
	RecordBase
	Label string `xml:"Label"`
}

// Tags is a named collection of Tag.
type Tags []*Tag

// TagDatabase holds Tags.
type TagDatabase struct {
	ContainerBase
	Items Tags `xml:"Items>Tag"`
}

// Slot is a record stored in a fixed-size array.
type Slot struct {
	RecordBase
	Name string `json:"name"`
}

// SlotDatabase holds up to three Slots.
type SlotDatabase struct {
	ContainerBase
	Slots [3]*Slot `json:"slots"`
}

// Orphan is a record with no container type.
type Orphan struct {
	RecordBase
}

// Bare is a record whose container has no collection of it.
type Bare struct {
	RecordBase
}

// BareDatabase has no collection of Bare.
type BareDatabase struct {
	ContainerBase
	Others []*Note
}

// jsonCodec is used for containers encoding/xml cannot decode, like arrays.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// setupEngine returns an engine with NoteDatabase and TagDatabase registered
// in a temporary workspace, both created.
func setupEngine(t *testing.T, opts *Options) (*Engine, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "ws")
	e := New(opts)
	t.Cleanup(func() {
		_ = e.Close()
	})
	if err := e.SetWorkspace(dir, TypeOf[*NoteDatabase](), TypeOf[*Note](), TypeOf[*TagDatabase]()); err != nil {
		t.Fatalf("SetWorkspace failed: %v", err)
	}
	if err := CreateDatabase[*NoteDatabase](e); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	if err := CreateDatabase[*TagDatabase](e); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	return e, dir
}

func newNotes(texts ...string) []*Note {
	out := make([]*Note, len(texts))
	for i, s := range texts {
		out[i] = &Note{Text: s, Count: i}
	}
	return out
}

// checkIdentifiers verifies EIDs are exactly 0..n-1 in order and UIDs are
// unique and non-empty.
func checkIdentifiers[R Record](t *testing.T, items []R) {
	t.Helper()
	seen := map[string]bool{}
	for i, r := range items {
		if got := r.GetEID(); got != uint32(i) { //nolint:gosec // G115: test sizes are tiny.
			t.Errorf("item %d: EID = %d, want %d", i, got, i)
		}
		uid := r.GetUID()
		if uid == "" {
			t.Errorf("item %d: empty UID", i)
		}
		if seen[uid] {
			t.Errorf("item %d: duplicate UID %s", i, uid)
		}
		seen[uid] = true
	}
}
