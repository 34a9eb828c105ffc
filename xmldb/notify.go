package xmldb

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventKind identifies what an Event reports.
type EventKind int

const (
	// EventChanged reports a write to a container file in the workspace.
	EventChanged EventKind = iota + 1
	// EventExported reports a completed workspace export.
	EventExported
	// EventImported reports a completed archive import.
	EventImported
)

func (k EventKind) String() string {
	switch k {
	case EventChanged:
		return "changed"
	case EventExported:
		return "exported"
	case EventImported:
		return "imported"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is delivered to subscribers.
//
// For EventChanged, Name is the container type name. For EventExported and
// EventImported, Path is the archive written or the last file extracted.
type Event struct {
	Kind EventKind
	Name string
	Path string
	Time time.Time
}

// notifier watches the workspace directory and fans events out to
// subscribers. It never touches the engine's I/O lock.
type notifier struct {
	logger *slog.Logger

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int

	// lifeMu serializes restart and stop so at most one watch exists.
	lifeMu sync.Mutex

	mu   sync.Mutex
	cur  *watch
	last string
}

// watch is one running directory watch. loop reads fsnotify and queues
// change events; dispatch delivers them to subscribers on its own goroutine
// so a subscriber may restart or stop the watch that called it.
type watch struct {
	w            *fsnotify.Watcher
	events       chan Event
	quit         chan struct{}
	loopDone     chan struct{}
	dispatchDone chan struct{}
	delivering   atomic.Bool
}

func newNotifier(logger *slog.Logger) *notifier {
	return &notifier{logger: logger, subs: make(map[int]func(Event))}
}

func (n *notifier) subscribe(fn func(Event)) func() {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	return func() {
		n.subMu.Lock()
		defer n.subMu.Unlock()
		delete(n.subs, id)
	}
}

func (n *notifier) detachAll() {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	n.subs = make(map[int]func(Event))
}

func (n *notifier) publish(ev Event) {
	n.subMu.Lock()
	subs := make([]func(Event), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.subMu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// restart replaces the current watch, if any, with one on dir.
func (n *notifier) restart(dir string) error {
	n.lifeMu.Lock()
	defer n.lifeMu.Unlock()
	n.stopLocked()
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	cur := &watch{
		w:            w,
		events:       make(chan Event, 16),
		quit:         make(chan struct{}),
		loopDone:     make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}
	n.mu.Lock()
	n.cur = cur
	n.mu.Unlock()
	go n.loop(cur)
	go n.dispatch(cur)
	return nil
}

func (n *notifier) loop(cur *watch) {
	defer close(cur.loopDone)
	defer close(cur.events)
	for {
		select {
		case event, ok := <-cur.w.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) {
				continue
			}
			ev, ok := n.changed(event.Name)
			if !ok {
				continue
			}
			select {
			case cur.events <- ev:
			case <-cur.quit:
				return
			}
		case err, ok := <-cur.w.Errors:
			if !ok {
				return
			}
			n.logger.Warn("Error watching workspace", "err", err)
		case <-cur.quit:
			return
		}
	}
}

func (n *notifier) dispatch(cur *watch) {
	defer close(cur.dispatchDone)
	for ev := range cur.events {
		// delivering is set before quit is checked so stop either sees a
		// delivery in progress or knows none will start.
		cur.delivering.Store(true)
		select {
		case <-cur.quit:
			cur.delivering.Store(false)
			return
		default:
		}
		n.publish(ev)
		cur.delivering.Store(false)
	}
}

// stop ends the current watch, if any. It returns once no more change
// events can be delivered, except one already being delivered, which is
// the case when a subscriber itself stops the watch.
func (n *notifier) stop() {
	n.lifeMu.Lock()
	defer n.lifeMu.Unlock()
	n.stopLocked()
}

func (n *notifier) stopLocked() {
	n.mu.Lock()
	cur := n.cur
	n.cur = nil
	n.mu.Unlock()
	if cur == nil {
		return
	}
	close(cur.quit)
	_ = cur.w.Close()
	<-cur.loopDone
	if !cur.delivering.Load() {
		<-cur.dispatchDone
	}
}

func (n *notifier) reset() {
	n.mu.Lock()
	n.last = ""
	n.mu.Unlock()
}

// changed applies the alternating debounce: a name equal to the previous
// one is swallowed and clears the memory, so the third write fires again.
// It reports whether path produces a change event.
func (n *notifier) changed(path string) (Event, bool) {
	name := filepath.Base(path)
	n.mu.Lock()
	if name == n.last {
		n.last = ""
		n.mu.Unlock()
		return Event{}, false
	}
	n.last = name
	n.mu.Unlock()
	if !strings.HasSuffix(name, containerExt) {
		return Event{}, false
	}
	return Event{
		Kind: EventChanged,
		Name: strings.TrimSuffix(name, containerExt),
		Path: path,
		Time: time.Now(),
	}, true
}
