// ABOUTME: Time-windowed, size-bounded set of recently executed ticket IDs
// ABOUTME: Expired entries are pruned lazily on every mark, oldest first

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// DefaultMaxSize bounds the number of remembered IDs.
const DefaultMaxSize = 1024

type entry struct {
	id     string
	markAt time.Time
}

// Window tracks IDs seen within the last ttl. Entries are kept in
// insertion order, so both expiry and eviction pop from the front.
type Window struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a window remembering up to maxSize IDs for ttl.
func New(ttl time.Duration, maxSize int) *Window {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Window{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// contains reports whether id was marked within the window.
func (w *Window) contains(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seenLocked(id, w.now())
}

// CheckAndMark reports whether id was already seen; if not, it is marked.
func (w *Window) CheckAndMark(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.pruneLocked(now)
	if w.seenLocked(id, now) {
		return true
	}

	for w.order.Len() >= w.maxSize {
		w.removeLocked(w.order.Front())
	}
	w.seen[id] = w.order.PushBack(&entry{id: id, markAt: now})
	return false
}

// size returns the number of IDs currently remembered.
func (w *Window) size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.order.Len()
}

func (w *Window) seenLocked(id string, now time.Time) bool {
	elem, ok := w.seen[id]
	if !ok {
		return false
	}
	return now.Sub(elem.Value.(*entry).markAt) < w.ttl
}

func (w *Window) pruneLocked(now time.Time) {
	for front := w.order.Front(); front != nil; front = w.order.Front() {
		if now.Sub(front.Value.(*entry).markAt) < w.ttl {
			return
		}
		w.removeLocked(front)
	}
}

func (w *Window) removeLocked(elem *list.Element) {
	w.order.Remove(elem)
	delete(w.seen, elem.Value.(*entry).id)
}
