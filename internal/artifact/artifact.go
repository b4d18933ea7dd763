// Package artifact owns the lifecycle of renderable compile artifacts.
// Exactly one handle is live at a time; replacement releases the old
// handle only once the new one is confirmed usable, so the UI never
// observes a gap and nothing leaks.
package artifact

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var pdfMagic = []byte("%PDF-")

// Handle is an exclusively-owned reference to a renderable artifact.
// Only the Lifecycle may release it.
type Handle struct {
	life      *Lifecycle
	id        string
	seq       uint64
	data      []byte
	createdAt time.Time
	released  bool
}

// ID returns the handle identity used by the HTTP layer.
func (h *Handle) ID() string { return h.id }

// Seq returns the sequence number of the compile that produced it.
func (h *Handle) Seq() uint64 { return h.seq }

// Bytes returns the artifact content, or nil after release. The read is
// synchronized with the lifecycle so a handle can be served while a
// newer compile result is being promoted.
func (h *Handle) Bytes() []byte {
	h.life.mu.Lock()
	defer h.life.mu.Unlock()
	return h.data
}

// CreatedAt returns the allocation time.
func (h *Handle) CreatedAt() time.Time { return h.createdAt }

// Lifecycle manages allocation, promotion, and release of handles.
type Lifecycle struct {
	mu       sync.Mutex
	live     *Handle
	pending  *Handle // published but not yet promoted
	byID     map[string]*Handle
	released int
}

// NewLifecycle creates an empty lifecycle.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{byID: make(map[string]*Handle)}
}

// Publish allocates a new handle for data. The previously-live handle
// is not released yet; that happens in Promote. Publishing over an
// unpromoted handle releases the orphan so at most two handles ever
// exist at once.
func (l *Lifecycle) Publish(data []byte, seq uint64) *Handle {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending != nil {
		l.releaseLocked(l.pending)
		l.pending = nil
	}

	h := &Handle{
		life:      l,
		id:        uuid.NewString(),
		seq:       seq,
		data:      data,
		createdAt: time.Now(),
	}
	l.byID[h.id] = h
	l.pending = h
	return h
}

// Promote makes h the live handle and releases the previous one. The
// swap happens only after h is confirmed usable; a bad handle is
// released immediately and the old artifact stays live.
func (l *Lifecycle) Promote(h *Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h.released {
		return fmt.Errorf("artifact: promote of released handle %s", h.id)
	}
	if len(h.data) == 0 || !bytes.HasPrefix(h.data, pdfMagic) {
		l.releaseLocked(h)
		if l.pending == h {
			l.pending = nil
		}
		return fmt.Errorf("artifact: handle %s is not a usable document", h.id)
	}

	prev := l.live
	l.live = h
	if l.pending == h {
		l.pending = nil
	}
	if prev != nil && prev != h {
		l.releaseLocked(prev)
	}
	return nil
}

// Live returns the currently-live handle, or nil before the first
// successful promote.
func (l *Lifecycle) Live() *Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.live
}

// Get looks up an allocated handle by id.
func (l *Lifecycle) Get(id string) (*Handle, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.byID[id]
	return h, ok
}

// ReleaseAll releases every handle. Safe to call multiple times.
func (l *Lifecycle) ReleaseAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, h := range l.byID {
		l.releaseLocked(h)
	}
	l.live = nil
	l.pending = nil
}

// AllocatedCount returns the number of not-yet-released handles.
func (l *Lifecycle) AllocatedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byID)
}

// ReleasedCount returns how many handles have been released so far.
func (l *Lifecycle) ReleasedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released
}

func (l *Lifecycle) releaseLocked(h *Handle) {
	if h.released {
		return
	}
	h.released = true
	h.data = nil
	delete(l.byID, h.id)
	l.released++
}
