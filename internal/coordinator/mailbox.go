package coordinator

import (
	"sync"
	"time"

	"github.com/bluewidget/bluewidget/internal/device"
)

// Snapshot is one complete, ordered enumeration result.
type Snapshot struct {
	Seq     uint64          `json:"seq"`
	Devices []device.Record `json:"devices"`
	TakenAt time.Time       `json:"taken_at"`
}

// Mailbox is a single-slot hand-off between the enumeration goroutine and
// the foreground consumer.
//
// Post never blocks. A newer snapshot replaces an unconsumed older one, and
// a snapshot whose Seq is not greater than every Seq already posted is
// discarded. Poll takes the pending snapshot, if any, without blocking.
type Mailbox struct {
	mu    sync.Mutex
	slot  *Snapshot
	last  uint64
	ready chan struct{}
}

// NewMailbox creates an empty Mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// Post offers a snapshot. It returns false when the snapshot was stale and
// has been discarded.
func (m *Mailbox) Post(s Snapshot) bool {
	m.mu.Lock()
	if s.Seq <= m.last {
		m.mu.Unlock()
		return false
	}
	m.slot = &s
	m.last = s.Seq
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return true
}

// Poll removes and returns the pending snapshot.
func (m *Mailbox) Poll() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slot == nil {
		return Snapshot{}, false
	}
	s := *m.slot
	m.slot = nil
	return s, true
}

// Ready is signalled after each accepted Post. A receive does not guarantee
// a snapshot is still pending; always Poll.
func (m *Mailbox) Ready() <-chan struct{} {
	return m.ready
}

// LastSeq returns the highest sequence number accepted so far.
func (m *Mailbox) LastSeq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
