package coordinator

import (
	"context"
	"slices"
	"sync"

	"github.com/bluewidget/bluewidget/internal/device"
)

// Foreground delivers coordinator results to subscribers on a single
// goroutine: whichever goroutine calls Tick or Run.
type Foreground struct {
	c *Coordinator

	mu      sync.Mutex
	devSubs []func([]device.Record)
	repSubs []func(CommandReport)
	lastSeq uint64
}

// NewForeground creates a Foreground bound to c.
func NewForeground(c *Coordinator) *Foreground {
	return &Foreground{c: c}
}

// SubscribeDevices registers fn to receive each new ordered device list.
func (f *Foreground) SubscribeDevices(fn func([]device.Record)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devSubs = append(f.devSubs, fn)
}

// SubscribeReports registers fn to receive command reports.
func (f *Foreground) SubscribeReports(fn func(CommandReport)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repSubs = append(f.repSubs, fn)
}

// Tick delivers at most one pending snapshot and every queued report.
// It never blocks on the gateway. It returns true if anything was delivered.
func (f *Foreground) Tick() bool {
	delivered := false

	if snap, ok := f.c.mailbox.Poll(); ok {
		f.mu.Lock()
		fresh := snap.Seq > f.lastSeq
		if fresh {
			f.lastSeq = snap.Seq
		}
		subs := slices.Clone(f.devSubs)
		f.mu.Unlock()

		if fresh {
			for _, fn := range subs {
				fn(slices.Clone(snap.Devices))
			}
			delivered = true
		}
	}

	f.mu.Lock()
	subs := slices.Clone(f.repSubs)
	f.mu.Unlock()
	for {
		select {
		case r := <-f.c.reports:
			for _, fn := range subs {
				fn(r)
			}
			delivered = true
		default:
			return delivered
		}
	}
}

// Run calls Tick whenever the coordinator signals new work, until ctx is done.
func (f *Foreground) Run(ctx context.Context) {
	f.Tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.c.mailbox.Ready():
			f.Tick()
		case <-f.c.reportReady:
			f.Tick()
		}
	}
}

// LastSeq returns the sequence number of the last delivered device list.
func (f *Foreground) LastSeq() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSeq
}
