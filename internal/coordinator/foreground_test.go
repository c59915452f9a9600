package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bluewidget/bluewidget/internal/device"
)

func TestForeground_TickDeliversOnce(t *testing.T) {
	c := New(&mockGateway{}, newSettings(true), Options{})
	fg := NewForeground(c)

	calls := 0
	fg.SubscribeDevices(func([]device.Record) { calls++ })

	if fg.Tick() {
		t.Error("Tick() on empty mailbox reported delivery")
	}

	c.Mailbox().Post(Snapshot{Seq: 1})
	c.Mailbox().Post(Snapshot{Seq: 2})
	if !fg.Tick() {
		t.Error("Tick() did not report delivery")
	}
	fg.Tick()

	if calls != 1 {
		t.Errorf("deliveries = %d, want 1", calls)
	}
	if fg.LastSeq() != 2 {
		t.Errorf("LastSeq() = %d, want 2", fg.LastSeq())
	}
}

func TestForeground_SubscribersGetOwnCopy(t *testing.T) {
	c := New(&mockGateway{}, newSettings(true), Options{})
	fg := NewForeground(c)

	var second []device.Record
	fg.SubscribeDevices(func(list []device.Record) { list[0].Name = "mutated" })
	fg.SubscribeDevices(func(list []device.Record) { second = list })

	c.Mailbox().Post(Snapshot{Seq: 1, Devices: []device.Record{{ID: "AA:AA:AA:AA:AA:01", Name: "Alpha"}}})
	fg.Tick()

	if second[0].Name != "Alpha" {
		t.Errorf("second subscriber saw %q, want Alpha", second[0].Name)
	}
}

func TestForeground_DrainsReports(t *testing.T) {
	c := New(&mockGateway{}, newSettings(true), Options{})
	fg := NewForeground(c)

	var got []Op
	fg.SubscribeReports(func(r CommandReport) { got = append(got, r.Op) })

	c.report(CommandReport{Op: OpPowerOn})
	c.report(CommandReport{Op: OpPowerOff})
	fg.Tick()

	if len(got) != 2 || got[0] != OpPowerOn || got[1] != OpPowerOff {
		t.Errorf("reports = %v, want [power_on power_off]", got)
	}
}

func TestForeground_ReportQueueOverflowDrops(t *testing.T) {
	c := New(&mockGateway{}, newSettings(true), Options{ReportQueueSize: 2})
	fg := NewForeground(c)

	n := 0
	fg.SubscribeReports(func(CommandReport) { n++ })

	for range 5 {
		c.report(CommandReport{Op: OpConnect})
	}
	fg.Tick()

	if n != 2 {
		t.Errorf("reports delivered = %d, want 2", n)
	}
}

func TestForeground_Run(t *testing.T) {
	gw := &mockGateway{}
	gw.setDevices(device.Record{ID: "AA:AA:AA:AA:AA:01", Name: "Alpha"})
	c := newTestCoordinator(t, gw, newSettings(false), Options{})
	fg := NewForeground(c)

	var mu sync.Mutex
	var lists, reports int
	fg.SubscribeDevices(func([]device.Record) { mu.Lock(); lists++; mu.Unlock() })
	fg.SubscribeReports(func(CommandReport) { mu.Lock(); reports++; mu.Unlock() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		fg.Run(ctx)
		close(done)
	}()

	c.Refresh()
	_ = c.TogglePower(true)

	waitFor(t, "deliveries", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return lists == 1 && reports == 1
	})

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
