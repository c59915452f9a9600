// Package coordinator owns the Bluetooth gateway and mediates every call to
// it on behalf of the presentation adapters.
//
// # Architecture
//
//	 adapters (TUI, HTTP, MQTT, CLI)
//	        │ Refresh / TogglePower / Command          ▲ device + report callbacks
//	        ▼                                          │
//	┌───────────────────────────────┐        ┌─────────────────┐
//	│          Coordinator          │        │   Foreground    │
//	│  enumeration goroutine ──────────────▶ │ Mailbox (1 slot)│
//	│  command worker (FIFO) ──────────────▶ │ report queue    │
//	│          │                    │        └─────────────────┘
//	│          ▼ one call at a time │
//	│      gate ─▶ Gateway          │
//	└───────────────────────────────┘
//
// The Gateway is not safe for concurrent use. Every call goes through a
// single gate, held for exactly one Gateway call and never across a
// hand-off. Waiting for the gate is bounded, and a wait that times out
// counts as a failed call.
//
// # Refresh
//
// At most one enumeration runs at a time. Requests that arrive while one is
// running collapse into a single pending enumeration. Every enumeration is
// numbered when it starts, sorted by the device Policy, and posted to the
// Mailbox, which keeps only the newest snapshot and discards any snapshot
// numbered at or below one it has already seen.
//
// # Commands
//
// Power and per-device commands are queued in submission order and run by a
// single worker. When the settings source reports functionality disabled the
// worker logs the command and reports success without touching the Gateway.
// Failures are logged and audited but never reported as successes; the next
// refresh shows the true state.
//
// # Usage
//
//	c := coordinator.New(gw, store, coordinator.Options{CallTimeout: 3 * time.Second})
//	fg := coordinator.NewForeground(c)
//	fg.SubscribeDevices(func(list []device.Record) { render(list) })
//	c.Start(ctx)
//	defer c.Close()
//	c.Refresh()
//	go fg.Run(ctx)
package coordinator
