// Package panel serves the browser widget as embedded assets.
//
// The widget is a single static page that talks to the HTTP API: it reads
// /api/v1/devices once, then follows the devices.updated and
// command.completed WebSocket channels. Requests it sends are the same
// fire-and-forget calls the terminal UI makes.
//
// Assets are compiled into the binary with go:embed. A non-empty dir
// serves them from disk instead, for editing without a rebuild.
package panel
