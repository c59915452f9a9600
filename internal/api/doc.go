// Package api implements the HTTP REST API and WebSocket server for the
// bluewidget daemon.
//
// This package provides:
//   - REST endpoints for the device list, adapter power, and device commands
//   - A WebSocket hub pushing device list updates and command reports
//   - Optional HS256 bearer-token authentication
//   - Middleware stack (request ID, logging, recovery, CORS, rate limit)
//
// # Architecture
//
// Handlers never call the Bluetooth gateway. Commands are queued on the
// coordinator and answered with 202 Accepted; the device list is served from
// the last snapshot delivered by the foreground dispatcher. The only
// synchronous gateway read is GET /adapter/power, bounded by the call timeout.
//
//	HTTP/WS clients ↔ api.Server ↔ coordinator ↔ BlueZ
package api
