package api

import (
	"database/sql"
	"net/http"
	"runtime"
	"time"
)

// BackendStatus reports the state of the Bluetooth connection.
type BackendStatus interface {
	AdapterPath() string
	BreakerState() string
}

// MQTTStatus reports broker connectivity.
type MQTTStatus interface {
	IsConnected() bool
}

// DBStats exposes connection pool statistics.
type DBStats interface {
	Stats() sql.DBStats
}

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	MQTT          *MQTTMetrics    `json:"mqtt,omitempty"`
	Backend       *BackendMetrics `json:"backend,omitempty"`
	Devices       DeviceMetrics   `json:"devices"`
	Database      *DBMetrics      `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// BackendMetrics describes the adapter in use and its circuit breaker.
type BackendMetrics struct {
	Adapter string `json:"adapter"`
	Breaker string `json:"breaker"`
}

// DeviceMetrics describes the last published device list.
type DeviceMetrics struct {
	Total    int    `json:"total"`
	Seq      uint64 `json:"seq"`
	Received bool   `json:"received"`
}

// DBMetrics contains database connection pool statistics.
type DBMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns runtime, connection, and device list statistics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	seq, records, received := s.snapshot()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Devices: DeviceMetrics{
			Total:    len(records),
			Seq:      seq,
			Received: received,
		},
	}

	if s.mqtt != nil {
		metrics.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	if s.backend != nil {
		metrics.Backend = &BackendMetrics{
			Adapter: s.backend.AdapterPath(),
			Breaker: s.backend.BreakerState(),
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DBMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
