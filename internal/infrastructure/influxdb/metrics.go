package influxdb

import (
	"strconv"
	"time"

	"github.com/bluewidget/bluewidget/internal/coordinator"
)

// Measurement names.
const (
	MeasurementEnumeration = "enumeration"
	MeasurementCommand     = "command"
	MeasurementGatewayCall = "gateway_call"
)

var _ coordinator.Metrics = (*Client)(nil)

// RecordEnumeration implements coordinator.Metrics.
func (c *Client) RecordEnumeration(seq uint64, devices int, d time.Duration) {
	c.writePoint(MeasurementEnumeration, nil, map[string]any{
		"seq":         int64(seq), //nolint:gosec // sequence numbers never approach MaxInt64
		"devices":     devices,
		"duration_ms": durationMS(d),
	}, time.Now())
}

// RecordCommand implements coordinator.Metrics.
func (c *Client) RecordCommand(op coordinator.Op, outcome coordinator.Outcome, d time.Duration) {
	c.writePoint(MeasurementCommand,
		map[string]string{"kind": string(op), "outcome": string(outcome)},
		map[string]any{"duration_ms": durationMS(d)},
		time.Now(),
	)
}

// RecordGatewayCall implements coordinator.Metrics.
func (c *Client) RecordGatewayCall(op coordinator.Op, ok bool, d time.Duration) {
	c.writePoint(MeasurementGatewayCall,
		map[string]string{"op": string(op), "ok": strconv.FormatBool(ok)},
		map[string]any{"duration_ms": durationMS(d)},
		time.Now(),
	)
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
