package bridge

import (
	"time"

	"github.com/bluewidget/bluewidget/internal/coordinator"
	"github.com/bluewidget/bluewidget/internal/device"
)

// DevicesMessage is the retained payload on the devices topic.
type DevicesMessage struct {
	Seq         uint64          `json:"seq"`
	Devices     []device.Record `json:"devices"`
	PublishedAt time.Time       `json:"published_at"`
}

// ReportMessage is the payload on the command event topic.
type ReportMessage struct {
	Op        coordinator.Op `json:"op"`
	DeviceID  string         `json:"device_id,omitempty"`
	Simulated bool           `json:"simulated"`
	At        time.Time      `json:"at"`
}

// PowerMessage is the payload accepted on the power command topic.
type PowerMessage struct {
	Powered *bool `json:"powered"`
}

func newReportMessage(r coordinator.CommandReport) ReportMessage {
	return ReportMessage{
		Op:        r.Op,
		DeviceID:  r.DeviceID,
		Simulated: r.Simulated,
		At:        r.At.UTC(),
	}
}
