// Package mqtt provides the optional MQTT client used to mirror the device
// list and command reports onto a broker, and to accept commands from it.
//
// The client manages:
//   - Connection with auto-reconnect and subscription restore
//   - A retained online/offline status with an LWT for crashes
//   - Publishing with QoS and retained flags
//   - Subscriptions with panic-safe handlers
//
// # Topics
//
// All topics live under a configurable prefix (default "bluewidget"):
//
//	bluewidget/devices                      retained device list
//	bluewidget/event/command                command reports
//	bluewidget/system/status                online/offline
//	bluewidget/command/refresh              refresh request
//	bluewidget/command/power                {"powered": true}
//	bluewidget/command/device/{id}/{kind}   connect, disconnect, pair
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	t := client.Topics()
//	err = client.Subscribe(t.CommandRefresh(), 1, func(_ string, _ []byte) error {
//	    coord.Refresh()
//	    return nil
//	})
package mqtt
