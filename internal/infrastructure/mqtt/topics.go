package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration leaves the prefix empty.
const DefaultTopicPrefix = "bluewidget"

// Topics builds the service's MQTT topic names under a prefix.
//
//	{prefix}/devices                      retained ordered device list
//	{prefix}/event/command                command reports
//	{prefix}/system/status                online/offline, also the LWT
//	{prefix}/command/refresh              request an enumeration
//	{prefix}/command/power                payload {"powered": bool}
//	{prefix}/command/device/{id}/{kind}   connect, disconnect, or pair
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// Devices returns the retained device list topic.
func (t Topics) Devices() string { return t.prefix() + "/devices" }

// CommandEvent returns the topic command reports are published on.
func (t Topics) CommandEvent() string { return t.prefix() + "/event/command" }

// SystemStatus returns the online/offline status topic.
func (t Topics) SystemStatus() string { return t.prefix() + "/system/status" }

// CommandRefresh returns the refresh request topic.
func (t Topics) CommandRefresh() string { return t.prefix() + "/command/refresh" }

// CommandPower returns the adapter power topic.
func (t Topics) CommandPower() string { return t.prefix() + "/command/power" }

// DeviceCommand returns the topic for one per-device command.
//
// Colons are not special in MQTT, so the address is used as is.
func (t Topics) DeviceCommand(id, kind string) string {
	return t.prefix() + "/command/device/" + id + "/" + kind
}

// AllDeviceCommands returns a wildcard matching every DeviceCommand topic.
func (t Topics) AllDeviceCommands() string {
	return t.prefix() + "/command/device/+/+"
}

// ParseDeviceCommand extracts the id and kind from a DeviceCommand topic.
func (t Topics) ParseDeviceCommand(topic string) (id, kind string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix()+"/command/device/")
	if !found {
		return "", "", false
	}
	id, kind, found = strings.Cut(rest, "/")
	if !found || id == "" || kind == "" || strings.Contains(kind, "/") {
		return "", "", false
	}
	return id, kind, true
}
