// Package bridge mirrors the coordinator onto an MQTT broker.
//
// Outbound, it publishes each delivered device list as a retained message
// and each command report as an event. Inbound, it turns messages on the
// command topics into coordinator requests. It never touches the Bluetooth
// gateway directly.
package bridge
