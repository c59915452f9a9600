// Package bluez implements the coordinator Gateway on top of the BlueZ
// D-Bus API.
//
// A Gateway owns one system bus connection and one adapter. It is not safe
// for concurrent use; the coordinator serialises every call. Each bus call
// is bounded by the configured call timeout and passes through a circuit
// breaker, so a wedged bluetoothd fails fast instead of holding the
// coordinator gate for a full timeout on every call.
//
// Object layout used:
//
//	/org/bluez                           org.bluez.AgentManager1
//	/org/bluez/hci0                      org.bluez.Adapter1
//	/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF org.bluez.Device1
package bluez
