// Package device defines the device record exchanged between the BlueZ
// gateway, the coordinator, and every presentation adapter.
//
// A Record is a value snapshot of one peripheral taken during a single
// enumeration. Records are never patched in place: each enumeration yields a
// fresh slice and consumers replace their whole list with it.
//
// # Key Types
//
//   - Record: id, display name, category, connected, paired
//   - Category: icon class derived from the BlueZ Icon property
//   - Policy: ordered comparator rules used to sort a device list
//
// # Ordering
//
// The default policy pins the preferred product name first, then sorts
// connected devices, then paired devices, then by name and finally by ID:
//
//	sorted := device.DefaultPolicy().Sort(records)
//
// The preferred-name rule is an ordinary Rule value, so callers can replace
// or drop it without touching the rest of the order:
//
//	p := device.NewPolicy(device.PreferredName("My Buds"), device.ConnectedFirst, device.PairedFirst, device.ByName)
package device
