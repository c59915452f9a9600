// Package influxdb writes operational metrics about the service to InfluxDB.
//
// Three measurements are written, all non-blocking and batched:
//
//	enumeration   fields: seq, devices, duration_ms
//	command       tags: kind, outcome    fields: duration_ms
//	gateway_call  tags: op, ok           fields: duration_ms
//
// Device state is never written. *Client implements coordinator.Metrics:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err == nil {
//	    opts.Metrics = client
//	    defer client.Close()
//	}
package influxdb
