// Package config handles loading and validating the bluewidget daemon configuration.
//
// This package manages:
//   - Loading configuration from a YAML file (optional; defaults apply when absent)
//   - Overriding with BLUEWIDGET_* environment variables
//   - Validation of enabled integrations
//
// The daemon config is distinct from the per-user widget settings in
// internal/settings: this file describes how the process is wired (adapter,
// timeouts, API, MQTT, InfluxDB, audit) while the settings file holds
// user-facing preferences such as the refresh interval.
//
// Security Considerations:
//   - Secrets (MQTT password, InfluxDB token, JWT secret) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("/etc/bluewidget/config.yaml")
//	if err != nil {
//	    return err
//	}
//	timeout := cfg.GetCallTimeout()
package config
