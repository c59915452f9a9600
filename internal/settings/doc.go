// Package settings loads and saves the per-user widget preferences.
//
// Preferences live in a pretty-printed JSON file under the platform user
// config directory:
//
//	~/.config/bluetooth-widget/config.json
//
// Loading never fails. A missing or unreadable file yields Defaults, and the
// defaults are then written back on a best-effort basis so the user has a file
// to edit. A file that only sets some keys keeps the defaults for the rest.
//
// The Store type holds the current preferences behind an atomic pointer so
// the coordinator can read the functionality flag on every command without
// locking, and Reload can swap in an edited file at runtime.
package settings
