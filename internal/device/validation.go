package device

import (
	"fmt"
	"regexp"
	"strings"
)

var addressRegex = regexp.MustCompile(`^[0-9A-F]{2}(:[0-9A-F]{2}){5}$`)

// NormaliseID upper-cases a Bluetooth address and validates its shape.
//
// Identifiers arrive from HTTP paths, MQTT topics, and the command line; the
// BlueZ object path is derived from them, so anything that is not a
// colon-separated six-octet address is rejected.
func NormaliseID(id string) (string, error) {
	norm := strings.ToUpper(strings.TrimSpace(id))
	if !addressRegex.MatchString(norm) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return norm, nil
}
