package security

import (
	"strconv"
	"strings"
)

// RedactedIPPlaceholder is returned for inputs that are not IPv4 dotted quads
const RedactedIPPlaceholder = "xxx.xxx.xxx.xxx"

// RedactIP partially redacts an IP address for display: IPv4 dotted
// quads keep their first three octets with the last replaced by "xxx";
// anything else (IPv6, hostnames, garbage) becomes a fixed placeholder.
// Empty input is returned unchanged so absent addresses stay absent.
func RedactIP(ip string) string {
	if ip == "" {
		return ""
	}

	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return RedactedIPPlaceholder
	}
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 || part != strconv.Itoa(n) {
			return RedactedIPPlaceholder
		}
	}

	return parts[0] + "." + parts[1] + "." + parts[2] + ".xxx"
}
