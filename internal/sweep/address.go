package sweep

import (
	"strconv"
	"strings"
)

// Host numbers probed in every /24. Network (.0) and broadcast (.255) are
// never probed.
const (
	FirstHost = 1
	LastHost  = 254
	HostCount = LastHost - FirstHost + 1
)

// Address returns the dotted-quad address for host h in prefix.
func Address(prefix string, h int) string {
	return prefix + "." + strconv.Itoa(h)
}

// Addresses returns every probed address in prefix, in ascending order.
func Addresses(prefix string) []string {
	addrs := make([]string, 0, HostCount)
	for h := FirstHost; h <= LastHost; h++ {
		addrs = append(addrs, Address(prefix, h))
	}
	return addrs
}

// ValidPrefix reports whether prefix looks like the first three octets of
// an IPv4 address, e.g. "192.168.1".
func ValidPrefix(prefix string) bool {
	parts := strings.Split(prefix, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 {
			return false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 || strings.HasPrefix(p, "+") {
			return false
		}
	}
	return true
}
