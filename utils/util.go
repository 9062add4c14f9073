package utils

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParsePort extracts the port from ":69", "0.0.0.0:69" or a bare "69".
func ParsePort(addr string) (int, error) {
	p := addr
	if _, port, err := net.SplitHostPort(addr); err == nil {
		p = port
	} else if strings.Contains(addr, ":") {
		return 0, fmt.Errorf("invalid addr %q: %w", addr, err)
	}
	v, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("invalid port in %q: %w", addr, err)
	}
	if v < 0 || v > 65535 {
		return 0, fmt.Errorf("port %d out of range in %q", v, addr)
	}
	return v, nil
}

// parseRouteGet pulls the interface address and name out of BSD
// `route -n get` output.
func parseRouteGet(out string) (addr, iface string) {
	for _, line := range strings.Split(out, "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "if address", "address":
			if addr == "" {
				addr = val
			}
		case "interface":
			iface = val
		}
	}
	return addr, iface
}
