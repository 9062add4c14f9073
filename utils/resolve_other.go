//go:build !linux

package utils

import (
	"context"
	"fmt"
	"net"
	"os/exec"
)

func defaultRouteAddr(ctx context.Context) (net.IP, error) {
	out, err := exec.CommandContext(ctx, "route", "-n", "get", "0.0.0.0").Output()
	if err != nil {
		return nil, fmt.Errorf("route get: %w", err)
	}
	addr, iface := parseRouteGet(string(out))
	if ip := net.ParseIP(addr).To4(); ip != nil {
		return ip, nil
	}
	if iface == "" {
		return nil, fmt.Errorf("no interface in route output")
	}
	return FirstIPv4Addr(iface)
}
