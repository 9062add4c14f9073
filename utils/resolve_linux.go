//go:build linux

package utils

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

func defaultRouteAddr(context.Context) (net.IP, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	def := pickDefaultRoute(routes)
	if def == nil {
		return nil, errors.New("no IPv4 default route")
	}
	if ip := def.Src.To4(); ip != nil {
		return ip, nil
	}

	link, err := netlink.LinkByIndex(def.LinkIndex)
	if err != nil {
		return nil, fmt.Errorf("link %d: %w", def.LinkIndex, err)
	}
	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("addresses of %s: %w", link.Attrs().Name, err)
	}
	for _, a := range addrs {
		if a.IPNet != nil && a.IP.To4() != nil {
			return a.IP.To4(), nil
		}
	}
	return nil, fmt.Errorf("no IPv4 on %s", link.Attrs().Name)
}

// pickDefaultRoute returns the default route with the lowest metric.
func pickDefaultRoute(routes []netlink.Route) *netlink.Route {
	var best *netlink.Route
	for i := range routes {
		r := &routes[i]
		if !isDefault(r.Dst) {
			continue
		}
		if best == nil || r.Priority < best.Priority {
			best = r
		}
	}
	return best
}

func isDefault(dst *net.IPNet) bool {
	if dst == nil {
		return true
	}
	ones, _ := dst.Mask.Size()
	return ones == 0 && dst.IP.IsUnspecified()
}
