package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrAddressResolution is wrapped by every resolver failure.
var ErrAddressResolution = errors.New("cannot determine local IPv4 address")

// AddressResolver finds the IPv4 address advertised to the device.
type AddressResolver interface {
	Resolve(ctx context.Context) (net.IP, error)
}

// NewResolver picks a resolver: an explicit host wins over an interface
// name, and the default route is used when neither is set.
func NewResolver(host, iface string) AddressResolver {
	switch {
	case host != "":
		return StaticResolver(host)
	case iface != "":
		return InterfaceResolver(iface)
	default:
		return DefaultRouteResolver{}
	}
}

// StaticResolver returns a fixed address.
type StaticResolver string

func (s StaticResolver) Resolve(context.Context) (net.IP, error) {
	ip := net.ParseIP(string(s)).To4()
	if ip == nil {
		return nil, fmt.Errorf("%w: %q is not an IPv4 address", ErrAddressResolution, string(s))
	}
	return ip, nil
}

// InterfaceResolver returns the first IPv4 address of the named interface.
type InterfaceResolver string

func (i InterfaceResolver) Resolve(context.Context) (net.IP, error) {
	ip, err := FirstIPv4Addr(string(i))
	if err != nil {
		return nil, fmt.Errorf("%w: interface %s: %v", ErrAddressResolution, string(i), err)
	}
	return ip, nil
}

// DefaultRouteResolver returns the address of the interface carrying the
// IPv4 default route.
type DefaultRouteResolver struct{}

func (DefaultRouteResolver) Resolve(ctx context.Context) (net.IP, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ip, err := defaultRouteAddr(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: default route: %v", ErrAddressResolution, err)
	}
	if ip.To4() == nil || ip.IsUnspecified() {
		return nil, fmt.Errorf("%w: default route has no usable source address", ErrAddressResolution)
	}
	return ip.To4(), nil
}

func IfaceByName(name string) (*net.Interface, error) {
	ifc, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	if (ifc.Flags & net.FlagUp) == 0 {
		return nil, fmt.Errorf("interface %s is down", name)
	}
	return ifc, nil
}

func FirstIPv4Addr(name string) (net.IP, error) {
	ifc, err := IfaceByName(name)
	if err != nil {
		return nil, err
	}
	addrs, err := ifc.Addrs()
	if err != nil {
		return nil, err
	}
	return firstIPv4(addrs)
}

func firstIPv4(addrs []net.Addr) (net.IP, error) {
	for _, a := range addrs {
		switch v := a.(type) {
		case *net.IPNet:
			if ip := v.IP.To4(); ip != nil {
				return ip, nil
			}
		case *net.IPAddr:
			if ip := v.IP.To4(); ip != nil {
				return ip, nil
			}
		}
	}
	return nil, errors.New("no IPv4 on interface")
}
