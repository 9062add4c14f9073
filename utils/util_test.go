package utils

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePort(t *testing.T) {
	for in, want := range map[string]int{":69": 69, "0.0.0.0:111": 111, "2049": 2049} {
		got, err := ParsePort(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "abc", "host:", ":70000", "1:2:3"} {
		_, err := ParsePort(in)
		assert.Error(t, err, in)
	}
}

func TestParseRouteGet(t *testing.T) {
	out := `   route to: default
destination: default
       mask: default
    gateway: 192.168.1.1
  interface: en0
      flags: <UP,GATEWAY,DONE,STATIC,PRCLONING>
 recvpipe  sendpipe  ssthresh  rtt,msec    rttvar  hopcount      mtu     expire
       0         0         0         0         0         0      1500         0
`
	addr, iface := parseRouteGet(out)
	assert.Equal(t, "", addr)
	assert.Equal(t, "en0", iface)

	addr, iface = parseRouteGet(out + "if address: 192.168.1.10\n")
	assert.Equal(t, "192.168.1.10", addr)
	assert.Equal(t, "en0", iface)
}

func TestStaticResolver(t *testing.T) {
	ip, err := StaticResolver("10.0.0.5").Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", ip.String())

	_, err = StaticResolver("fe80::1").Resolve(context.Background())
	require.ErrorIs(t, err, ErrAddressResolution)
	_, err = StaticResolver("not-an-ip").Resolve(context.Background())
	require.ErrorIs(t, err, ErrAddressResolution)
}

func TestInterfaceResolverLoopback(t *testing.T) {
	ifaces, err := net.Interfaces()
	require.NoError(t, err)
	var lo string
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagLoopback != 0 && ifc.Flags&net.FlagUp != 0 {
			lo = ifc.Name
			break
		}
	}
	if lo == "" {
		t.Skip("no loopback interface")
	}
	ip, err := InterfaceResolver(lo).Resolve(context.Background())
	if err != nil {
		t.Skipf("loopback has no IPv4: %v", err)
	}
	assert.True(t, ip.IsLoopback(), "got %s", ip)
}

func TestInterfaceResolverMissing(t *testing.T) {
	_, err := InterfaceResolver("does-not-exist0").Resolve(context.Background())
	require.ErrorIs(t, err, ErrAddressResolution)
}

func TestNewResolver(t *testing.T) {
	assert.IsType(t, StaticResolver(""), NewResolver("1.2.3.4", "eth0"))
	assert.IsType(t, InterfaceResolver(""), NewResolver("", "eth0"))
	assert.IsType(t, DefaultRouteResolver{}, NewResolver("", ""))
}

func TestDefaultRouteResolverCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := DefaultRouteResolver{}.Resolve(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFirstIPv4(t *testing.T) {
	_, v6, _ := net.ParseCIDR("fe80::1/64")
	_, v4, _ := net.ParseCIDR("10.1.2.0/24")
	ip, err := firstIPv4([]net.Addr{v6, &net.IPNet{IP: net.ParseIP("10.1.2.3"), Mask: v4.Mask}})
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", ip.String())

	_, err = firstIPv4([]net.Addr{v6})
	require.Error(t, err)
}
