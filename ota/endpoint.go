package ota

import (
	"fmt"
	"net"
	"strconv"
)

const (
	// DefaultPort is the HTTP port the device is told to poll.
	DefaultPort = 8000

	ManifestPath = "/ota.txt"
	BinaryPath   = "/update.bin"

	// UpdateCommand is the AT command that makes the modem fetch a manifest.
	UpdateCommand = "AT$UPDATE!"
)

// Endpoint is the address advertised to the device. It is computed once at
// startup and never changes afterwards.
type Endpoint struct {
	Host string
	Port int
}

// Addr returns host:port suitable for net.Listen.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// URL returns the absolute http URL for path.
func (e Endpoint) URL(path string) string {
	return "http://" + e.Addr() + path
}

func (e Endpoint) ManifestURL() string { return e.URL(ManifestPath) }

func (e Endpoint) BinaryURL() string { return e.URL(BinaryPath) }

// Command is the line an operator sends to the device to start the update.
func (e Endpoint) Command() string {
	return fmt.Sprintf("%s %s", UpdateCommand, e.ManifestURL())
}
