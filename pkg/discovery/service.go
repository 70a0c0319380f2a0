package discovery

import (
	"context"
	"net"
)

const (
	DefaultServiceType = "_sharestream._tcp"
	DefaultDomain      = "local"
)

// ServiceInfo describes one announced (or discovered) receiver on the LAN.
type ServiceInfo struct {
	Name     string // instance name
	Type     string // service type, e.g. "_sharestream._tcp"
	Domain   string // domain, e.g. "local"
	Addr     net.IP
	Port     int
	DeviceID string // stable peer identity, carried in TXT
}

// DiscoveryResult carries either a snapshot of the currently visible
// services or a browse error.
type DiscoveryResult struct {
	Services []ServiceInfo
	Error    error
}

type Adapter interface {
	Announce(ctx context.Context, service ServiceInfo) error
	Discover(ctx context.Context, service string) <-chan DiscoveryResult
}
