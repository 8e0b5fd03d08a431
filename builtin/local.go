// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rd-std/src/builtin/local.rs
// Adapted from: github.com/bassosimone/nop's connect.go (ConnectFunc/Dialer)

// Package builtin implements the leaf and decorator nets every graph
// needs before any plugin-provided net is wired in: local, blackhole,
// reject, resolve, alias, the selector and the DNS-sniffer.
package builtin

import (
	"context"
	"net"
	"net/netip"

	"github.com/rdproxy/rdnet"
)

// Local is the production "dial the real OS socket" net, and the
// synthetic entry the graph builder inserts by default when a config
// omits one. It dials via the [rdnet.ConnectFunc]/[rdnet.Dialer] abstraction so
// tests can substitute a fake dialer without touching a real socket.
type Local struct {
	rdnet.BaseNet
	cfg    *rdnet.Config
	logger rdnet.SLogger
}

var _ rdnet.Net = (*Local)(nil)

// NewLocal builds the local net. cfg may be nil, in which case
// [rdnet.NewConfig] defaults (a real [*net.Dialer]) are used.
func NewLocal(cfg *rdnet.Config, logger rdnet.SLogger) *Local {
	if cfg == nil {
		cfg = rdnet.NewConfig()
	}
	if logger == nil {
		logger = rdnet.DefaultSLogger()
	}
	return &Local{cfg: cfg, logger: logger}
}

// Capabilities implements [rdnet.Net].
func (l *Local) Capabilities() rdnet.Capability {
	return rdnet.CapTCPConnect | rdnet.CapTCPBind | rdnet.CapUDPBind | rdnet.CapLookupHost
}

// TCPConnect implements [rdnet.Net] by resolving domain-form addresses
// and dialing through [rdnet.ConnectFunc].
func (l *Local) TCPConnect(ctx context.Context, _ *rdnet.Context, addr rdnet.Address) (rdnet.TCPStream, error) {
	target, err := l.resolveOne(ctx, addr)
	if err != nil {
		return nil, err
	}
	connector := rdnet.NewConnectFunc(l.cfg, "tcp", l.logger)
	conn, err := connector.Call(ctx, target)
	if err != nil {
		return nil, rdnet.Other(err)
	}
	return newTCPStream(conn), nil
}

// TCPBind implements [rdnet.Net] with a real OS listener.
func (l *Local) TCPBind(_ context.Context, _ *rdnet.Context, addr rdnet.Address) (rdnet.TCPListener, error) {
	lst, err := net.ListenTCP("tcp", net.TCPAddrFromAddrPort(addr.ToAnyAddrPort()))
	if err != nil {
		return nil, rdnet.Other(err)
	}
	return &tcpListener{inner: lst}, nil
}

// UDPBind implements [rdnet.Net] with a real OS UDP socket bound to the
// wildcard address of addr's family at addr's port
// ([rdnet.Address.ToAnyAddrPort]); the host part of addr, domain or IP,
// does not select a local interface.
func (l *Local) UDPBind(_ context.Context, _ *rdnet.Context, addr rdnet.Address) (rdnet.UDPSocket, error) {
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(addr.ToAnyAddrPort()))
	if err != nil {
		return nil, rdnet.Other(err)
	}
	return &udpSocket{conn: conn}, nil
}

// LookupHost implements [rdnet.Net] via the stdlib resolver.
func (l *Local) LookupHost(ctx context.Context, addr rdnet.Address) ([]netip.AddrPort, error) {
	if !addr.IsDomain() {
		return []netip.AddrPort{addr.Socket}, nil
	}
	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", addr.Domain)
	if err != nil {
		return nil, rdnet.Other(err)
	}
	out := make([]netip.AddrPort, 0, len(ips))
	for _, ip := range ips {
		out = append(out, netip.AddrPortFrom(ip, addr.Port))
	}
	return out, nil
}

// resolveOne returns addr unchanged if already resolved, or its first
// lookup result otherwise.
func (l *Local) resolveOne(ctx context.Context, addr rdnet.Address) (netip.AddrPort, error) {
	if !addr.IsDomain() {
		return addr.Socket, nil
	}
	addrs, err := l.LookupHost(ctx, addr)
	if err != nil {
		return netip.AddrPort{}, err
	}
	if len(addrs) == 0 {
		return netip.AddrPort{}, rdnet.NotFound(addr.Domain)
	}
	return addrs[0], nil
}
