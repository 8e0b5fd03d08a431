// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rd-std/src/tests/net.rs

// Package testnet implements an in-memory rdnet.Net that simulates a
// loopback network without touching any real socket, for use by the end
// -to-end scenario tests in the engine and rule packages.
package testnet

import (
	"context"
	"net/netip"
	"sync"

	"github.com/rdproxy/rdnet"
)

type protocol int

const (
	protocolTCP protocol = iota
	protocolUDP
)

type portKey struct {
	proto protocol
	port  uint16
}

// TestNet simulates a single loopback host: every bound port lives in one
// shared table, and connects/sends are matched against it directly,
// without any real transport.
type TestNet struct {
	rdnet.BaseNet

	mu           sync.Mutex
	nextPort     uint16
	listeners    map[portKey]*listener
	udpEndpoints map[portKey]*udpEndpoint
}

var _ rdnet.Net = (*TestNet)(nil)

// New returns an empty TestNet.
func New() *TestNet {
	return &TestNet{
		nextPort:     1,
		listeners:    make(map[portKey]*listener),
		udpEndpoints: make(map[portKey]*udpEndpoint),
	}
}

// Capabilities implements [rdnet.Net].
func (n *TestNet) Capabilities() rdnet.Capability {
	return rdnet.CapTCPConnect | rdnet.CapTCPBind | rdnet.CapUDPBind | rdnet.CapLookupHost
}

func loopback(port uint16) netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), port)
}

// allocPort returns the requested port if free (0 means "pick one"),
// mirroring original_source's Inner::get_port.
func (n *TestNet) allocPort(proto protocol, want uint16, taken func(portKey) bool) (uint16, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	port := want
	if port == 0 {
		port = n.nextPort
		n.nextPort++
	}
	if taken(portKey{proto, port}) {
		return 0, rdnet.ErrAddrInUse
	}
	return port, nil
}

// TCPConnect implements [rdnet.Net]: looks up the listener bound to
// addr's port and hands it one end of an in-process pipe.
func (n *TestNet) TCPConnect(ctx context.Context, _ *rdnet.Context, addr rdnet.Address) (rdnet.TCPStream, error) {
	localPort, err := n.allocPort(protocolTCP, 0, func(k portKey) bool {
		_, ok := n.listeners[k]
		return ok
	})
	if err != nil {
		return nil, err
	}
	local := loopback(localPort)
	peer := loopback(addr.PortNumber())

	n.mu.Lock()
	lst, ok := n.listeners[portKey{protocolTCP, addr.PortNumber()}]
	n.mu.Unlock()
	if !ok {
		return nil, rdnet.ErrConnectionRefused
	}

	clientSide, serverSide := newPipePair(local, peer)
	select {
	case lst.accept <- serverSide:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return clientSide, nil
}

// TCPBind implements [rdnet.Net].
func (n *TestNet) TCPBind(_ context.Context, _ *rdnet.Context, addr rdnet.Address) (rdnet.TCPListener, error) {
	port, err := n.allocPort(protocolTCP, addr.PortNumber(), func(k portKey) bool {
		_, ok := n.listeners[k]
		return ok
	})
	if err != nil {
		return nil, err
	}
	lst := &listener{local: loopback(port), accept: make(chan *pipeStream, 16)}
	n.mu.Lock()
	n.listeners[portKey{protocolTCP, port}] = lst
	n.mu.Unlock()
	return lst, nil
}

// UDPBind implements [rdnet.Net].
func (n *TestNet) UDPBind(_ context.Context, _ *rdnet.Context, addr rdnet.Address) (rdnet.UDPSocket, error) {
	port, err := n.allocPort(protocolUDP, addr.PortNumber(), func(k portKey) bool {
		_, ok := n.udpEndpoints[k]
		return ok
	})
	if err != nil {
		return nil, err
	}
	ep := &udpEndpoint{net: n, local: loopback(port), inbox: make(chan udpPacket, 64)}
	n.mu.Lock()
	n.udpEndpoints[portKey{protocolUDP, port}] = ep
	n.mu.Unlock()
	return ep, nil
}

// LookupHost implements [rdnet.Net], always resolving to the loopback
// address for addr's port (original_source's lookup_host: "Ok(vec![make_sa(addr.port())])").
func (n *TestNet) LookupHost(_ context.Context, addr rdnet.Address) ([]netip.AddrPort, error) {
	return []netip.AddrPort{loopback(addr.PortNumber())}, nil
}

// listener is the [rdnet.TCPListener] side of a bound TCP port.
type listener struct {
	local  netip.AddrPort
	accept chan *pipeStream
}

func (l *listener) Accept(ctx context.Context) (rdnet.TCPStream, netip.AddrPort, error) {
	select {
	case s := <-l.accept:
		return s, s.peer, nil
	case <-ctx.Done():
		return nil, netip.AddrPort{}, ctx.Err()
	}
}

func (l *listener) LocalAddr() (netip.AddrPort, error) { return l.local, nil }
func (l *listener) Close() error                        { return nil }
