// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rd-std/src/tests/net.rs (MyUdpSocket over a channel Pipe)

package testnet

import (
	"context"
	"net/netip"

	"github.com/rdproxy/rdnet"
)

type udpPacket struct {
	buf  []byte
	from netip.AddrPort
}

// udpEndpoint is the [rdnet.UDPSocket] side of a bound UDP port. SendTo
// looks up the destination port's endpoint directly in the owning
// TestNet's table and delivers into its inbox, simulating a loopback
// datagram without any real socket.
type udpEndpoint struct {
	net   *TestNet
	local netip.AddrPort
	inbox chan udpPacket
}

var _ rdnet.UDPSocket = (*udpEndpoint)(nil)

func (e *udpEndpoint) SendTo(ctx context.Context, buf []byte, to rdnet.Address) (int, error) {
	e.net.mu.Lock()
	dest, ok := e.net.udpEndpoints[portKey{protocolUDP, to.PortNumber()}]
	e.net.mu.Unlock()
	if !ok {
		// original_source's test net silently drops sends to an unbound
		// UDP port rather than failing the call.
		return len(buf), nil
	}
	cp := append([]byte(nil), buf...)
	select {
	case dest.inbox <- udpPacket{buf: cp, from: e.local}:
		return len(buf), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (e *udpEndpoint) RecvFrom(ctx context.Context, buf []byte) (int, rdnet.Address, error) {
	select {
	case pkt := <-e.inbox:
		n := copy(buf, pkt.buf)
		return n, rdnet.NewAddressSocket(pkt.from), nil
	case <-ctx.Done():
		return 0, rdnet.Address{}, ctx.Err()
	}
}

func (e *udpEndpoint) LocalAddr() (netip.AddrPort, error) { return e.local, nil }

func (e *udpEndpoint) Close() error {
	e.net.mu.Lock()
	delete(e.net.udpEndpoints, portKey{protocolUDP, e.local.Port()})
	e.net.mu.Unlock()
	return nil
}
