// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rd-std/src/builtin/blackhole.rs

package builtin

import (
	"context"
	"net/netip"

	"github.com/rdproxy/rdnet"
)

// Blackhole accepts every connection and discards/pends forever: reads
// block until ctx is cancelled, writes succeed and discard.
type Blackhole struct {
	rdnet.BaseNet
}

var _ rdnet.Net = (*Blackhole)(nil)

// NewBlackhole builds the blackhole net.
func NewBlackhole() *Blackhole { return &Blackhole{} }

// Capabilities implements [rdnet.Net].
func (*Blackhole) Capabilities() rdnet.Capability {
	return rdnet.CapTCPConnect | rdnet.CapUDPBind
}

// TCPConnect implements [rdnet.Net], returning a stream that discards
// writes and blocks reads until its context is done.
func (*Blackhole) TCPConnect(ctx context.Context, _ *rdnet.Context, _ rdnet.Address) (rdnet.TCPStream, error) {
	return newBlackholeStream(ctx), nil
}

// UDPBind implements [rdnet.Net], returning a socket that discards every
// send and never delivers a datagram.
func (*Blackhole) UDPBind(ctx context.Context, _ *rdnet.Context, _ rdnet.Address) (rdnet.UDPSocket, error) {
	return &blackholeSocket{ctx: ctx}, nil
}

type blackholeStream struct {
	ctx context.Context
}

func newBlackholeStream(ctx context.Context) *blackholeStream {
	return &blackholeStream{ctx: ctx}
}

func (b *blackholeStream) Read([]byte) (int, error) {
	<-b.ctx.Done()
	return 0, b.ctx.Err()
}

func (b *blackholeStream) Write(p []byte) (int, error) { return len(p), nil }
func (b *blackholeStream) Close() error                { return nil }
func (b *blackholeStream) CloseWrite() error           { return nil }
func (b *blackholeStream) IsWriteVectored() bool        { return false }

func (b *blackholeStream) PeerAddr() (netip.AddrPort, error) {
	return netip.AddrPort{}, rdnet.ErrNotImplemented
}

func (b *blackholeStream) LocalAddr() (netip.AddrPort, error) {
	return netip.AddrPort{}, rdnet.ErrNotImplemented
}

type blackholeSocket struct {
	ctx context.Context
}

func (s *blackholeSocket) SendTo(context.Context, []byte, rdnet.Address) (int, error) {
	return 0, nil
}

func (s *blackholeSocket) RecvFrom(ctx context.Context, _ []byte) (int, rdnet.Address, error) {
	<-ctx.Done()
	return 0, rdnet.Address{}, ctx.Err()
}

func (s *blackholeSocket) LocalAddr() (netip.AddrPort, error) {
	return netip.AddrPort{}, rdnet.ErrNotImplemented
}

func (s *blackholeSocket) Close() error { return nil }
