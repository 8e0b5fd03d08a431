// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rd-interface/src/util.rs
// Adapted from: original_source/rd-std/src/tests/net.rs

package rdnet

import (
	"context"
	"io"
	"net/netip"
)

// TCPStream is a bidirectional byte stream returned by TcpConnect or
// accepted by a TCPListener. Implementations that sit atop a transport
// supporting vectored I/O should also implement io.ReaderFrom/io.WriterTo
// and report IsWriteVectored() true, so a bidirectional copy loop can pick
// the zero-copy path when both ends support it.
type TCPStream interface {
	io.Reader
	io.Writer
	io.Closer

	// CloseWrite half-closes the write side, if the transport supports it.
	CloseWrite() error

	PeerAddr() (netip.AddrPort, error)
	LocalAddr() (netip.AddrPort, error)

	// IsWriteVectored reports whether Write accepts vectored buffers
	// efficiently (i.e. the underlying type also implements io.ReaderFrom
	// in a way that avoids an intermediate copy).
	IsWriteVectored() bool
}

// TCPListener is returned by TcpBind.
type TCPListener interface {
	Accept(ctx context.Context) (TCPStream, netip.AddrPort, error)
	LocalAddr() (netip.AddrPort, error)
	Close() error
}

// UDPSocket is returned by UdpBind. Implementations may themselves resolve
// domain-form destinations on Send rather than require the caller to
// pre-resolve them.
type UDPSocket interface {
	RecvFrom(ctx context.Context, buf []byte) (n int, from Address, err error)
	SendTo(ctx context.Context, buf []byte, to Address) (n int, err error)
	LocalAddr() (netip.AddrPort, error)
	Close() error
}

// Capability is a bit tagging one of the four capabilities a Net may
// declare. Callers query presence before relying on a method's behavior.
type Capability int

const (
	CapTCPConnect Capability = 1 << iota
	CapTCPBind
	CapUDPBind
	CapLookupHost
)

// Has reports whether c includes cap.
func (c Capability) Has(cap Capability) bool {
	return c&cap != 0
}

// Net is the abstract capability set every transport implements. A
// concrete Net need not implement every
// method meaningfully: methods for capabilities it lacks return
// [ErrNotImplemented]. Callers should consult Capabilities() before
// calling a method whose failure mode they care about distinguishing
// from a runtime error.
type Net interface {
	// Capabilities reports which of TcpConnect/TcpBind/UdpBind/LookupHost
	// this Net meaningfully implements.
	Capabilities() Capability

	TCPConnect(ctx context.Context, cctx *Context, addr Address) (TCPStream, error)
	TCPBind(ctx context.Context, cctx *Context, addr Address) (TCPListener, error)
	UDPBind(ctx context.Context, cctx *Context, addr Address) (UDPSocket, error)
	LookupHost(ctx context.Context, addr Address) ([]netip.AddrPort, error)

	// GetInner lets decorators expose the Net they wrap, used by
	// diagnostics to walk a chain of decorators down to its leaf. Leaf
	// nets return nil.
	GetInner() Net
}

// BaseNet provides NotImplemented-returning defaults for all four
// capabilities plus a nil GetInner, so concrete nets only need to embed it
// and override the methods for capabilities they actually provide —
// mirroring original_source/rd-interface/src/util.rs's NotImplementedNet.
type BaseNet struct{}

var _ Net = BaseNet{}

func (BaseNet) Capabilities() Capability { return 0 }

func (BaseNet) TCPConnect(context.Context, *Context, Address) (TCPStream, error) {
	return nil, ErrNotImplemented
}

func (BaseNet) TCPBind(context.Context, *Context, Address) (TCPListener, error) {
	return nil, ErrNotImplemented
}

func (BaseNet) UDPBind(context.Context, *Context, Address) (UDPSocket, error) {
	return nil, ErrNotImplemented
}

func (BaseNet) LookupHost(context.Context, Address) ([]netip.AddrPort, error) {
	return nil, ErrNotImplemented
}

func (BaseNet) GetInner() Net { return nil }
