// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rd-interface/src/net.rs (AsyncRead/AsyncWrite adapters over std sockets)

package builtin

import (
	"context"
	"io"
	"net"
	"net/netip"

	"github.com/rdproxy/rdnet"
)

// tcpStream adapts a [net.Conn] (almost always a [*net.TCPConn]) to
// [rdnet.TCPStream].
type tcpStream struct {
	net.Conn
}

var _ rdnet.TCPStream = (*tcpStream)(nil)

func newTCPStream(conn net.Conn) *tcpStream {
	return &tcpStream{Conn: conn}
}

// halfCloser is implemented by [*net.TCPConn] and [*net.UnixConn].
type halfCloser interface {
	CloseWrite() error
}

// CloseWrite implements [rdnet.TCPStream], falling back to a full Close
// if the underlying conn doesn't support half-close.
func (t *tcpStream) CloseWrite() error {
	if hc, ok := t.Conn.(halfCloser); ok {
		return hc.CloseWrite()
	}
	return t.Conn.Close()
}

// PeerAddr implements [rdnet.TCPStream].
func (t *tcpStream) PeerAddr() (netip.AddrPort, error) {
	return toAddrPort(t.Conn.RemoteAddr())
}

// LocalAddr implements [rdnet.TCPStream].
func (t *tcpStream) LocalAddr() (netip.AddrPort, error) {
	return toAddrPort(t.Conn.LocalAddr())
}

// IsWriteVectored reports whether the underlying conn supports
// [io.ReaderFrom]-based vectored writes (true for [*net.TCPConn]).
func (t *tcpStream) IsWriteVectored() bool {
	_, ok := t.Conn.(io.ReaderFrom)
	return ok
}

// toAddrPort converts any [net.Addr] backed by an IP:port pair (TCP or
// UDP) into a [netip.AddrPort] by round-tripping through its string form,
// which both [*net.TCPAddr] and [*net.UDPAddr] render consistently.
func toAddrPort(addr net.Addr) (netip.AddrPort, error) {
	ap, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		return netip.AddrPort{}, rdnet.Other(unsupportedAddrError{addr})
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}

type unsupportedAddrError struct{ addr net.Addr }

func (e unsupportedAddrError) Error() string {
	return "unsupported address type: " + e.addr.String()
}

// tcpListener adapts a [*net.TCPListener] to [rdnet.TCPListener].
type tcpListener struct {
	inner *net.TCPListener
}

var _ rdnet.TCPListener = (*tcpListener)(nil)

func (l *tcpListener) Accept(ctx context.Context) (rdnet.TCPStream, netip.AddrPort, error) {
	type result struct {
		conn *net.TCPConn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.inner.AcceptTCP()
		ch <- result{conn, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, netip.AddrPort{}, rdnet.Other(r.err)
		}
		peer, err := toAddrPort(r.conn.RemoteAddr())
		if err != nil {
			_ = r.conn.Close()
			return nil, netip.AddrPort{}, err
		}
		return newTCPStream(r.conn), peer, nil
	case <-ctx.Done():
		return nil, netip.AddrPort{}, ctx.Err()
	}
}

func (l *tcpListener) LocalAddr() (netip.AddrPort, error) {
	return toAddrPort(l.inner.Addr())
}

func (l *tcpListener) Close() error {
	return l.inner.Close()
}

// udpSocket adapts a [*net.UDPConn] to [rdnet.UDPSocket].
type udpSocket struct {
	conn *net.UDPConn
}

var _ rdnet.UDPSocket = (*udpSocket)(nil)

func (s *udpSocket) RecvFrom(ctx context.Context, buf []byte) (int, rdnet.Address, error) {
	type result struct {
		n    int
		addr *net.UDPAddr
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		n, addr, err := s.conn.ReadFromUDP(buf)
		ch <- result{n, addr, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return 0, rdnet.Address{}, rdnet.Other(r.err)
		}
		ap, err := toAddrPort(r.addr)
		if err != nil {
			return 0, rdnet.Address{}, err
		}
		return r.n, rdnet.NewAddressSocket(ap), nil
	case <-ctx.Done():
		return 0, rdnet.Address{}, ctx.Err()
	}
}

func (s *udpSocket) SendTo(_ context.Context, buf []byte, to rdnet.Address) (int, error) {
	if to.IsDomain() {
		return 0, rdnet.Other(domainSendError{to.Domain})
	}
	n, err := s.conn.WriteToUDP(buf, net.UDPAddrFromAddrPort(to.Socket))
	if err != nil {
		return n, rdnet.Other(err)
	}
	return n, nil
}

type domainSendError struct{ domain string }

func (e domainSendError) Error() string {
	return "cannot send to unresolved domain address: " + e.domain
}

func (s *udpSocket) LocalAddr() (netip.AddrPort, error) {
	return toAddrPort(s.conn.LocalAddr())
}

func (s *udpSocket) Close() error {
	return s.conn.Close()
}
