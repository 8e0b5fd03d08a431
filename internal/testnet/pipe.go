// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rd-std/src/tests/net.rs (MyTcpStream over a channel Pipe)

package testnet

import (
	"net"
	"net/netip"

	"github.com/rdproxy/rdnet"
)

// pipeStream is one end of a simulated TCP connection, backed by a real
// [net.Pipe] for the byte stream but carrying the fake loopback addresses
// the TestNet allocated, so PeerAddr/LocalAddr report the simulated
// ports rather than net.Pipe's synthetic "pipe" addresses.
type pipeStream struct {
	net.Conn
	local, peer netip.AddrPort
}

var _ rdnet.TCPStream = (*pipeStream)(nil)

// newPipePair returns the two stream ends of one simulated connection:
// clientSide believes its local/peer are (local, peer); serverSide is the
// same pipe from the other side, so its local/peer are swapped.
func newPipePair(local, peer netip.AddrPort) (clientSide, serverSide *pipeStream) {
	a, b := net.Pipe()
	clientSide = &pipeStream{Conn: a, local: local, peer: peer}
	serverSide = &pipeStream{Conn: b, local: peer, peer: local}
	return
}

func (s *pipeStream) CloseWrite() error { return s.Conn.Close() }

func (s *pipeStream) PeerAddr() (netip.AddrPort, error)  { return s.peer, nil }
func (s *pipeStream) LocalAddr() (netip.AddrPort, error) { return s.local, nil }
func (s *pipeStream) IsWriteVectored() bool              { return false }
