// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rabbit-digger/src/rabbit_digger/running.rs

package rdnet

import (
	"context"
	"net/netip"
	"sync/atomic"
)

// ConnKind distinguishes TCP and UDP connection records.
type ConnKind int

const (
	ConnKindTCP ConnKind = iota
	ConnKindUDP
)

// ConnHandle is what a tracked stream/socket holds on to: a cancel token
// plus byte counters, kept as flat per-flow state rather than a pointer
// graph. Implemented by
// [github.com/rdproxy/rdnet/connmgr.Handle]; declared here (rather than
// imported from connmgr) so that this package's tracked-stream wrappers do
// not need to import the connmgr package, avoiding an import cycle since
// connmgr itself depends on rdnet's Address/Context types.
type ConnHandle interface {
	// AddRead/AddWritten fold byte counts into the connection record.
	AddRead(n uint64)
	AddWritten(n uint64)
	// Stopped returns a channel closed once the manager has asked this
	// flow to abort.
	Stopped() <-chan struct{}
	// Done unregisters the connection record. Safe to call more than once.
	Done()
}

// ConnManager is the contract [*ServerNet] needs from a connection
// manager; satisfied by [github.com/rdproxy/rdnet/connmgr.Manager].
type ConnManager interface {
	NewConnection(kind ConnKind, destination Address, ctxSnapshot *Context) ConnHandle
}

// noopConnManager is used by tests and by nets built outside an Engine
// (e.g. directly against a Registry) that do not care about tracking.
type noopConnHandle struct{ stopped chan struct{} }

func (noopConnHandle) AddRead(uint64)               {}
func (noopConnHandle) AddWritten(uint64)             {}
func (h noopConnHandle) Stopped() <-chan struct{}    { return h.stopped }
func (noopConnHandle) Done()                         {}

type noopConnManager struct{}

func (noopConnManager) NewConnection(ConnKind, Address, *Context) ConnHandle {
	return noopConnHandle{stopped: make(chan struct{})}
}

// NoopConnManager is a [ConnManager] that tracks nothing; useful for
// building a graph without wiring a real connection manager.
var NoopConnManager ConnManager = noopConnManager{}

// RunningNet is a stable identity handle wrapping a Net whose backing
// implementation may be swapped atomically on reload. Every TCPConnect,
// TCPBind and UDPBind call appends name to the
// Context's net-list before delegating to the current impl; outstanding
// flows keep using the impl snapshot they captured at call time because
// the atomic load happens once per call, not once per byte.
type RunningNet struct {
	name string
	impl atomic.Pointer[Net]
}

var _ Net = (*RunningNet)(nil)

// NewRunningNet wraps impl under the stable name.
func NewRunningNet(name string, impl Net) *RunningNet {
	r := &RunningNet{name: name}
	r.impl.Store(&impl)
	return r
}

// Name returns the stable name this handle was registered under.
func (r *RunningNet) Name() string {
	return r.name
}

// UpdateImpl atomically replaces the backing implementation; the read
// path never takes a lock beyond the atomic load.
func (r *RunningNet) UpdateImpl(newImpl Net) {
	r.impl.Store(&newImpl)
}

// current loads the current implementation.
func (r *RunningNet) current() Net {
	return *r.impl.Load()
}

// Capabilities implements [Net], delegating to the current impl.
func (r *RunningNet) Capabilities() Capability {
	return r.current().Capabilities()
}

// TCPConnect implements [Net]: appends name to cctx's net-list, then
// delegates.
func (r *RunningNet) TCPConnect(ctx context.Context, cctx *Context, addr Address) (TCPStream, error) {
	cctx.AppendNet(r.name)
	return r.current().TCPConnect(ctx, cctx, addr)
}

// TCPBind implements [Net].
func (r *RunningNet) TCPBind(ctx context.Context, cctx *Context, addr Address) (TCPListener, error) {
	cctx.AppendNet(r.name)
	return r.current().TCPBind(ctx, cctx, addr)
}

// UDPBind implements [Net].
func (r *RunningNet) UDPBind(ctx context.Context, cctx *Context, addr Address) (UDPSocket, error) {
	cctx.AppendNet(r.name)
	return r.current().UDPBind(ctx, cctx, addr)
}

// LookupHost implements [Net]. It does not touch a Context (there is none
// at this layer) and so does not append to a net-list.
func (r *RunningNet) LookupHost(ctx context.Context, addr Address) ([]netip.AddrPort, error) {
	return r.current().LookupHost(ctx, addr)
}

// GetInner implements [Net], exposing the currently wrapped Net for
// diagnostics.
func (r *RunningNet) GetInner() Net {
	return r.current()
}

// ---------------------------------------------------------------------
// ServerNet (C6): server-wrapped egress net.
// ---------------------------------------------------------------------

// ServerNet sits between a server and its egress RunningNet. Every
// TCPConnect/UDPBind call: appends
// the server name to the context, records the destination extra, calls
// through to the inner net, and wraps the result so every read/write
// tallies into the connection manager. TCPBind only appends the server
// name before delegating.
type ServerNet struct {
	serverName string
	inner      Net
	manager    ConnManager
}

var _ Net = (*ServerNet)(nil)

// NewServerNet builds the C6 decorator for one server's egress net.
func NewServerNet(serverName string, inner Net, manager ConnManager) *ServerNet {
	if manager == nil {
		manager = NoopConnManager
	}
	return &ServerNet{serverName: serverName, inner: inner, manager: manager}
}

// Capabilities implements [Net].
func (s *ServerNet) Capabilities() Capability {
	return s.inner.Capabilities()
}

// TCPConnect implements [Net]: tags the context, records the
// destination, dials through the inner net, and wraps the result for
// connection-manager tracking.
func (s *ServerNet) TCPConnect(ctx context.Context, cctx *Context, addr Address) (TCPStream, error) {
	cctx.AppendNet(s.serverName)
	cctx.SetDestination(addr)
	stream, err := s.inner.TCPConnect(ctx, cctx, addr)
	if err != nil {
		return nil, err
	}
	handle := s.manager.NewConnection(ConnKindTCP, addr, cctx.Clone())
	return newTrackedStream(stream, handle), nil
}

// TCPBind implements [Net].
func (s *ServerNet) TCPBind(ctx context.Context, cctx *Context, addr Address) (TCPListener, error) {
	cctx.AppendNet(s.serverName)
	return s.inner.TCPBind(ctx, cctx, addr)
}

// UDPBind implements [Net]: wraps the socket to account per-packet sends
// and receives.
func (s *ServerNet) UDPBind(ctx context.Context, cctx *Context, addr Address) (UDPSocket, error) {
	cctx.AppendNet(s.serverName)
	cctx.SetDestination(addr)
	sock, err := s.inner.UDPBind(ctx, cctx, addr)
	if err != nil {
		return nil, err
	}
	handle := s.manager.NewConnection(ConnKindUDP, addr, cctx.Clone())
	return newTrackedUDPSocket(sock, handle), nil
}

// LookupHost implements [Net].
func (s *ServerNet) LookupHost(ctx context.Context, addr Address) ([]netip.AddrPort, error) {
	return s.inner.LookupHost(ctx, addr)
}

// GetInner implements [Net].
func (s *ServerNet) GetInner() Net {
	return s.inner
}

// ---------------------------------------------------------------------
// Tracked stream/socket: fold byte counts into the connection manager and
// check the cancel token on every I/O.
// ---------------------------------------------------------------------

type trackedStream struct {
	TCPStream
	handle ConnHandle
	closed atomic.Bool
}

func newTrackedStream(inner TCPStream, handle ConnHandle) *trackedStream {
	return &trackedStream{TCPStream: inner, handle: handle}
}

// checkStopped returns [ErrAbortedByUser] if the manager has asked this
// flow to stop, short-circuiting the I/O call.
func (t *trackedStream) checkStopped() error {
	select {
	case <-t.handle.Stopped():
		return ErrAbortedByUser
	default:
		return nil
	}
}

func (t *trackedStream) Read(p []byte) (int, error) {
	if err := t.checkStopped(); err != nil {
		return 0, err
	}
	n, err := t.TCPStream.Read(p)
	if n > 0 {
		t.handle.AddRead(uint64(n))
	}
	return n, err
}

func (t *trackedStream) Write(p []byte) (int, error) {
	if err := t.checkStopped(); err != nil {
		return 0, err
	}
	n, err := t.TCPStream.Write(p)
	if n > 0 {
		t.handle.AddWritten(uint64(n))
	}
	return n, err
}

// Close implements [io.Closer]; it both closes the inner stream and
// unregisters the connection record. Closing a tracked stream more than
// once still removes exactly one entry, guarded by closed.
func (t *trackedStream) Close() error {
	if t.closed.CompareAndSwap(false, true) {
		t.handle.Done()
	}
	return t.TCPStream.Close()
}

type trackedUDPSocket struct {
	UDPSocket
	handle ConnHandle
	closed atomic.Bool
}

func newTrackedUDPSocket(inner UDPSocket, handle ConnHandle) *trackedUDPSocket {
	return &trackedUDPSocket{UDPSocket: inner, handle: handle}
}

func (t *trackedUDPSocket) RecvFrom(ctx context.Context, buf []byte) (int, Address, error) {
	select {
	case <-t.handle.Stopped():
		return 0, Address{}, ErrAbortedByUser
	default:
	}
	n, from, err := t.UDPSocket.RecvFrom(ctx, buf)
	if n > 0 {
		t.handle.AddRead(uint64(n))
	}
	return n, from, err
}

func (t *trackedUDPSocket) SendTo(ctx context.Context, buf []byte, to Address) (int, error) {
	select {
	case <-t.handle.Stopped():
		return 0, ErrAbortedByUser
	default:
	}
	n, err := t.UDPSocket.SendTo(ctx, buf, to)
	if n > 0 {
		t.handle.AddWritten(uint64(n))
	}
	return n, err
}

func (t *trackedUDPSocket) Close() error {
	if t.closed.CompareAndSwap(false, true) {
		t.handle.Done()
	}
	return t.UDPSocket.Close()
}
