// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rabbit-digger/src/rabbit_digger/connection_manager.rs

// Package connmgr implements the connection manager: a registry of
// live flows plus coalesced event-batch subscriptions.
package connmgr

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rdproxy/rdnet"
)

// Connection is one tracked flow's record: identity, kind, destination, a
// snapshot of the context it was opened under, and running byte counters.
type Connection struct {
	UUID        string
	Kind        rdnet.ConnKind
	Destination rdnet.Address
	Context     *rdnet.Context
	StartTime   time.Time

	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64

	stopped  chan struct{}
	stopOnce sync.Once
}

// BytesRead returns the running total of bytes read on this flow.
func (c *Connection) BytesRead() uint64 { return c.bytesRead.Load() }

// BytesWritten returns the running total of bytes written on this flow.
func (c *Connection) BytesWritten() uint64 { return c.bytesWritten.Load() }

// requestStop closes the stopped channel exactly once, waking any tracked
// stream/socket blocked in or about to enter an I/O call.
func (c *Connection) requestStop() {
	c.stopOnce.Do(func() { close(c.stopped) })
}

// handle bridges a *Connection to the rdnet.ConnHandle contract a tracked
// stream/socket holds on to.
type handle struct {
	conn *Connection
	mgr  *Manager
}

var _ rdnet.ConnHandle = (*handle)(nil)

func (h *handle) AddRead(n uint64) {
	h.conn.bytesRead.Add(n)
	h.mgr.emit(Event{
		Kind:              EventTraffic,
		UUID:              h.conn.UUID,
		Destination:       h.conn.Destination,
		BytesReadDelta:    n,
	})
}

func (h *handle) AddWritten(n uint64) {
	h.conn.bytesWritten.Add(n)
	h.mgr.emit(Event{
		Kind:              EventTraffic,
		UUID:              h.conn.UUID,
		Destination:       h.conn.Destination,
		BytesWrittenDelta: n,
	})
}

func (h *handle) Stopped() <-chan struct{} { return h.conn.stopped }

// Done unregisters the connection record exactly once: closing a tracked
// stream or socket more than once still removes exactly one entry.
func (h *handle) Done() {
	h.mgr.remove(h.conn.UUID)
}

// Manager implements [rdnet.ConnManager]: it hands out tracked-flow
// handles, keeps a live map of connection records, and fans out coalesced
// event batches to subscribers.
type Manager struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	subMu       sync.Mutex
	subscribers map[*Subscriber]chan Event

	batchWindow time.Duration
	batchSize   int
	timeNow     func() time.Time
}

var _ rdnet.ConnManager = (*Manager)(nil)

// Option configures a [Manager] at construction time.
type Option func(*Manager)

// WithBatchWindow overrides the default 100ms coalescing window.
func WithBatchWindow(d time.Duration) Option {
	return func(m *Manager) { m.batchWindow = d }
}

// WithBatchSize overrides the default 16-event coalescing cap.
func WithBatchSize(n int) Option {
	return func(m *Manager) { m.batchSize = n }
}

// WithTimeNow overrides the time source, for tests.
func WithTimeNow(fn func() time.Time) Option {
	return func(m *Manager) { m.timeNow = fn }
}

// New returns an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		conns:       make(map[string]*Connection),
		subscribers: make(map[*Subscriber]chan Event),
		batchWindow: 100 * time.Millisecond,
		batchSize:   16,
		timeNow:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewConnection implements [rdnet.ConnManager]: registers a new flow and
// returns the handle its tracked stream/socket will use for the lifetime
// of the flow.
func (m *Manager) NewConnection(kind rdnet.ConnKind, destination rdnet.Address, ctxSnapshot *rdnet.Context) rdnet.ConnHandle {
	conn := &Connection{
		UUID:        rdnet.NewSpanID(),
		Kind:        kind,
		Destination: destination,
		Context:     ctxSnapshot,
		StartTime:   m.timeNow(),
		stopped:     make(chan struct{}),
	}

	m.mu.Lock()
	m.conns[conn.UUID] = conn
	m.mu.Unlock()

	kindEvent := EventNewTCP
	if kind == rdnet.ConnKindUDP {
		kindEvent = EventNewUDP
	}
	m.emit(Event{Kind: kindEvent, UUID: conn.UUID, Destination: destination})

	return &handle{conn: conn, mgr: m}
}

// remove drops conn's record and emits a Closed event; called by
// [handle.Done] exactly once per flow.
func (m *Manager) remove(uuid string) {
	m.mu.Lock()
	conn, ok := m.conns[uuid]
	if ok {
		delete(m.conns, uuid)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.emit(Event{Kind: EventClosed, UUID: uuid, Destination: conn.Destination})
}

// StopConnection requests that the named flow abort, returning false if
// no such connection exists. The record is removed by the flow's own
// Close/Done call, not here.
func (m *Manager) StopConnection(uuid string) bool {
	m.mu.RLock()
	conn, ok := m.conns[uuid]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	conn.requestStop()
	return true
}

// StopConnections requests that every currently tracked flow abort,
// returning the number signalled; also used by [rdnet.Engine.Stop]'s
// hard-shutdown path via the StopConnections() int type assertion.
func (m *Manager) StopConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conn := range m.conns {
		conn.requestStop()
	}
	return len(m.conns)
}

// ConnectionCount returns the number of currently tracked flows.
func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Connection borrows the record for uuid, if present, calling fn with it
// after the read lock has been released (the record's counters are
// atomic).
func (m *Manager) Connection(uuid string, fn func(*Connection)) {
	m.mu.RLock()
	conn, ok := m.conns[uuid]
	m.mu.RUnlock()
	if ok {
		fn(conn)
	}
}

// Snapshot returns a copy of every currently tracked connection record's
// UUID, for introspection callers that need to enumerate flows (e.g. a
// status endpoint) without holding the manager's lock.
func (m *Manager) Snapshot() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uuids := make([]string, 0, len(m.conns))
	for uuid := range m.conns {
		uuids = append(uuids, uuid)
	}
	return uuids
}
