// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rd-interface/src/context.rs

package rdnet

import "net/netip"

// Common context keys, mirroring original_source's CommonField::KEY
// constants (source_address, process_info) plus the destination extras
// set by [ServerNet] as it decorates egress calls.
const (
	contextKeySourceAddr   = "source_address"
	contextKeyDestDomain   = "dest_domain"
	contextKeyDestSocket   = "dest_socket_addr"
	contextKeyProcessInfo  = "process_info"
)

// ProcessInfo is an optional typed extra a server may attach to a Context
// (e.g. populated from a transparent-proxy's socket-to-pid lookup).
type ProcessInfo struct {
	ProcessName string
	ProcessPath string
	Pid         int
}

// Context is the per-flow metadata bag propagated from accept through the
// net graph. It carries an ordered net-list (every
// RunningNet name the flow has traversed) plus a string-keyed extras map.
// A Context is not safe for concurrent use; it is built by one server
// accept loop and threaded sequentially through tcp_connect/tcp_bind/udp_bind.
type Context struct {
	netList []string
	extras  map[string]any
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{extras: make(map[string]any)}
}

// ContextFromSocketAddr builds a Context for a freshly accepted connection,
// recording the peer's address as the source address.
func ContextFromSocketAddr(peer netip.AddrPort) *Context {
	c := NewContext()
	c.SetSourceAddr(peer)
	return c
}

// AppendNet records that the flow passed through the RunningNet named name.
// Called once per RunningNet on every capability call.
func (c *Context) AppendNet(name string) {
	c.netList = append(c.netList, name)
}

// NetList returns the ordered list of net names the flow has traversed.
// The returned slice is a copy; callers must not rely on it reflecting
// future AppendNet calls.
func (c *Context) NetList() []string {
	out := make([]string, len(c.netList))
	copy(out, c.netList)
	return out
}

// SetSourceAddr records the accept-time peer address.
func (c *Context) SetSourceAddr(addr netip.AddrPort) {
	c.extras[contextKeySourceAddr] = addr
}

// SourceAddr returns the accept-time peer address, if set.
func (c *Context) SourceAddr() (netip.AddrPort, bool) {
	v, ok := c.extras[contextKeySourceAddr].(netip.AddrPort)
	return v, ok
}

// SetDestDomain records the destination as a domain name.
func (c *Context) SetDestDomain(domain string, port uint16) {
	c.extras[contextKeyDestDomain] = NewAddressDomain(domain, port)
}

// DestDomain returns the destination-domain extra, if the destination was
// in domain form.
func (c *Context) DestDomain() (Address, bool) {
	v, ok := c.extras[contextKeyDestDomain].(Address)
	return v, ok
}

// SetDestSocketAddr records the destination as a resolved socket address.
func (c *Context) SetDestSocketAddr(addr netip.AddrPort) {
	c.extras[contextKeyDestSocket] = addr
}

// DestSocketAddr returns the destination-socket-address extra, if set.
func (c *Context) DestSocketAddr() (netip.AddrPort, bool) {
	v, ok := c.extras[contextKeyDestSocket].(netip.AddrPort)
	return v, ok
}

// SetDestination sets whichever of DestDomain/DestSocketAddr matches addr's
// representation.
func (c *Context) SetDestination(addr Address) {
	if addr.IsDomain() {
		c.SetDestDomain(addr.Domain, addr.Port)
		return
	}
	c.SetDestSocketAddr(addr.Socket)
}

// SetProcessInfo records the optional process-info extra.
func (c *Context) SetProcessInfo(p ProcessInfo) {
	c.extras[contextKeyProcessInfo] = p
}

// ProcessInfo returns the process-info extra, if set.
func (c *Context) ProcessInfo() (ProcessInfo, bool) {
	v, ok := c.extras[contextKeyProcessInfo].(ProcessInfo)
	return v, ok
}

// Get returns an arbitrary extra by key, for net implementations that need
// a bespoke field not covered by the typed helpers above.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.extras[key]
	return v, ok
}

// Set stores an arbitrary extra by key.
func (c *Context) Set(key string, value any) {
	c.extras[key] = value
}

// Clone returns a deep-enough copy suitable for taking a Connection record
// snapshot: the net-list and extras map are copied so later mutation of
// the live Context does not affect the snapshot.
func (c *Context) Clone() *Context {
	clone := &Context{
		netList: append([]string(nil), c.netList...),
		extras:  make(map[string]any, len(c.extras)),
	}
	for k, v := range c.extras {
		clone.extras[k] = v
	}
	return clone
}
