// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rd-std/src/builtin/resolve.rs

package builtin

import (
	"context"
	"net/netip"

	"github.com/rdproxy/rdnet"
)

// ResolveConfig decodes to a [Resolve] net.
type ResolveConfig struct {
	// Net is the child net to delegate tcp_connect/udp_bind to, after
	// pre-resolving the destination.
	Net rdnet.NetRef `json:"net" yaml:"net"`
	// Resolver is the net whose LookupHost performs the resolution. If
	// omitted it defaults to Net itself.
	Resolver rdnet.NetRef `json:"resolver" yaml:"resolver"`
}

var _ rdnet.NetRefVisitor = (*ResolveConfig)(nil)

// VisitNetRefs implements [rdnet.NetRefVisitor].
func (c *ResolveConfig) VisitNetRefs(fn func(fieldPath string, ref *rdnet.NetRef) error) error {
	if err := fn("net", &c.Net); err != nil {
		return err
	}
	return fn("resolver", &c.Resolver)
}

// Resolve wraps a child net, pre-resolving domain addresses via a
// configured resolver net before delegating.
type Resolve struct {
	child    *rdnet.RunningNet
	resolver *rdnet.RunningNet
}

var _ rdnet.Net = (*Resolve)(nil)

// NewResolve builds the resolve net once getter has resolved cfg's refs.
func NewResolve(getter rdnet.NetGetter, vctx *rdnet.VisitorContext, cfg *ResolveConfig) (*Resolve, error) {
	child, err := getter(&cfg.Net, vctx.Push("net"))
	if err != nil {
		return nil, rdnet.WithContext(err, "resolve: net")
	}
	resolver := child
	if cfg.Resolver.Name != "" || cfg.Resolver.IsInline() {
		resolver, err = getter(&cfg.Resolver, vctx.Push("resolver"))
		if err != nil {
			return nil, rdnet.WithContext(err, "resolve: resolver")
		}
	}
	return &Resolve{child: child, resolver: resolver}, nil
}

// Capabilities implements [rdnet.Net]: everything the child net supports,
// plus LookupHost, which Resolve always provides via its resolver net.
func (r *Resolve) Capabilities() rdnet.Capability {
	return r.child.Capabilities() | rdnet.CapLookupHost
}

// TCPConnect implements [rdnet.Net], pre-resolving addr if it is
// domain-form before delegating.
func (r *Resolve) TCPConnect(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.TCPStream, error) {
	resolved, err := r.resolve(ctx, addr)
	if err != nil {
		return nil, err
	}
	return r.child.TCPConnect(ctx, cctx, resolved)
}

// TCPBind implements [rdnet.Net] by delegating unchanged (binds don't
// name a destination to resolve).
func (r *Resolve) TCPBind(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.TCPListener, error) {
	return r.child.TCPBind(ctx, cctx, addr)
}

// UDPBind implements [rdnet.Net]; the returned socket pre-resolves each
// SendTo destination.
func (r *Resolve) UDPBind(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.UDPSocket, error) {
	sock, err := r.child.UDPBind(ctx, cctx, addr)
	if err != nil {
		return nil, err
	}
	return &resolvingSocket{inner: sock, resolve: r.resolve}, nil
}

// LookupHost implements [rdnet.Net] by delegating to the resolver net.
func (r *Resolve) LookupHost(ctx context.Context, addr rdnet.Address) ([]netip.AddrPort, error) {
	return r.resolver.LookupHost(ctx, addr)
}

// GetInner implements [rdnet.Net].
func (r *Resolve) GetInner() rdnet.Net { return r.child }

// resolve returns addr unchanged if already resolved, otherwise its first
// lookup result via the resolver net.
func (r *Resolve) resolve(ctx context.Context, addr rdnet.Address) (rdnet.Address, error) {
	if !addr.IsDomain() {
		return addr, nil
	}
	addrs, err := r.resolver.LookupHost(ctx, addr)
	if err != nil {
		return rdnet.Address{}, err
	}
	if len(addrs) == 0 {
		return rdnet.Address{}, rdnet.NotFound(addr.Domain)
	}
	return rdnet.NewAddressSocket(addrs[0]), nil
}

// resolvingSocket wraps a [rdnet.UDPSocket], pre-resolving SendTo's
// destination before delegating.
type resolvingSocket struct {
	inner   rdnet.UDPSocket
	resolve func(ctx context.Context, addr rdnet.Address) (rdnet.Address, error)
}

func (s *resolvingSocket) SendTo(ctx context.Context, buf []byte, to rdnet.Address) (int, error) {
	resolved, err := s.resolve(ctx, to)
	if err != nil {
		return 0, err
	}
	return s.inner.SendTo(ctx, buf, resolved)
}

func (s *resolvingSocket) RecvFrom(ctx context.Context, buf []byte) (int, rdnet.Address, error) {
	return s.inner.RecvFrom(ctx, buf)
}

func (s *resolvingSocket) LocalAddr() (netip.AddrPort, error) { return s.inner.LocalAddr() }
func (s *resolvingSocket) Close() error                       { return s.inner.Close() }
