// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source's Local/tagged-variant-polymorphism "alias" shape

package builtin

import (
	"context"
	"net/netip"

	"github.com/rdproxy/rdnet"
)

// AliasConfig decodes to an [Alias] net: just another NetRef's name.
type AliasConfig struct {
	Net rdnet.NetRef `json:"net" yaml:"net"`
}

var _ rdnet.NetRefVisitor = (*AliasConfig)(nil)

// VisitNetRefs implements [rdnet.NetRefVisitor].
func (c *AliasConfig) VisitNetRefs(fn func(fieldPath string, ref *rdnet.NetRef) error) error {
	return fn("net", &c.Net)
}

// Alias is config-level renaming: a thin forwarding net that holds the
// [*rdnet.RunningNet] another entry resolves to during graph build. The
// alias entry gets its own RunningNet wrapping this forwarder; every call
// is forwarded unchanged to the aliased net.
type Alias struct {
	target *rdnet.RunningNet
}

var _ rdnet.Net = (*Alias)(nil)

// NewAlias builds the alias net once getter has resolved cfg.Net.
func NewAlias(getter rdnet.NetGetter, vctx *rdnet.VisitorContext, cfg *AliasConfig) (*Alias, error) {
	target, err := getter(&cfg.Net, vctx.Push("net"))
	if err != nil {
		return nil, rdnet.WithContext(err, "alias")
	}
	return &Alias{target: target}, nil
}

// Capabilities implements [rdnet.Net].
func (a *Alias) Capabilities() rdnet.Capability { return a.target.Capabilities() }

// TCPConnect implements [rdnet.Net].
func (a *Alias) TCPConnect(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.TCPStream, error) {
	return a.target.TCPConnect(ctx, cctx, addr)
}

// TCPBind implements [rdnet.Net].
func (a *Alias) TCPBind(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.TCPListener, error) {
	return a.target.TCPBind(ctx, cctx, addr)
}

// UDPBind implements [rdnet.Net].
func (a *Alias) UDPBind(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.UDPSocket, error) {
	return a.target.UDPBind(ctx, cctx, addr)
}

// LookupHost implements [rdnet.Net].
func (a *Alias) LookupHost(ctx context.Context, addr rdnet.Address) ([]netip.AddrPort, error) {
	return a.target.LookupHost(ctx, addr)
}

// GetInner implements [rdnet.Net].
func (a *Alias) GetInner() rdnet.Net { return a.target }
