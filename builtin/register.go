// SPDX-License-Identifier: GPL-3.0-or-later

package builtin

import "github.com/rdproxy/rdnet"

// LocalConfig decodes to a [Local] net. It carries no NetRef fields, so
// it needs no [rdnet.NetRefVisitor] implementation.
type LocalConfig struct{}

// BlackholeConfig decodes to a [Blackhole] net.
type BlackholeConfig struct{}

// RejectConfig decodes to a [Reject] net.
type RejectConfig struct{}

// Register adds the local/blackhole/reject/resolve/alias/selector/
// dnssniffer net kinds to reg. logger is
// only used by the "local" net; the decorator/synthetic kinds need none
// of their own (they log nothing a caller doesn't already see via the
// connection manager's events).
func Register(reg *rdnet.Registry, cfg *rdnet.Config, logger rdnet.SLogger) error {
	factories := []rdnet.NetFactory{
		rdnet.NewNetFactory("local", func(_ rdnet.NetGetter, _ *rdnet.VisitorContext, _ *LocalConfig) (rdnet.Net, error) {
			return NewLocal(cfg, logger), nil
		}),
		rdnet.NewNetFactory("blackhole", func(_ rdnet.NetGetter, _ *rdnet.VisitorContext, _ *BlackholeConfig) (rdnet.Net, error) {
			return NewBlackhole(), nil
		}),
		rdnet.NewNetFactory("reject", func(_ rdnet.NetGetter, _ *rdnet.VisitorContext, _ *RejectConfig) (rdnet.Net, error) {
			return NewReject(), nil
		}),
		rdnet.NewNetFactory("resolve", func(getter rdnet.NetGetter, vctx *rdnet.VisitorContext, c *ResolveConfig) (rdnet.Net, error) {
			return NewResolve(getter, vctx, c)
		}),
		rdnet.NewNetFactory("alias", func(getter rdnet.NetGetter, vctx *rdnet.VisitorContext, c *AliasConfig) (rdnet.Net, error) {
			return NewAlias(getter, vctx, c)
		}),
		rdnet.NewNetFactory("selector", func(getter rdnet.NetGetter, vctx *rdnet.VisitorContext, c *SelectorConfig) (rdnet.Net, error) {
			return NewSelector(getter, vctx, c)
		}),
		rdnet.NewNetFactory("dnssniffer", func(getter rdnet.NetGetter, vctx *rdnet.VisitorContext, c *DNSSnifferConfig) (rdnet.Net, error) {
			return NewDNSSniffer(getter, vctx, c)
		}),
	}
	for _, f := range factories {
		if err := reg.AddNet(f); err != nil {
			return rdnet.WithContextf(err, "builtin: registering %q", f.Kind)
		}
	}
	return nil
}
