// SPDX-License-Identifier: GPL-3.0-or-later

package dnsnet

import "github.com/rdproxy/rdnet"

// Register adds the "dns" net kind to reg, sharing dialCfg/logger across
// every dns net built from this registry (the same dial-pipeline
// dependencies the DNS-over-* constructors take).
func Register(reg *rdnet.Registry, dialCfg *rdnet.Config, logger rdnet.SLogger) error {
	factory := rdnet.NewNetFactory("dns", func(getter rdnet.NetGetter, vctx *rdnet.VisitorContext, cfg *Config) (rdnet.Net, error) {
		return New(getter, vctx, cfg, dialCfg, logger)
	})
	return reg.AddNet(factory)
}
