// SPDX-License-Identifier: GPL-3.0-or-later

package rule

import "github.com/rdproxy/rdnet"

// Register adds the "rule" net kind to reg, closing over tuning/logger so
// every Rule net built from this registry shares the same NAT/cache
// bounds, unless tuning overrides them.
func Register(reg *rdnet.Registry, tuning Tuning, logger rdnet.SLogger) error {
	factory := rdnet.NewNetFactory("rule", func(getter rdnet.NetGetter, vctx *rdnet.VisitorContext, cfg *Config) (rdnet.Net, error) {
		return New(getter, vctx, cfg, tuning, logger)
	})
	return reg.AddNet(factory)
}
