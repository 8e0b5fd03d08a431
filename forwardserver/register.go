// SPDX-License-Identifier: GPL-3.0-or-later

package forwardserver

import "github.com/rdproxy/rdnet"

// Register adds the "forward" server kind to reg.
func Register(reg *rdnet.Registry) error {
	factory := rdnet.NewServerFactory("forward", func(bctx rdnet.ServerBuildContext, cfg *Config) (rdnet.Server, error) {
		return New(bctx, cfg)
	})
	return reg.AddServer(factory)
}
