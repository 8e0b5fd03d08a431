// SPDX-License-Identifier: GPL-3.0-or-later

// Package rdnetall assembles every net and server kind this module ships
// into one [rdnet.Registry], the way a rabbit-digger-pro binary's main
// wires up its plugin set before loading a config file.
// It lives outside package rdnet because every kind package it imports
// already imports rdnet itself; pulling the wiring into a leaf package
// avoids the import cycle that registering from the root package would
// create.
package rdnetall

import (
	"github.com/rdproxy/rdnet"
	"github.com/rdproxy/rdnet/builtin"
	"github.com/rdproxy/rdnet/dnsnet"
	"github.com/rdproxy/rdnet/forwardserver"
	"github.com/rdproxy/rdnet/rule"
)

// Options tunes the kinds Register wires in. A zero Options is valid and
// reproduces the documented defaults for every bound/cache/TTL.
type Options struct {
	// RuleTuning bounds the "rule" net's UDP NAT table and destination
	// cache (rule.Tuning's zero value already applies its own defaults).
	RuleTuning rule.Tuning
}

// Register adds every builtin net kind (local, blackhole, reject,
// resolve, alias, selector, dnssniffer), the rule net kind, the dns net
// kind, and the forward server kind to reg, sharing cfg and logger across
// all of them.
func Register(reg *rdnet.Registry, cfg *rdnet.Config, logger rdnet.SLogger, opts Options) error {
	if err := builtin.Register(reg, cfg, logger); err != nil {
		return rdnet.WithContext(err, "rdnetall: builtin")
	}
	if err := rule.Register(reg, opts.RuleTuning, logger); err != nil {
		return rdnet.WithContext(err, "rdnetall: rule")
	}
	if err := forwardserver.Register(reg); err != nil {
		return rdnet.WithContext(err, "rdnetall: forwardserver")
	}
	if err := dnsnet.Register(reg, cfg, logger); err != nil {
		return rdnet.WithContext(err, "rdnetall: dnsnet")
	}
	return nil
}
