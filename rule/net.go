// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rabbit-digger-pro/src/rule/rule.rs (Rule net)

package rule

import (
	"context"
	"strconv"

	"github.com/rdproxy/rdnet"
)

// compiledEntry is one already-built (matcher, target) pair.
type compiledEntry struct {
	matcher Matcher
	target  *rdnet.NetRef
}

// Net dispatches each new flow to the first child net whose matcher hits.
// It embeds [rdnet.BaseNet] so TCPBind and
// LookupHost return [rdnet.ErrNotImplemented] without needing overrides;
// the rule net itself has no single "inner" net (it fans out to many), so
// GetInner returns nil like a leaf.
type Net struct {
	rdnet.BaseNet

	entries []compiledEntry
	tuning  Tuning
	logger  rdnet.SLogger
}

var _ rdnet.Net = (*Net)(nil)

// New compiles cfg's rule list, resolving each rule's target through
// getter (under the visitor path rules/<i>), and returns the Rule net.
func New(getter rdnet.NetGetter, vctx *rdnet.VisitorContext, cfg *Config, tuning Tuning, logger rdnet.SLogger) (*Net, error) {
	if logger == nil {
		logger = rdnet.DefaultSLogger()
	}
	entries := make([]compiledEntry, 0, len(cfg.Rules))
	for i := range cfg.Rules {
		matcher, err := buildMatcher(cfg.Rules[i].Matcher, tuning.GeoIPLookup)
		if err != nil {
			return nil, rdnet.WithContextf(err, "rule %d", i)
		}
		ruleVctx := vctx.Push("rules").Push(strconv.Itoa(i))
		if _, err := getter(&cfg.Rules[i].Target, ruleVctx); err != nil {
			return nil, rdnet.WithContextf(err, "rule %d target", i)
		}
		entries = append(entries, compiledEntry{matcher: matcher, target: &cfg.Rules[i].Target})
	}
	return &Net{entries: entries, tuning: tuning.withDefaults(), logger: logger}, nil
}

// Capabilities implements [rdnet.Net].
func (n *Net) Capabilities() rdnet.Capability {
	return rdnet.CapTCPConnect | rdnet.CapUDPBind
}

// TCPConnect implements [rdnet.Net]: evaluates
// matchers in order against (context, destination); the first hit wins
// and the call is forwarded to the selected target. No matcher hitting is
// [rdnet.ErrConnectionRefused].
func (n *Net) TCPConnect(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.TCPStream, error) {
	target, err := n.dispatch(ctx, cctx, addr)
	if err != nil {
		return nil, err
	}
	rn, err := target.Net()
	if err != nil {
		return nil, err
	}
	return rn.TCPConnect(ctx, cctx, addr)
}

// UDPBind implements [rdnet.Net]: returns a
// synthetic [UDPRuleSocket] bound to the user-provided local address
// without opening any outbound socket yet.
func (n *Net) UDPBind(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.UDPSocket, error) {
	return newUDPRuleSocket(n, cctx, addr), nil
}

// dispatch evaluates n.entries in order, returning the first hit's
// target ref, or [rdnet.ErrConnectionRefused] if none match.
func (n *Net) dispatch(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (*rdnet.NetRef, error) {
	for _, entry := range n.entries {
		if entry.matcher.Match(ctx, cctx, addr) {
			return entry.target, nil
		}
	}
	return nil, rdnet.ErrConnectionRefused
}
