// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rabbit-digger-pro/src/rule/rule.rs (RuleItem, rule config)

package rule

import (
	"time"

	"github.com/rdproxy/rdnet"
)

// Entry is one (matcher, target) pair in a [Config]'s ordered rule list.
type Entry struct {
	Matcher MatcherSpec  `json:"matcher" yaml:"matcher"`
	Target  rdnet.NetRef `json:"target" yaml:"target"`
}

// Config is the decoded configuration for one Rule net instance. There is
// no implicit terminal entry: an explicit "any" entry is how an author
// spells a catch-all. The absence of a match is the default outcome
// (an error), not a silently-inserted reject rule.
type Config struct {
	Rules []Entry `json:"rules" yaml:"rules"`
}

var _ rdnet.NetRefVisitor = (*Config)(nil)

// VisitNetRefs implements [rdnet.NetRefVisitor], reporting every rule's
// target under the field path "rules".
func (c *Config) VisitNetRefs(fn func(fieldPath string, ref *rdnet.NetRef) error) error {
	for i := range c.Rules {
		if err := fn("rules", &c.Rules[i].Target); err != nil {
			return err
		}
	}
	return nil
}

// Tuning bounds the Rule net's UDP NAT table and destination cache. Zero
// fields fall back to the documented defaults (30s TTL, 128-entry
// capacity).
type Tuning struct {
	NATTTL      time.Duration
	NATCap      int
	CacheTTL    time.Duration
	CacheCap    int
	GeoIPLookup GeoIPLookup
}

func (t Tuning) withDefaults() Tuning {
	if t.NATTTL <= 0 {
		t.NATTTL = 30 * time.Second
	}
	if t.NATCap <= 0 {
		t.NATCap = 128
	}
	if t.CacheTTL <= 0 {
		t.CacheTTL = 30 * time.Second
	}
	if t.CacheCap <= 0 {
		t.CacheCap = 128
	}
	return t
}
