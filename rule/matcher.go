// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rabbit-digger-pro/src/rule/matcher (domain/ip_cidr/any/geoip matchers)

package rule

import (
	"context"
	"encoding/json"
	"net/netip"
	"strings"

	"github.com/rdproxy/rdnet"
)

// Matcher is a pure predicate over (context, destination). Match takes a
// context.Context even though every matcher below is synchronous, so a
// future matcher that performs a DNS lookup or geoip read slots in
// without changing the interface.
type Matcher interface {
	Match(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) bool
}

// MatcherSpec is the tagged-union wire shape for one matcher, mirroring
// [rdnet.NetSpec]'s type+options convention.
type MatcherSpec struct {
	Type    string          `json:"type" yaml:"type"`
	Options json.RawMessage `json:"options,omitempty" yaml:"options,omitempty"`
}

// GeoIPLookup resolves an IP to an ISO country code. With no lookup
// configured (a nil GeoIPLookup) the geoip matcher treats every IP as
// unknown and never matches (see DESIGN.md:
// no geoip database ships in the example corpus, so this is a pluggable
// seam rather than a concrete implementation).
type GeoIPLookup func(addr netip.Addr) (country string, ok bool)

// buildMatcher compiles one MatcherSpec into a [Matcher].
func buildMatcher(spec MatcherSpec, geo GeoIPLookup) (Matcher, error) {
	switch spec.Type {
	case "any":
		return anyMatcher{}, nil
	case "domain":
		var opt domainOptions
		if len(spec.Options) > 0 {
			if err := json.Unmarshal(spec.Options, &opt); err != nil {
				return nil, rdnet.Other(err)
			}
		}
		return newDomainMatcher(opt)
	case "ip-cidr":
		var opt cidrOptions
		if err := json.Unmarshal(spec.Options, &opt); err != nil {
			return nil, rdnet.Other(err)
		}
		return newCIDRMatcher(opt, false)
	case "src-ip-cidr":
		var opt cidrOptions
		if err := json.Unmarshal(spec.Options, &opt); err != nil {
			return nil, rdnet.Other(err)
		}
		return newCIDRMatcher(opt, true)
	case "geoip":
		var opt geoIPOptions
		if err := json.Unmarshal(spec.Options, &opt); err != nil {
			return nil, rdnet.Other(err)
		}
		return &geoIPMatcher{countries: opt.Countries, lookup: geo}, nil
	default:
		return nil, rdnet.Other(unknownMatcherError(spec.Type))
	}
}

type unknownMatcherError string

func (e unknownMatcherError) Error() string { return "unknown matcher type " + string(e) }

// anyMatcher unconditionally matches.
type anyMatcher struct{}

func (anyMatcher) Match(context.Context, *rdnet.Context, rdnet.Address) bool { return true }

// domainMode selects how domainOptions.Patterns are interpreted.
type domainMode string

const (
	domainModeSuffix  domainMode = "suffix"
	domainModeKeyword domainMode = "keyword"
	domainModeMatch   domainMode = "match"
)

type domainOptions struct {
	Mode     domainMode `json:"mode"`
	Patterns []string   `json:"patterns"`
}

// domainMatcher matches only domain-form destinations, with
// suffix/keyword/match pattern semantics.
type domainMatcher struct {
	mode     domainMode
	patterns []string
}

func newDomainMatcher(opt domainOptions) (*domainMatcher, error) {
	mode := opt.Mode
	if mode == "" {
		mode = domainModeSuffix
	}
	return &domainMatcher{mode: mode, patterns: opt.Patterns}, nil
}

func (m *domainMatcher) Match(_ context.Context, _ *rdnet.Context, addr rdnet.Address) bool {
	if !addr.IsDomain() {
		return false
	}
	domain := strings.ToLower(addr.Domain)
	for _, pattern := range m.patterns {
		switch m.mode {
		case domainModeKeyword:
			if strings.Contains(domain, strings.ToLower(pattern)) {
				return true
			}
		case domainModeMatch:
			if domain == strings.ToLower(pattern) {
				return true
			}
		default: // domainModeSuffix
			if matchSuffix(domain, pattern) {
				return true
			}
		}
	}
	return false
}

// matchSuffix implements the "+." convention: a pattern beginning
// with "+." matches both the bare domain and any subdomain; otherwise the
// pattern is matched as a literal suffix.
func matchSuffix(domain, pattern string) bool {
	pattern = strings.ToLower(pattern)
	if strings.HasPrefix(pattern, "+.") {
		bare := pattern[2:]
		return domain == bare || strings.HasSuffix(domain, "."+bare)
	}
	return strings.HasSuffix(domain, pattern)
}

type cidrOptions struct {
	Patterns []string `json:"patterns"`
}

// cidrMatcher implements the ip-cidr / src-ip-cidr matcher. When
// src is true it matches the context's recorded source address instead of
// the destination.
type cidrMatcher struct {
	prefixes []netip.Prefix
	src      bool
}

func newCIDRMatcher(opt cidrOptions, src bool) (*cidrMatcher, error) {
	prefixes := make([]netip.Prefix, 0, len(opt.Patterns))
	for _, p := range opt.Patterns {
		prefix, err := netip.ParsePrefix(p)
		if err != nil {
			return nil, rdnet.Other(err)
		}
		prefixes = append(prefixes, prefix)
	}
	return &cidrMatcher{prefixes: prefixes, src: src}, nil
}

func (m *cidrMatcher) Match(_ context.Context, cctx *rdnet.Context, addr rdnet.Address) bool {
	var ip netip.Addr
	if m.src {
		peer, ok := cctx.SourceAddr()
		if !ok {
			return false
		}
		ip = peer.Addr()
	} else {
		candidate, ok := addressIP(addr)
		if !ok {
			return false
		}
		ip = candidate
	}
	for _, prefix := range m.prefixes {
		if prefix.Contains(ip) {
			return true
		}
	}
	return false
}

// addressIP extracts the numeric IP from addr, parsing domain-form
// addresses as a literal IP:port and returning false if that parse
// fails.
func addressIP(addr rdnet.Address) (netip.Addr, bool) {
	if addr.Kind == rdnet.AddressKindSocket {
		return addr.Socket.Addr(), true
	}
	ip, err := netip.ParseAddr(addr.Domain)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip, true
}

type geoIPOptions struct {
	Countries []string `json:"countries"`
}

// geoIPMatcher implements country-code lookup on the destination IP,
// returning false for unknown IPs or domain-form addresses the lookup
// can't resolve.
type geoIPMatcher struct {
	countries []string
	lookup    GeoIPLookup
}

func (m *geoIPMatcher) Match(_ context.Context, _ *rdnet.Context, addr rdnet.Address) bool {
	if m.lookup == nil {
		return false
	}
	ip, ok := addressIP(addr)
	if !ok {
		return false
	}
	country, ok := m.lookup(ip)
	if !ok {
		return false
	}
	for _, want := range m.countries {
		if strings.EqualFold(country, want) {
			return true
		}
	}
	return false
}
