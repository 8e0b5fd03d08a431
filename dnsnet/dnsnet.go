// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: dial-pipeline shapes in example_dnsoverudp_test.go /
// example_dnsovertls_test.go / example_dnsoverhttps_test.go, and
// dnsoverudp.go / dnsovertcp.go / dnsovertls.go / dnsoverhttps.go themselves.

// Package dnsnet implements a "dns" net kind: a decorator that answers
// LookupHost by performing a real DNS exchange against a configured
// resolver, using whichever transport (UDP, TCP, DNS-over-TLS, or
// DNS-over-HTTPS) is configured, and delegates every other capability to
// a child net unchanged (the same wrap-one-capability shape as
// builtin.Resolve, but with a concrete resolver instead of recursing
// into another net's own LookupHost).
package dnsnet

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/netip"

	"github.com/bassosimone/dnscodec"
	"github.com/miekg/dns"
	"github.com/rdproxy/rdnet"
)

// Protocol selects which DNS transport LookupHost dials.
type Protocol string

const (
	ProtocolUDP   Protocol = "udp"
	ProtocolTCP   Protocol = "tcp"
	ProtocolTLS   Protocol = "tls"
	ProtocolHTTPS Protocol = "https"
)

// Config decodes to a [Net].
type Config struct {
	// Net is the child net to delegate tcp_connect/tcp_bind/udp_bind to.
	Net rdnet.NetRef `json:"net" yaml:"net"`

	// Server is the resolver's address, e.g. "1.1.1.1:53" (udp/tcp) or
	// "1.1.1.1:853" (tls) or "1.1.1.1:443" (https).
	Server string `json:"server" yaml:"server"`

	// Protocol selects the transport. Defaults to udp.
	Protocol Protocol `json:"protocol" yaml:"protocol"`

	// TLSServerName is the certificate name to verify for tls/https. If
	// empty, TLS verification uses Server's host portion.
	TLSServerName string `json:"tls_server_name" yaml:"tls_server_name"`

	// DOHURL is the query URL for https (e.g. "https://1.1.1.1/dns-query").
	// Required when Protocol is https.
	DOHURL string `json:"doh_url" yaml:"doh_url"`
}

var _ rdnet.NetRefVisitor = (*Config)(nil)

// VisitNetRefs implements [rdnet.NetRefVisitor].
func (c *Config) VisitNetRefs(fn func(fieldPath string, ref *rdnet.NetRef) error) error {
	return fn("net", &c.Net)
}

// Net wraps a child net, answering LookupHost from a real DNS resolver
// instead of delegating to another net's own resolution.
type Net struct {
	child    *rdnet.RunningNet
	server   netip.AddrPort
	protocol Protocol
	tlsName  string
	dohURL   string

	dialCfg *rdnet.Config
	logger  rdnet.SLogger
}

var _ rdnet.Net = (*Net)(nil)

// New builds the dns net once getter has resolved cfg.Net.
func New(getter rdnet.NetGetter, vctx *rdnet.VisitorContext, cfg *Config, dialCfg *rdnet.Config, logger rdnet.SLogger) (*Net, error) {
	child, err := getter(&cfg.Net, vctx.Push("net"))
	if err != nil {
		return nil, rdnet.WithContext(err, "dnsnet: net")
	}
	server, err := netip.ParseAddrPort(cfg.Server)
	if err != nil {
		return nil, rdnet.Other(fmt.Errorf("dnsnet: server: %w", err))
	}
	protocol := cfg.Protocol
	if protocol == "" {
		protocol = ProtocolUDP
	}
	tlsName := cfg.TLSServerName
	if tlsName == "" {
		tlsName = server.Addr().String()
	}
	if protocol == ProtocolHTTPS && cfg.DOHURL == "" {
		return nil, rdnet.Other(fmt.Errorf("dnsnet: protocol https requires doh_url"))
	}
	return &Net{
		child:    child,
		server:   server,
		protocol: protocol,
		tlsName:  tlsName,
		dohURL:   cfg.DOHURL,
		dialCfg:  dialCfg,
		logger:   logger,
	}, nil
}

// Capabilities implements [rdnet.Net]: everything the child net supports,
// plus LookupHost, which this net always provides via its resolver.
func (n *Net) Capabilities() rdnet.Capability {
	return n.child.Capabilities() | rdnet.CapLookupHost
}

// TCPConnect implements [rdnet.Net] by delegating unchanged.
func (n *Net) TCPConnect(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.TCPStream, error) {
	return n.child.TCPConnect(ctx, cctx, addr)
}

// TCPBind implements [rdnet.Net] by delegating unchanged.
func (n *Net) TCPBind(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.TCPListener, error) {
	return n.child.TCPBind(ctx, cctx, addr)
}

// UDPBind implements [rdnet.Net] by delegating unchanged.
func (n *Net) UDPBind(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.UDPSocket, error) {
	return n.child.UDPBind(ctx, cctx, addr)
}

// GetInner implements [rdnet.Net].
func (n *Net) GetInner() rdnet.Net { return n.child }

// LookupHost implements [rdnet.Net]: dials the configured resolver fresh
// for every call and returns its A records at addr's port. DNS-over-UDP/
// TCP/TLS connections in principle support repeated Exchange calls on one
// connection, but a graph-level LookupHost has no natural place to keep
// one alive across calls, so each lookup pays its own dial cost.
func (n *Net) LookupHost(ctx context.Context, addr rdnet.Address) ([]netip.AddrPort, error) {
	query := dnscodec.NewQuery(addr.Domain, dns.TypeA)
	resp, err := n.exchange(ctx, query)
	if err != nil {
		return nil, rdnet.Other(err)
	}
	records, err := resp.RecordsA()
	if err != nil {
		return nil, rdnet.Other(err)
	}
	out := make([]netip.AddrPort, 0, len(records))
	for _, a := range records {
		out = append(out, netip.AddrPortFrom(a, addr.PortNumber()))
	}
	return out, nil
}

func (n *Net) exchange(ctx context.Context, query *dnscodec.Query) (*dnscodec.Response, error) {
	switch n.protocol {
	case ProtocolUDP:
		return n.exchangeUDP(ctx, query)
	case ProtocolTCP:
		return n.exchangeTCP(ctx, query)
	case ProtocolTLS:
		return n.exchangeTLS(ctx, query)
	case ProtocolHTTPS:
		return n.exchangeHTTPS(ctx, query)
	default:
		return nil, fmt.Errorf("dnsnet: unknown protocol %q", n.protocol)
	}
}

func (n *Net) exchangeUDP(ctx context.Context, query *dnscodec.Query) (*dnscodec.Response, error) {
	pipeline := rdnet.Compose5(
		rdnet.NewEndpointFunc(n.server),
		rdnet.NewConnectFunc(n.dialCfg, "udp", n.logger),
		rdnet.NewObserveConnFunc(n.dialCfg, n.logger),
		rdnet.NewCancelWatchFunc(),
		rdnet.NewDNSOverUDPConnFunc(n.dialCfg, n.logger),
	)
	conn, err := pipeline.Call(ctx, rdnet.Unit{})
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.Exchange(ctx, query)
}

func (n *Net) exchangeTCP(ctx context.Context, query *dnscodec.Query) (*dnscodec.Response, error) {
	pipeline := rdnet.Compose5(
		rdnet.NewEndpointFunc(n.server),
		rdnet.NewConnectFunc(n.dialCfg, "tcp", n.logger),
		rdnet.NewObserveConnFunc(n.dialCfg, n.logger),
		rdnet.NewCancelWatchFunc(),
		rdnet.NewDNSOverTCPConnFunc(n.dialCfg, n.logger),
	)
	conn, err := pipeline.Call(ctx, rdnet.Unit{})
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.Exchange(ctx, query)
}

func (n *Net) exchangeTLS(ctx context.Context, query *dnscodec.Query) (*dnscodec.Response, error) {
	tlsConfig := &tls.Config{ServerName: n.tlsName, NextProtos: []string{"dot"}}
	pipeline := rdnet.Compose6(
		rdnet.NewEndpointFunc(n.server),
		rdnet.NewConnectFunc(n.dialCfg, "tcp", n.logger),
		rdnet.NewObserveConnFunc(n.dialCfg, n.logger),
		rdnet.NewCancelWatchFunc(),
		rdnet.NewTLSHandshakeFunc(n.dialCfg, tlsConfig, n.logger),
		rdnet.NewDNSOverTLSConnFunc(n.dialCfg, n.logger),
	)
	conn, err := pipeline.Call(ctx, rdnet.Unit{})
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.Exchange(ctx, query)
}

func (n *Net) exchangeHTTPS(ctx context.Context, query *dnscodec.Query) (*dnscodec.Response, error) {
	tlsConfig := &tls.Config{ServerName: n.tlsName, NextProtos: []string{"h2", "http/1.1"}}
	pipeline := rdnet.Compose7(
		rdnet.NewEndpointFunc(n.server),
		rdnet.NewConnectFunc(n.dialCfg, "tcp", n.logger),
		rdnet.NewObserveConnFunc(n.dialCfg, n.logger),
		rdnet.NewCancelWatchFunc(),
		rdnet.NewTLSHandshakeFunc(n.dialCfg, tlsConfig, n.logger),
		rdnet.NewHTTPConnFuncTLS(n.dialCfg, n.logger),
		rdnet.NewDNSOverHTTPSConnFunc(n.dialCfg, n.dohURL, n.logger),
	)
	conn, err := pipeline.Call(ctx, rdnet.Unit{})
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.Exchange(ctx, query)
}
