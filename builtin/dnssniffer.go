// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rd-std/src/sniffer/dns_sniffer.rs

package builtin

import (
	"context"
	"net/netip"

	"github.com/miekg/dns"

	"github.com/rdproxy/rdnet"
)

// DNSSnifferConfig decodes to a [DNSSniffer] net.
type DNSSnifferConfig struct {
	Net rdnet.NetRef `json:"net" yaml:"net"`
}

var _ rdnet.NetRefVisitor = (*DNSSnifferConfig)(nil)

// VisitNetRefs implements [rdnet.NetRefVisitor].
func (c *DNSSnifferConfig) VisitNetRefs(fn func(fieldPath string, ref *rdnet.NetRef) error) error {
	return fn("net", &c.Net)
}

// DNSSniffer wraps a child net's udp_bind/tcp_connect: for traffic to
// port 53 it parses the outbound DNS query to populate the Context's
// DestDomain extra from the first question name, then forwards
// unchanged. This is a passive observer — it never rewrites or drops a query, only
// annotates the Context for downstream matchers (e.g. a Rule net's
// domain matcher) that would otherwise only see a numeric destination.
type DNSSniffer struct {
	child *rdnet.RunningNet
}

var _ rdnet.Net = (*DNSSniffer)(nil)

const dnsPort = 53

// NewDNSSniffer builds the sniffer net once getter has resolved cfg.Net.
func NewDNSSniffer(getter rdnet.NetGetter, vctx *rdnet.VisitorContext, cfg *DNSSnifferConfig) (*DNSSniffer, error) {
	child, err := getter(&cfg.Net, vctx.Push("net"))
	if err != nil {
		return nil, rdnet.WithContext(err, "dnssniffer")
	}
	return &DNSSniffer{child: child}, nil
}

// Capabilities implements [rdnet.Net].
func (d *DNSSniffer) Capabilities() rdnet.Capability { return d.child.Capabilities() }

// TCPConnect implements [rdnet.Net]: sniffs the Context, then delegates
// unchanged (a DNS-over-TCP query arrives as a length-prefixed message
// after connect, which this layer does not need to parse to populate
// DestDomain — the port check alone is enough to identify DNS traffic).
func (d *DNSSniffer) TCPConnect(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.TCPStream, error) {
	sniffDestination(cctx, addr)
	return d.child.TCPConnect(ctx, cctx, addr)
}

// TCPBind implements [rdnet.Net] by delegating unchanged.
func (d *DNSSniffer) TCPBind(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.TCPListener, error) {
	return d.child.TCPBind(ctx, cctx, addr)
}

// UDPBind implements [rdnet.Net], returning a socket that inspects every
// datagram sent to port 53 and parses it as a DNS query.
func (d *DNSSniffer) UDPBind(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.UDPSocket, error) {
	sock, err := d.child.UDPBind(ctx, cctx, addr)
	if err != nil {
		return nil, err
	}
	return &sniffingSocket{inner: sock, cctx: cctx}, nil
}

// LookupHost implements [rdnet.Net].
func (d *DNSSniffer) LookupHost(ctx context.Context, addr rdnet.Address) ([]netip.AddrPort, error) {
	return d.child.LookupHost(ctx, addr)
}

// GetInner implements [rdnet.Net].
func (d *DNSSniffer) GetInner() rdnet.Net { return d.child }

// sniffDestination records addr as the Context's destination if it names
// port 53, via [rdnet.Context.SetDestination]: DestDomain for a
// domain-form addr, DestSocketAddr for a socket-form one. Sniffing the
// query isn't possible at the connect layer (TCP: the query arrives after
// connect); this call exists purely to annotate the destination itself,
// same as [rdnet.ServerNet]'s own SetDestination step.
func sniffDestination(cctx *rdnet.Context, addr rdnet.Address) {
	if addr.PortNumber() != dnsPort {
		return
	}
	cctx.SetDestination(addr)
}

// sniffingSocket wraps a [rdnet.UDPSocket], parsing outbound sends to
// port 53 as DNS queries to populate DestDomain from the first question.
type sniffingSocket struct {
	inner rdnet.UDPSocket
	cctx  *rdnet.Context
}

func (s *sniffingSocket) SendTo(ctx context.Context, buf []byte, to rdnet.Address) (int, error) {
	if to.PortNumber() == dnsPort {
		sniffQuery(s.cctx, buf)
	}
	return s.inner.SendTo(ctx, buf, to)
}

// sniffQuery parses buf as a DNS message via miekg/dns and, if it carries
// at least one question, records the first question's name as the
// Context's DestDomain extra. Malformed messages are ignored; sniffing is
// best-effort and must never fail the send.
func sniffQuery(cctx *rdnet.Context, buf []byte) {
	var msg dns.Msg
	if err := msg.Unpack(buf); err != nil {
		return
	}
	if len(msg.Question) == 0 {
		return
	}
	name := msg.Question[0].Name
	cctx.SetDestDomain(name, dnsPort)
}

func (s *sniffingSocket) RecvFrom(ctx context.Context, buf []byte) (int, rdnet.Address, error) {
	return s.inner.RecvFrom(ctx, buf)
}

func (s *sniffingSocket) LocalAddr() (netip.AddrPort, error) { return s.inner.LocalAddr() }
func (s *sniffingSocket) Close() error                       { return s.inner.Close() }
