// SPDX-License-Identifier: GPL-3.0-or-later

package builtin

import (
	"context"
	"net/netip"
	"testing"

	"github.com/miekg/dns"
	"github.com/rdproxy/rdnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sniffTestSocket struct {
	sent [][]byte
}

func (s *sniffTestSocket) SendTo(_ context.Context, buf []byte, _ rdnet.Address) (int, error) {
	s.sent = append(s.sent, append([]byte(nil), buf...))
	return len(buf), nil
}

func (s *sniffTestSocket) RecvFrom(ctx context.Context, _ []byte) (int, rdnet.Address, error) {
	<-ctx.Done()
	return 0, rdnet.Address{}, ctx.Err()
}

func (s *sniffTestSocket) LocalAddr() (netip.AddrPort, error) { return netip.AddrPort{}, nil }
func (s *sniffTestSocket) Close() error                       { return nil }

type sniffTestNet struct {
	rdnet.BaseNet
	sock *sniffTestSocket
}

func (n *sniffTestNet) Capabilities() rdnet.Capability { return rdnet.CapUDPBind | rdnet.CapTCPConnect }

func (n *sniffTestNet) UDPBind(context.Context, *rdnet.Context, rdnet.Address) (rdnet.UDPSocket, error) {
	return n.sock, nil
}

func (n *sniffTestNet) TCPConnect(context.Context, *rdnet.Context, rdnet.Address) (rdnet.TCPStream, error) {
	return nil, nil
}

func buildTestSniffer(t *testing.T) (*DNSSniffer, *sniffTestNet) {
	t.Helper()
	child := &sniffTestNet{sock: &sniffTestSocket{}}
	getter := func(ref *rdnet.NetRef, _ *rdnet.VisitorContext) (*rdnet.RunningNet, error) {
		return ref.Net()
	}
	cfg := &DNSSnifferConfig{Net: rdnet.NewNetRef("child", rdnet.NewRunningNet("child", child))}
	d, err := NewDNSSniffer(getter, rdnet.NewVisitorContext("net/s"), cfg)
	require.NoError(t, err)
	return d, child
}

func buildDNSQuery(t *testing.T, name string) []byte {
	t.Helper()
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeA)
	buf, err := msg.Pack()
	require.NoError(t, err)
	return buf
}

func TestDNSSnifferPopulatesDestDomainFromQuery(t *testing.T) {
	d, child := buildTestSniffer(t)
	cctx := rdnet.NewContext()

	sock, err := d.UDPBind(context.Background(), cctx, rdnet.NewAddressDomain("0.0.0.0", 0))
	require.NoError(t, err)

	query := buildDNSQuery(t, "example.com")
	_, err = sock.SendTo(context.Background(), query, rdnet.NewAddressSocket(netip.MustParseAddrPort("8.8.8.8:53")))
	require.NoError(t, err)
	require.Len(t, child.sock.sent, 1)

	dest, ok := cctx.DestDomain()
	require.True(t, ok)
	assert.Equal(t, "example.com.", dest.Domain)
}

func TestDNSSnifferIgnoresNonDNSPort(t *testing.T) {
	d, _ := buildTestSniffer(t)
	cctx := rdnet.NewContext()

	sock, err := d.UDPBind(context.Background(), cctx, rdnet.NewAddressDomain("0.0.0.0", 0))
	require.NoError(t, err)

	_, err = sock.SendTo(context.Background(), []byte("not dns"), rdnet.NewAddressSocket(netip.MustParseAddrPort("8.8.8.8:443")))
	require.NoError(t, err)

	_, ok := cctx.DestDomain()
	assert.False(t, ok)
}

func TestDNSSnifferTCPConnectSetsDestinationOnPort53(t *testing.T) {
	d, _ := buildTestSniffer(t)
	cctx := rdnet.NewContext()

	_, err := d.TCPConnect(context.Background(), cctx, rdnet.NewAddressDomain("dns.example", 53))
	require.NoError(t, err)

	dest, ok := cctx.DestDomain()
	require.True(t, ok)
	assert.Equal(t, "dns.example", dest.Domain)
}
