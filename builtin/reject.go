// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rd-std/src/builtin/blackhole.rs (reject shape)
// Adapted from: github.com/bassosimone/nop's dnsdial.go (dnsUnusedDialer "always fail" shape,
// generalized from panic to a returned error since production paths must not panic)

package builtin

import (
	"context"
	"net/netip"

	"github.com/rdproxy/rdnet"
)

// Reject returns [rdnet.ErrConnectionRefused] from every capability: the
// net a rule's implicit "nothing else matched" case, or an explicit
// "always refuse" entry, is wired to.
type Reject struct {
	rdnet.BaseNet
}

var _ rdnet.Net = (*Reject)(nil)

// NewReject builds the reject net.
func NewReject() *Reject { return &Reject{} }

// Capabilities implements [rdnet.Net].
func (*Reject) Capabilities() rdnet.Capability {
	return rdnet.CapTCPConnect | rdnet.CapTCPBind | rdnet.CapUDPBind | rdnet.CapLookupHost
}

// TCPConnect implements [rdnet.Net].
func (*Reject) TCPConnect(context.Context, *rdnet.Context, rdnet.Address) (rdnet.TCPStream, error) {
	return nil, rdnet.ErrConnectionRefused
}

// TCPBind implements [rdnet.Net].
func (*Reject) TCPBind(context.Context, *rdnet.Context, rdnet.Address) (rdnet.TCPListener, error) {
	return nil, rdnet.ErrConnectionRefused
}

// UDPBind implements [rdnet.Net].
func (*Reject) UDPBind(context.Context, *rdnet.Context, rdnet.Address) (rdnet.UDPSocket, error) {
	return nil, rdnet.ErrConnectionRefused
}

// LookupHost implements [rdnet.Net].
func (*Reject) LookupHost(context.Context, rdnet.Address) ([]netip.AddrPort, error) {
	return nil, rdnet.ErrConnectionRefused
}
