// SPDX-License-Identifier: GPL-3.0-or-later

package rdnet

import (
	"context"
	"net"
)

// dnsUnusedDialer is a [Dialer] placeholder that the DNS-over-UDP, -TCP
// and -TLS conns hand to their underlying transports. Those transports
// take a dialer, but each is only ever given a connection the dial
// pipeline has already established and exchanges every query over it
// without dialing again.
//
// DialContext panicking here catches a wiring bug (a transport mistakenly
// dialing on its own) early and loudly rather than producing a confusing
// runtime failure downstream.
type dnsUnusedDialer struct{}

var _ Dialer = dnsUnusedDialer{}

// DialContext implements [Dialer] and always panics.
func (dnsUnusedDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	panic("rdnet: a DNS transport must reuse its pre-established connection, not dial again")
}
