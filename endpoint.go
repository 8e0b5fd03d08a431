// SPDX-License-Identifier: GPL-3.0-or-later

package rdnet

import "net/netip"

// NewEndpointFunc returns a dial-pipeline source stage that always yields
// endpoint, regardless of input. Net kinds with a fixed, pre-resolved
// server address (a DNS resolver's own IP:port, a static upstream proxy)
// use this to seed a pipeline without a resolution stage.
//
// This is a thin wrapper around [ConstFunc] specialized to [netip.AddrPort].
func NewEndpointFunc(endpoint netip.AddrPort) Func[Unit, netip.AddrPort] {
	return ConstFunc(endpoint)
}
