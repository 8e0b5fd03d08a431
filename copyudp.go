// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rd-std/src/util/connect_udp.rs

package rdnet

import "context"

const udpCopyBufferSize = 65535

// ConnectUDP shuttles datagrams bidirectionally between two single-peer
// UDP endpoints: everything local receives is forwarded
// to remote at remoteAddr, and everything remote receives is forwarded
// back to local at clientAddr. It returns when either direction errors or
// ctx is cancelled.
//
// This is the one-shot "UDP association" shape (one logical channel paired
// with one real socket already bound to a single peer). The Rule net's
// per-destination NAT ([rule.UDPRuleSocket]) and the generic UDP forwarder
// ([forwardudp.Forwarder]) both need to multiplex many such pairings behind
// one bound socket, so they implement their own send-queue/recv-loop pairs
// directly rather than building on this helper.
func ConnectUDP(ctx context.Context, local UDPSocket, clientAddr Address, remote UDPSocket, remoteAddr Address) error {
	errc := make(chan error, 2)
	go func() { errc <- relayUDP(ctx, local, remote, remoteAddr) }()
	go func() { errc <- relayUDP(ctx, remote, local, clientAddr) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// relayUDP copies datagrams received on src to dst, always sent to to.
func relayUDP(ctx context.Context, src, dst UDPSocket, to Address) error {
	buf := make([]byte, udpCopyBufferSize)
	for {
		n, _, err := src.RecvFrom(ctx, buf)
		if err != nil {
			return err
		}
		if _, err := dst.SendTo(ctx, buf[:n], to); err != nil {
			return err
		}
	}
}
