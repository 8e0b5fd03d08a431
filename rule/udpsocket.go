// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rabbit-digger-pro/src/rule/rule.rs (UdpRuleSocket, NAT tunnel)

package rule

import (
	"context"
	"net/netip"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/rdproxy/rdnet"
)

// inboundBufferSize bounds the UDPRuleSocket's back-channel queue; a full
// queue drops the oldest packet, consistent with UDP's lossy-by-contract
// ordering guarantee.
const inboundBufferSize = 256

// tunnelSendQueueSize bounds each outbound tunnel's send queue; a full
// queue rejects the send with an Other-kind error.
const tunnelSendQueueSize = 64

type inboundPacket struct {
	data []byte
	from rdnet.Address
}

// destCacheEntry is what the destination cache remembers per destination:
// the resolved target net and the name it was reached under.
type destCacheEntry struct {
	net  *rdnet.RunningNet
	name string
}

// tunnel is one outbound UDP socket opened via a chosen target net, plus
// the two background tasks that drain its send queue and copy its
// receives into the socket's shared back-channel.
type tunnel struct {
	socket rdnet.UDPSocket
	sendCh chan sendJob
	cancel context.CancelFunc
}

type sendJob struct {
	buf []byte
	to  rdnet.Address
}

// UDPRuleSocket is the synthetic UDPSocket a [Net] returns from UDPBind.
// It defers opening any outbound socket until the first packet to a
// given target is sent, multiplexing many logical peers behind
// per-target-name tunnels.
type UDPRuleSocket struct {
	owner *Net
	cctx  *rdnet.Context
	local rdnet.Address

	recvCh chan inboundPacket

	cache *lru.LRU[string, destCacheEntry]

	mu      sync.Mutex
	tunnels *lru.LRU[string, *tunnel]
}

var _ rdnet.UDPSocket = (*UDPRuleSocket)(nil)

func newUDPRuleSocket(owner *Net, cctx *rdnet.Context, local rdnet.Address) *UDPRuleSocket {
	s := &UDPRuleSocket{
		owner:  owner,
		cctx:   cctx,
		local:  local,
		recvCh: make(chan inboundPacket, inboundBufferSize),
	}
	s.cache = lru.NewLRU[string, destCacheEntry](owner.tuning.CacheCap, nil, owner.tuning.CacheTTL)
	s.tunnels = lru.NewLRU[string, *tunnel](owner.tuning.NATCap, s.onTunnelEvicted, owner.tuning.NATTTL)
	return s
}

// onTunnelEvicted cancels a tunnel's background tasks and closes its
// socket when the NAT table evicts it by LRU or TTL.
func (s *UDPRuleSocket) onTunnelEvicted(_ string, t *tunnel) {
	t.cancel()
	_ = t.socket.Close()
}

// SendTo implements [rdnet.UDPSocket].
func (s *UDPRuleSocket) SendTo(ctx context.Context, buf []byte, to rdnet.Address) (int, error) {
	entry, err := s.resolveTarget(ctx, to)
	if err != nil {
		return 0, err
	}
	t, err := s.tunnelFor(ctx, entry)
	if err != nil {
		return 0, err
	}

	cp := append([]byte(nil), buf...)
	select {
	case t.sendCh <- sendJob{buf: cp, to: to}:
		return len(buf), nil
	default:
		return 0, rdnet.Other(errSendQueueFull{})
	}
}

type errSendQueueFull struct{}

func (errSendQueueFull) Error() string { return "send queue full" }

// resolveTarget looks up to in the destination cache, evaluating matchers
// on a miss.
func (s *UDPRuleSocket) resolveTarget(ctx context.Context, to rdnet.Address) (destCacheEntry, error) {
	key := to.String()
	if entry, ok := s.cache.Get(key); ok {
		return entry, nil
	}
	ref, err := s.owner.dispatch(ctx, s.cctx, to)
	if err != nil {
		return destCacheEntry{}, err
	}
	rn, err := ref.Net()
	if err != nil {
		return destCacheEntry{}, err
	}
	entry := destCacheEntry{net: rn, name: ref.Name}
	s.cache.Add(key, entry)
	return entry, nil
}

// tunnelFor gets or creates the outbound tunnel for entry.name, keyed by
// target name.
func (s *UDPRuleSocket) tunnelFor(ctx context.Context, entry destCacheEntry) (*tunnel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tunnels.Get(entry.name); ok {
		return t, nil
	}

	socket, err := entry.net.UDPBind(ctx, s.cctx, s.local)
	if err != nil {
		return nil, err
	}

	tctx, cancel := context.WithCancel(context.Background())
	t := &tunnel{socket: socket, sendCh: make(chan sendJob, tunnelSendQueueSize), cancel: cancel}
	s.tunnels.Add(entry.name, t)

	go s.sendLoop(tctx, t)
	go s.recvLoop(tctx, t)
	return t, nil
}

// sendLoop drains t's send queue into its socket.
func (s *UDPRuleSocket) sendLoop(ctx context.Context, t *tunnel) {
	for {
		select {
		case job := <-t.sendCh:
			if _, err := t.socket.SendTo(ctx, job.buf, job.to); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// recvLoop copies packets received on t's socket into the shared
// back-channel.
func (s *UDPRuleSocket) recvLoop(ctx context.Context, t *tunnel) {
	buf := make([]byte, 65535)
	for {
		n, from, err := t.socket.RecvFrom(ctx, buf)
		if err != nil {
			return
		}
		packet := inboundPacket{data: append([]byte(nil), buf[:n]...), from: from}
		select {
		case s.recvCh <- packet:
		default:
			// Back-channel full: drop the oldest queued packet rather
			// than block the recv loop (UDP is lossy by contract).
			select {
			case <-s.recvCh:
			default:
			}
			select {
			case s.recvCh <- packet:
			default:
			}
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// RecvFrom implements [rdnet.UDPSocket], popping from the back-channel
// queue.
func (s *UDPRuleSocket) RecvFrom(ctx context.Context, buf []byte) (int, rdnet.Address, error) {
	select {
	case packet := <-s.recvCh:
		n := copy(buf, packet.data)
		return n, packet.from, nil
	case <-ctx.Done():
		return 0, rdnet.Address{}, ctx.Err()
	}
}

// LocalAddr implements [rdnet.UDPSocket].
func (s *UDPRuleSocket) LocalAddr() (netip.AddrPort, error) {
	return s.local.ToAnyAddrPort(), nil
}

// Close implements [rdnet.UDPSocket]; it closes every outstanding tunnel.
func (s *UDPRuleSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.tunnels.Keys() {
		if t, ok := s.tunnels.Peek(key); ok {
			t.cancel()
			_ = t.socket.Close()
		}
	}
	s.tunnels.Purge()
	return nil
}
