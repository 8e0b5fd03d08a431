// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rabbit-digger-pro/src/forward_udp (transparent-proxy raw UDP forwarder)

// Package forwardudp implements a generic UDP forwarder: it shuttles raw
// packets reported by a transparent-proxy-style source through one
// configured outbound net, keyed by the originating client's socket
// address.
package forwardudp

import (
	"context"
	"net/netip"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/rdproxy/rdnet"
)

// RawPacket is one tuple a [RawUDPSource] reports: payload received from
// from, originally addressed to to.
type RawPacket struct {
	From    netip.AddrPort
	To      netip.AddrPort
	Payload []byte
}

// RawUDPSource is a raw packet source, typically a transparent-proxy
// listener. WriteBack delivers a reply back out through the source with
// the addresses swapped (from=original-to, to=original-from).
type RawUDPSource interface {
	ReadPacket(ctx context.Context) (RawPacket, error)
	WriteBack(ctx context.Context, pkt RawPacket) error
}

// flowQueueSize bounds a flow's outbound send queue; a full queue drops
// the packet with a logged warning rather than blocking the ingest loop.
const flowQueueSize = 64

type flow struct {
	outbound rdnet.UDPSocket
	sendCh   chan sendJob
	cancel   context.CancelFunc
}

type sendJob struct {
	payload []byte
	to      netip.AddrPort
}

// Forwarder owns the flow table and the two loops: one ingesting from
// source, one forwarding to net.
type Forwarder struct {
	source  RawUDPSource
	net     *rdnet.RunningNet
	logger  rdnet.SLogger

	mu    sync.Mutex
	flows *lru.LRU[netip.AddrPort, *flow]

	sendBackCh chan RawPacket
}

// Config tunes the forwarder's flow table bounds; zero fields fall back
// to the documented defaults (30s TTL, 256 capacity).
type Config struct {
	FlowTTL time.Duration
	FlowCap int
}

func (c Config) withDefaults() Config {
	if c.FlowTTL <= 0 {
		c.FlowTTL = 30 * time.Second
	}
	if c.FlowCap <= 0 {
		c.FlowCap = 256
	}
	return c
}

// New builds a Forwarder relaying source's traffic through net.
func New(source RawUDPSource, net *rdnet.RunningNet, cfg Config, logger rdnet.SLogger) *Forwarder {
	if logger == nil {
		logger = rdnet.DefaultSLogger()
	}
	cfg = cfg.withDefaults()
	f := &Forwarder{
		source:     source,
		net:        net,
		logger:     logger,
		sendBackCh: make(chan RawPacket, flowQueueSize),
	}
	f.flows = lru.NewLRU[netip.AddrPort, *flow](cfg.FlowCap, f.onFlowEvicted, cfg.FlowTTL)
	return f
}

// onFlowEvicted tears down a flow's background task and outbound socket
// when the table evicts it by LRU or TTL.
func (f *Forwarder) onFlowEvicted(_ netip.AddrPort, fl *flow) {
	fl.cancel()
	_ = fl.outbound.Close()
}

// Run drives the forwarder until ctx is cancelled or reading from source
// fails fatally: it ingests raw packets, dispatches each to its flow
// (creating one if needed), and writes send-back packets out through
// source, via one ingest loop plus one send-back consumer, both
// ctx-scoped.
func (f *Forwarder) Run(ctx context.Context) error {
	go f.writeBackLoop(ctx)

	for {
		pkt, err := f.source.ReadPacket(ctx)
		if err != nil {
			return err
		}
		if err := f.dispatch(ctx, pkt); err != nil {
			f.logger.Info("forwardudp: dropping packet", "from", pkt.From, "err", err)
		}
	}
}

// dispatch gets-or-creates the flow for pkt.From and enqueues the payload
// for the outbound socket.
func (f *Forwarder) dispatch(ctx context.Context, pkt RawPacket) error {
	fl, err := f.flowFor(ctx, pkt.From)
	if err != nil {
		return err
	}
	select {
	case fl.sendCh <- sendJob{payload: pkt.Payload, to: pkt.To}:
		return nil
	default:
		return rdnet.Other(errQueueFull{})
	}
}

type errQueueFull struct{}

func (errQueueFull) Error() string { return "forward queue full" }

func (f *Forwarder) flowFor(ctx context.Context, from netip.AddrPort) (*flow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if fl, ok := f.flows.Get(from); ok {
		return fl, nil
	}

	bindAddr := rdnet.NewAddressSocket(netip.AddrPortFrom(anyAddr(from.Addr()), 0))
	outbound, err := f.net.UDPBind(ctx, rdnet.NewContext(), bindAddr)
	if err != nil {
		return nil, err
	}

	fctx, cancel := context.WithCancel(context.Background())
	fl := &flow{outbound: outbound, sendCh: make(chan sendJob, flowQueueSize), cancel: cancel}
	f.flows.Add(from, fl)

	go f.flowSendLoop(fctx, fl)
	go f.flowRecvLoop(fctx, fl, from)
	return fl, nil
}

// anyAddr returns the wildcard address of addr's family, used to bind
// the outbound socket for a new flow on the outbound net.
func anyAddr(addr netip.Addr) netip.Addr {
	if addr.Is6() && !addr.Is4In6() {
		return netip.IPv6Unspecified()
	}
	return netip.IPv4Unspecified()
}

func (f *Forwarder) flowSendLoop(ctx context.Context, fl *flow) {
	for {
		select {
		case job := <-fl.sendCh:
			to := rdnet.NewAddressSocket(job.to)
			if _, err := fl.outbound.SendTo(ctx, job.payload, to); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// flowRecvLoop copies datagrams received on fl's outbound socket into the
// shared send-back channel, tagged with the swapped addresses.
func (f *Forwarder) flowRecvLoop(ctx context.Context, fl *flow, originalFrom netip.AddrPort) {
	buf := make([]byte, 65535)
	for {
		n, peer, err := fl.outbound.RecvFrom(ctx, buf)
		if err != nil {
			return
		}
		pkt := RawPacket{
			From:    peer.Socket, // swapped: the outbound socket's peer becomes the new "from"
			To:      originalFrom,
			Payload: append([]byte(nil), buf[:n]...),
		}
		select {
		case f.sendBackCh <- pkt:
		default:
			f.logger.Info("forwardudp: send-back channel full, dropping packet", "from", originalFrom)
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (f *Forwarder) writeBackLoop(ctx context.Context) {
	for {
		select {
		case pkt := <-f.sendBackCh:
			if err := f.source.WriteBack(ctx, pkt); err != nil {
				f.logger.Info("forwardudp: write-back failed", "err", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
