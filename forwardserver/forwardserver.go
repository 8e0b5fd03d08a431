// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rd-std/src/server/forward.rs

// Package forwardserver implements the simplest ingress server kind: bind
// one address, and forward every accepted connection to one fixed target
// through the server's egress net, using [rdnet.ConnectTCP] as the copy
// primitive.
package forwardserver

import (
	"context"

	"github.com/rdproxy/rdnet"
)

// Config decodes to a [Server]. Net is the RunningNet used both to accept
// (bind Listen) and to dial out (connect Target); in the simplest
// deployment both the listener and the target live on the same net.
type Config struct {
	Net    rdnet.NetRef `json:"net" yaml:"net"`
	Listen string       `json:"listen" yaml:"listen"`
	Target string       `json:"target" yaml:"target"`
}

var _ rdnet.NetRefVisitor = (*Config)(nil)

// VisitNetRefs implements [rdnet.NetRefVisitor].
func (c *Config) VisitNetRefs(fn func(fieldPath string, ref *rdnet.NetRef) error) error {
	return fn("net", &c.Net)
}

// Server accepts on listenNet and forwards every connection to target
// through egressNet (the same RunningNet wrapped in a [rdnet.ServerNet]
// for connection tracking).
type Server struct {
	name       string
	listenAddr rdnet.Address
	target     rdnet.Address
	listenNet  *rdnet.RunningNet
	egressNet  rdnet.Net
	logger     rdnet.SLogger
}

var _ rdnet.Server = (*Server)(nil)

// New builds a forward-server once getter has resolved cfg.Net.
func New(bctx rdnet.ServerBuildContext, cfg *Config) (*Server, error) {
	listen, err := rdnet.ParseAddress(cfg.Listen)
	if err != nil {
		return nil, rdnet.WithContext(err, "forwardserver: listen")
	}
	target, err := rdnet.ParseAddress(cfg.Target)
	if err != nil {
		return nil, rdnet.WithContext(err, "forwardserver: target")
	}
	rn, err := bctx.Getter(&cfg.Net, bctx.VisitorCtx.Push("net"))
	if err != nil {
		return nil, rdnet.WithContext(err, "forwardserver: net")
	}
	return &Server{
		name:       bctx.ServerName,
		listenAddr: listen,
		target:     target,
		listenNet:  rn,
		egressNet:  rdnet.NewServerNet(bctx.ServerName, rn, bctx.Manager),
		logger:     rdnet.DefaultSLogger(),
	}, nil
}

// Serve implements [rdnet.Server]: binds listenAddr and, for every
// accepted connection, dials target through the tracked egress net and
// copies bytes in both directions with [rdnet.ConnectTCP].
func (s *Server) Serve(ctx context.Context) error {
	lst, err := s.listenNet.TCPBind(ctx, rdnet.NewContext(), s.listenAddr)
	if err != nil {
		return err
	}
	defer lst.Close()

	for {
		stream, _, err := lst.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handle(ctx, stream)
	}
}

func (s *Server) handle(ctx context.Context, client rdnet.TCPStream) {
	defer client.Close()
	cctx := rdnet.NewContext()
	upstream, err := s.egressNet.TCPConnect(ctx, cctx, s.target)
	if err != nil {
		s.logger.Info("forwardserver: dial failed", "server", s.name, "target", s.target, "err", err)
		return
	}
	defer upstream.Close()
	_ = rdnet.ConnectTCP(ctx, client, upstream)
}
