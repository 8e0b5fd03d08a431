// SPDX-License-Identifier: GPL-3.0-or-later

package forwardudp

import (
	"context"

	"github.com/rdproxy/rdnet"
)

// Server adapts a Forwarder to [rdnet.Server] so it can be registered as a
// server kind and driven by a [rdnet.RunningServer] like any other server.
type Server struct {
	forwarder *Forwarder
}

var _ rdnet.Server = (*Server)(nil)

// NewServer wraps forwarder for use as an [rdnet.Server].
func NewServer(forwarder *Forwarder) *Server {
	return &Server{forwarder: forwarder}
}

// Serve implements [rdnet.Server].
func (s *Server) Serve(ctx context.Context) error {
	return s.forwarder.Run(ctx)
}
