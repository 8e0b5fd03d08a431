// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/src/select.rs (kept in the pack's filtered index)
// Adapted from: github.com/bassosimone/nop's cancelwatch.go (atomic-swap-on-read ownership idiom)

package builtin

import (
	"context"
	"net/netip"
	"sync/atomic"

	"github.com/rdproxy/rdnet"
)

// SelectorConfig decodes to a [Selector] net: a map of named children
// plus which one starts selected.
type SelectorConfig struct {
	Nets    map[string]rdnet.NetRef `json:"nets" yaml:"nets"`
	Default string                  `json:"default" yaml:"default"`
}

var _ rdnet.NetRefVisitor = (*SelectorConfig)(nil)

// VisitNetRefs implements [rdnet.NetRefVisitor].
func (c *SelectorConfig) VisitNetRefs(fn func(fieldPath string, ref *rdnet.NetRef) error) error {
	for name := range c.Nets {
		ref := c.Nets[name]
		if err := fn("nets/"+name, &ref); err != nil {
			return err
		}
		c.Nets[name] = ref
	}
	return nil
}

// Selector holds a set of named child nets and a mutable
// "current selection", delegating every capability call to whichever
// child is currently selected. Selection state lives behind an atomic pointer so
// the read path (every new flow) never takes a lock, mirroring
// [rdnet.RunningNet]'s impl-swap idiom.
type Selector struct {
	order    []string
	children map[string]*rdnet.RunningNet
	current  atomic.Pointer[string]
}

var _ rdnet.Net = (*Selector)(nil)

// NewSelector builds the selector net once getter has resolved every
// entry in cfg.Nets. If cfg.Default is empty, the child visited first in
// map iteration order starts selected; with more than one child, which
// one that is is not defined.
func NewSelector(getter rdnet.NetGetter, vctx *rdnet.VisitorContext, cfg *SelectorConfig) (*Selector, error) {
	s := &Selector{children: make(map[string]*rdnet.RunningNet, len(cfg.Nets))}
	for name, ref := range cfg.Nets {
		ref := ref
		rn, err := getter(&ref, vctx.Push("nets").Push(name))
		if err != nil {
			return nil, rdnet.WithContextf(err, "selector: net %q", name)
		}
		cfg.Nets[name] = ref
		s.children[name] = rn
		s.order = append(s.order, name)
	}
	def := cfg.Default
	if def == "" && len(s.order) > 0 {
		def = s.order[0]
	}
	if _, ok := s.children[def]; def != "" && !ok {
		return nil, rdnet.NotFound(def)
	}
	s.current.Store(&def)
	return s, nil
}

// Select changes the current selection, returning [rdnet.ErrNotFound]-kind
// error if name is not one of the configured children. This is the
// control-plane hook for switching egress at runtime. Outstanding flows
// that already captured the previous child via
// [Selector.current] keep running against it; only subsequent calls see
// the new selection.
func (s *Selector) Select(name string) error {
	if _, ok := s.children[name]; !ok {
		return rdnet.NotFound(name)
	}
	s.current.Store(&name)
	return nil
}

// Current returns the name of the currently selected child.
func (s *Selector) Current() string {
	if p := s.current.Load(); p != nil {
		return *p
	}
	return ""
}

// Names returns the configured child names. They come from a map, so
// their order is not defined.
func (s *Selector) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Selector) selected() (*rdnet.RunningNet, error) {
	name := s.Current()
	rn, ok := s.children[name]
	if !ok {
		return nil, rdnet.NotFound(name)
	}
	return rn, nil
}

// Capabilities implements [rdnet.Net].
func (s *Selector) Capabilities() rdnet.Capability {
	rn, err := s.selected()
	if err != nil {
		return 0
	}
	return rn.Capabilities()
}

// TCPConnect implements [rdnet.Net].
func (s *Selector) TCPConnect(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.TCPStream, error) {
	rn, err := s.selected()
	if err != nil {
		return nil, err
	}
	return rn.TCPConnect(ctx, cctx, addr)
}

// TCPBind implements [rdnet.Net].
func (s *Selector) TCPBind(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.TCPListener, error) {
	rn, err := s.selected()
	if err != nil {
		return nil, err
	}
	return rn.TCPBind(ctx, cctx, addr)
}

// UDPBind implements [rdnet.Net].
func (s *Selector) UDPBind(ctx context.Context, cctx *rdnet.Context, addr rdnet.Address) (rdnet.UDPSocket, error) {
	rn, err := s.selected()
	if err != nil {
		return nil, err
	}
	return rn.UDPBind(ctx, cctx, addr)
}

// LookupHost implements [rdnet.Net].
func (s *Selector) LookupHost(ctx context.Context, addr rdnet.Address) ([]netip.AddrPort, error) {
	rn, err := s.selected()
	if err != nil {
		return nil, err
	}
	return rn.LookupHost(ctx, addr)
}

// GetInner implements [rdnet.Net], exposing the currently selected child.
func (s *Selector) GetInner() rdnet.Net {
	rn, err := s.selected()
	if err != nil {
		return nil
	}
	return rn
}
