// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rabbit-digger/rd-interface/src/registry.rs

package rdnet

import (
	"context"
	"fmt"
	"sync"
)

// NetGetter resolves a child NetRef to a live RunningNet during graph
// build, recursing into the referenced net's own build if it is not yet
// built.
type NetGetter func(ref *NetRef, vctx *VisitorContext) (*RunningNet, error)

// NetFactory builds net instances of one kind.
type NetFactory struct {
	// Kind is the registry key, e.g. "local", "rule", "selector".
	Kind string
	// NewConfig returns a pointer to a freshly zero-valued config value
	// suitable for json.Unmarshal into, e.g. func() any { return new(RuleConfig) }.
	NewConfig func() any
	// Build constructs the Net. vctx is the traversal path to this net
	// (used to name any inline refs the config hoists from within).
	Build func(getter NetGetter, vctx *VisitorContext, config any) (Net, error)
}

// NewNetFactory adapts a typed build function into a [NetFactory], type
// -asserting the opaque config back to *C. This is the generic-function
// composition idiom already used for Func[A,B] (compose.go) applied to
// builder registration instead of dial pipelines.
func NewNetFactory[C any](kind string, build func(getter NetGetter, vctx *VisitorContext, cfg *C) (Net, error)) NetFactory {
	return NetFactory{
		Kind:      kind,
		NewConfig: func() any { return new(C) },
		Build: func(getter NetGetter, vctx *VisitorContext, config any) (Net, error) {
			cfg, ok := config.(*C)
			if !ok {
				return nil, Other(fmt.Errorf("net kind %q: config type %T, want %T", kind, config, cfg))
			}
			return build(getter, vctx, cfg)
		},
	}
}

// Server is the lifecycle contract every server kind implements. A
// RunningServer owns one of these and drives it through its state
// machine.
type Server interface {
	// Serve runs the accept loop until ctx is cancelled or a fatal error
	// occurs. It must return promptly after ctx is done.
	Serve(ctx context.Context) error
}

// ServerBuildContext bundles what a server factory needs to resolve its
// egress net(s) and wrap them for connection tracking via [ServerNet].
type ServerBuildContext struct {
	ServerName string
	Getter     NetGetter
	VisitorCtx *VisitorContext
	Manager    ConnManager
}

// ServerFactory builds server instances of one kind.
type ServerFactory struct {
	Kind      string
	NewConfig func() any
	Build     func(bctx ServerBuildContext, config any) (Server, error)
}

// NewServerFactory adapts a typed build function into a [ServerFactory].
func NewServerFactory[C any](kind string, build func(bctx ServerBuildContext, cfg *C) (Server, error)) ServerFactory {
	return ServerFactory{
		Kind:      kind,
		NewConfig: func() any { return new(C) },
		Build: func(bctx ServerBuildContext, config any) (Server, error) {
			cfg, ok := config.(*C)
			if !ok {
				return nil, Other(fmt.Errorf("server kind %q: config type %T, want %T", kind, config, cfg))
			}
			return build(bctx, cfg)
		},
	}
}

// Registry holds the name→factory maps for net kinds and server kinds. It
// is populated once at process start and is thereafter read-only: no
// component needs to mutate it after the initial registration pass.
type Registry struct {
	mu      sync.RWMutex
	nets    map[string]NetFactory
	servers map[string]ServerFactory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		nets:    make(map[string]NetFactory),
		servers: make(map[string]ServerFactory),
	}
}

// AddNet registers a net factory. Duplicate registrations are rejected at
// registration time.
func (r *Registry) AddNet(f NetFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.nets[f.Kind]; exists {
		return Other(fmt.Errorf("net kind %q already registered", f.Kind))
	}
	r.nets[f.Kind] = f
	return nil
}

// AddServer registers a server factory. Duplicate registrations are rejected.
func (r *Registry) AddServer(f ServerFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.servers[f.Kind]; exists {
		return Other(fmt.Errorf("server kind %q already registered", f.Kind))
	}
	r.servers[f.Kind] = f
	return nil
}

// Net looks up a net factory by kind.
func (r *Registry) Net(kind string) (NetFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.nets[kind]
	return f, ok
}

// ServerFactoryFor looks up a server factory by kind.
func (r *Registry) ServerFactoryFor(kind string) (ServerFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.servers[kind]
	return f, ok
}

// NetKinds returns the registered net kind names.
func (r *Registry) NetKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.nets))
	for k := range r.nets {
		out = append(out, k)
	}
	return out
}

// ServerKinds returns the registered server kind names.
func (r *Registry) ServerKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.servers))
	for k := range r.servers {
		out = append(out, k)
	}
	return out
}
