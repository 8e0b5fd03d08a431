// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rabbit-digger/src/rabbit_digger.rs (RunningDigger::build_net / start)
// Adapted from: original_source/rabbit-digger/rd-interface/src/registry.rs (resolve_net)

package rdnet

import (
	"encoding/json"
	"fmt"
)

// ServerRecord is one built (but not yet started) server entry. The
// running-server-handle itself is owned by the Engine, not the graph
// (a graph rebuild must not discard a still-running server's handle).
type ServerRecord struct {
	Name   string
	Kind   string
	Opt    json.RawMessage
	Server Server
}

// Graph is the output of [BuildGraph]: every net-table entry (including
// nets hoisted from inline NetRefs) resolved to a stable [*RunningNet],
// and every server-table entry built into a [*ServerRecord] ready to hand
// to a [*RunningServer].
type Graph struct {
	Nets    map[string]*RunningNet
	Servers map[string]*ServerRecord
}

type graphBuilder struct {
	registry *Registry
	manager  ConnManager
	logger   SLogger

	specs    map[string]NetSpec
	built    map[string]*RunningNet
	building map[string]bool
}

// BuildGraph resolves cfg into a [Graph]. It inserts the synthetic "local"
// entry if missing, hoists every inline NetRef encountered while building
// servers (and the nets they pull in transitively) into a generated name,
// detects cycles by leaving a sentinel in the build-in-progress set, and
// finally builds any net-table entry left over that no server happened to
// reference — so every entry named in cfg.Net ends up in the returned
// Nets map.
func BuildGraph(cfg *GraphConfig, registry *Registry, manager ConnManager, logger SLogger) (*Graph, error) {
	if manager == nil {
		manager = NoopConnManager
	}
	if logger == nil {
		logger = DefaultSLogger()
	}

	specs := make(map[string]NetSpec, len(cfg.Net)+1)
	for name, spec := range cfg.Net {
		specs[name] = spec
	}
	if _, ok := specs[DefaultNetRefName]; !ok {
		specs[DefaultNetRefName] = NetSpec{Type: "local"}
	}

	b := &graphBuilder{
		registry: registry,
		manager:  manager,
		logger:   logger,
		specs:    specs,
		built:    make(map[string]*RunningNet),
		building: make(map[string]bool),
	}

	servers := make(map[string]*ServerRecord, len(cfg.Server))
	for name, spec := range cfg.Server {
		record, err := b.buildServer(name, spec)
		if err != nil {
			return nil, WithContextf(err, "failed to build server %q", name)
		}
		servers[name] = record
	}

	// Build any net-table entry no server happened to reference, so the
	// returned graph is complete.
	for name := range specs {
		if _, ok := b.built[name]; ok {
			continue
		}
		if _, err := b.buildNet(name, NewVisitorContext("net/"+name)); err != nil {
			return nil, WithContextf(err, "failed to build net %q", name)
		}
	}

	return &Graph{Nets: b.built, Servers: servers}, nil
}

// buildNet builds (or returns the cached) RunningNet for name, detecting
// cycles via the building sentinel.
func (b *graphBuilder) buildNet(name string, vctx *VisitorContext) (*RunningNet, error) {
	if rn, ok := b.built[name]; ok {
		return rn, nil
	}
	if b.building[name] {
		return nil, NotFound(name)
	}
	spec, ok := b.specs[name]
	if !ok {
		return nil, NotFound(name)
	}

	b.building[name] = true
	defer delete(b.building, name)

	factory, ok := b.registry.Net(spec.Type)
	if !ok {
		return nil, Other(fmt.Errorf("unknown net kind %q (building %q)", spec.Type, name))
	}

	config := factory.NewConfig()
	if len(spec.Options) > 0 {
		if err := json.Unmarshal(spec.Options, config); err != nil {
			return nil, Other(fmt.Errorf("decoding options for net %q: %w", name, err))
		}
	}

	getter := b.getterFor()
	net, err := factory.Build(getter, vctx, config)
	if err != nil {
		return nil, err
	}

	rn := NewRunningNet(name, net)
	b.built[name] = rn
	b.logger.Info("net built", "name", name, "kind", spec.Type)
	return rn, nil
}

// getterFor returns the resolver closure factories use to resolve their
// own NetRef fields. Inline refs are hoisted to a generated name derived
// from vctx's path before being built; named refs recurse into buildNet
// directly, building the referenced entry first if it is not yet built.
func (b *graphBuilder) getterFor() NetGetter {
	return func(ref *NetRef, vctx *VisitorContext) (*RunningNet, error) {
		if ref.IsInline() {
			var inline NetSpec
			if err := json.Unmarshal(ref.Inline, &inline); err != nil {
				return nil, Other(fmt.Errorf("decoding inline net at %q: %w", vctx.Path(), err))
			}
			generated := vctx.Path()
			b.specs[generated] = inline
			ref.Hoist(generated)
		}
		rn, err := b.buildNet(ref.Name, NewVisitorContext("net/"+ref.Name))
		if err != nil {
			return nil, err
		}
		ref.Resolve(rn)
		return rn, nil
	}
}

// buildServer builds one server-table entry: resolves its egress net(s)
// via the shared getter (so any inline net it hoists
// lands in the same net table) and wraps them in [ServerNet] inside the
// factory's own Build function via [ServerBuildContext].
func (b *graphBuilder) buildServer(name string, spec ServerSpec) (*ServerRecord, error) {
	factory, ok := b.registry.ServerFactoryFor(spec.Type)
	if !ok {
		return nil, Other(fmt.Errorf("unknown server kind %q", spec.Type))
	}

	config := factory.NewConfig()
	if len(spec.Options) > 0 {
		if err := json.Unmarshal(spec.Options, config); err != nil {
			return nil, Other(fmt.Errorf("decoding options for server %q: %w", name, err))
		}
	}

	bctx := ServerBuildContext{
		ServerName: name,
		Getter:     b.getterFor(),
		VisitorCtx: NewVisitorContext("server/" + name),
		Manager:    b.manager,
	}
	srv, err := factory.Build(bctx, config)
	if err != nil {
		return nil, err
	}

	b.logger.Info("server built", "name", name, "kind", spec.Type)
	return &ServerRecord{Name: name, Kind: spec.Type, Opt: spec.Options, Server: srv}, nil
}
