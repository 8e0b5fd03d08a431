// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rabbit-digger/src/rabbit_digger.rs (RabbitDigger::start/stop/start_stream)

package rdnet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// EngineState is the Engine's top-level state: either waiting for its
// first config, or running with a built graph of nets and servers.
type EngineState int

const (
	EngineWaitConfig EngineState = iota
	EngineRunning
)

// Engine is the top-level object holding the current graph and
// starting/stopping servers as configs stream in. A single Engine
// serializes all reloads: [Engine.Start] takes an internal mutex so no
// two rebuilds ever overlap.
type Engine struct {
	registry *Registry
	manager  ConnManager
	cfg      *EngineConfig

	mu             sync.Mutex
	state          EngineState
	nets           map[string]*RunningNet
	servers        map[string]*RunningServer
	configSnapshot *GraphConfig
}

// NewEngine returns a WaitConfig Engine bound to registry and manager.
// cfg may be nil, in which case [NewEngineConfig] defaults are used.
func NewEngine(registry *Registry, manager ConnManager, cfg *EngineConfig) *Engine {
	if cfg == nil {
		cfg = NewEngineConfig()
	}
	if manager == nil {
		manager = NoopConnManager
	}
	return &Engine{
		registry: registry,
		manager:  manager,
		cfg:      cfg,
		state:    EngineWaitConfig,
		nets:     make(map[string]*RunningNet),
		servers:  make(map[string]*RunningServer),
	}
}

// State returns the current top-level state.
func (e *Engine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// GetNet looks up a RunningNet by name for introspection.
func (e *Engine) GetNet(name string) (*RunningNet, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rn, ok := e.nets[name]
	return rn, ok
}

// GetConfig borrows the current serialized config via fn.
func (e *Engine) GetConfig(fn func(*GraphConfig)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.configSnapshot)
}

// UpdateNet rebuilds only the named net from newSpec and swaps its impl
// in place, without touching any other net or any server — an atomic
// single-net reconfiguration that bypasses a full graph rebuild.
func (e *Engine) UpdateNet(name string, newSpec NetSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	factory, ok := e.registry.Net(newSpec.Type)
	if !ok {
		return Other(fmt.Errorf("unknown net kind %q", newSpec.Type))
	}
	config := factory.NewConfig()
	if len(newSpec.Options) > 0 {
		if err := json.Unmarshal(newSpec.Options, config); err != nil {
			return WithContextf(Other(err), "decoding options for net %q", name)
		}
	}
	getter := func(ref *NetRef, vctx *VisitorContext) (*RunningNet, error) {
		if rn, ok := e.nets[ref.Name]; ok {
			ref.Resolve(rn)
			return rn, nil
		}
		return nil, NotFound(ref.Name)
	}
	net, err := factory.Build(getter, NewVisitorContext("net/"+name), config)
	if err != nil {
		return WithContextf(err, "failed to rebuild net %q", name)
	}

	if existing, ok := e.nets[name]; ok {
		existing.UpdateImpl(net)
	} else {
		e.nets[name] = NewRunningNet(name, net)
	}
	return nil
}

// Start builds a new graph from cfg and reconciles it with the currently
// running one:
//
//  1. Build the graph (C3). A build error aborts the reload; the previous
//     graph keeps running untouched.
//  2. Servers no longer present are stopped and dropped.
//  3. Nets whose name survives across the reload keep their *RunningNet
//     identity; only their impl is atomically swapped, so flows already
//     holding that identity are unaffected. New names adopt the freshly
//     built handle.
//  4. Servers are (re)started; [RunningServer.Start] itself no-ops when
//     the config bytes are unchanged.
func (e *Engine) Start(cfg *GraphConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	graph, err := BuildGraph(cfg, e.registry, e.manager, e.cfg.Logger)
	if err != nil {
		return WithContext(err, "failed to build graph")
	}

	newNets := make(map[string]*RunningNet, len(graph.Nets))
	for name, rn := range graph.Nets {
		if existing, ok := e.nets[name]; ok {
			existing.UpdateImpl(rn.GetInner())
			newNets[name] = existing
		} else {
			newNets[name] = rn
		}
	}
	e.nets = newNets

	for name, rs := range e.servers {
		if _, ok := graph.Servers[name]; !ok {
			rs.Stop()
			delete(e.servers, name)
		}
	}
	for name, record := range graph.Servers {
		rs, ok := e.servers[name]
		if !ok {
			rs = NewRunningServer(name, e.cfg.Logger)
			e.servers[name] = rs
		}
		rs.Start(record.Opt, record.Server)
	}

	e.configSnapshot = cfg
	e.state = EngineRunning
	return nil
}

// Stop stops every server and waits for each to join, then transitions
// to WaitConfig. It does not forcibly close connections unless hard is
// true, in which case the manager's StopConnections is invoked if it
// implements one.
func (e *Engine) Stop(hard bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rs := range e.servers {
		rs.Stop()
	}
	e.servers = make(map[string]*RunningServer)
	e.nets = make(map[string]*RunningNet)
	e.configSnapshot = nil
	e.state = EngineWaitConfig

	if hard {
		if stopper, ok := e.manager.(interface{ StopConnections() int }); ok {
			stopper.StopConnections()
		}
	}
}

// StartStream awaits configs from the channel, applying each in turn.
// The first config must arrive within e.cfg.FirstConfigTimeout or
// StartStream returns a [KindTimeout] error without ever reaching
// Running. Once running, StartStream keeps applying every subsequent
// config until the channel closes (at which point it stops the engine
// and returns nil) or ctx is cancelled (in which case it stops the
// engine and returns ctx.Err()). A config that fails to build is logged
// and does not interrupt the loop; a fatal server error is surfaced in
// the log but the engine keeps waiting for the next config.
func (e *Engine) StartStream(ctx context.Context, configs <-chan *GraphConfig) error {
	timeout := e.cfg.FirstConfigTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case cfg, ok := <-configs:
		if !ok {
			return nil
		}
		if err := e.Start(cfg); err != nil {
			e.cfg.Logger.Info("initial config failed to build", "err", err)
		}
	case <-time.After(timeout):
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		select {
		case cfg, ok := <-configs:
			if !ok {
				e.Stop(false)
				return nil
			}
			if err := e.Start(cfg); err != nil {
				e.cfg.Logger.Info("config failed to build, keeping previous graph", "err", err)
			}
		case <-ctx.Done():
			e.Stop(false)
			return ctx.Err()
		}
	}
}
