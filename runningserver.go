// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rabbit-digger/src/rabbit_digger.rs (RunningServer lifecycle
// implied by Inner/RunningEntities' stop/join handling)

package rdnet

import (
	"bytes"
	"context"
	"fmt"
	"sync"
)

// ServerState is one state of the RunningServer machine:
//
//	Idle --start--> Running(task, cancel) --task completes--> Finished(result)
//	Running --stop--> Idle
//	Finished --start--> Running(...)
//	Finished --TakeResult--> Idle
type ServerState int

const (
	ServerIdle ServerState = iota
	ServerRunning
	ServerFinished
)

// String implements [fmt.Stringer].
func (s ServerState) String() string {
	switch s {
	case ServerIdle:
		return "idle"
	case ServerRunning:
		return "running"
	case ServerFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// RunningServer owns the lifecycle of a single server task. It restarts
// only when asked to start with different config bytes than the ones it
// is currently running.
type RunningServer struct {
	name   string
	logger SLogger

	mu          sync.Mutex
	state       ServerState
	configBytes []byte
	cancel      context.CancelFunc
	done        chan struct{}
	result      error
}

// NewRunningServer returns an Idle RunningServer for the named server entry.
func NewRunningServer(name string, logger SLogger) *RunningServer {
	if logger == nil {
		logger = DefaultSLogger()
	}
	return &RunningServer{name: name, logger: logger, state: ServerIdle}
}

// Name returns the server-table entry name this handle was built for.
func (rs *RunningServer) Name() string {
	return rs.name
}

// State returns the current lifecycle state.
func (rs *RunningServer) State() ServerState {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.state
}

// ConfigBytes returns the config bytes currently (or most recently)
// running, the value [RunningServer.Start] compares new config bytes
// against.
func (rs *RunningServer) ConfigBytes() []byte {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.configBytes
}

// Start begins running srv if not already running with identical
// configBytes: if currently Running with the same config bytes, this is
// a no-op; otherwise it stops the current run and spawns srv.Serve
// fresh. It reports whether a (re)start actually happened.
func (rs *RunningServer) Start(configBytes []byte, srv Server) bool {
	rs.mu.Lock()
	if rs.state == ServerRunning && bytes.Equal(rs.configBytes, configBytes) {
		rs.mu.Unlock()
		return false
	}
	rs.mu.Unlock()

	rs.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	rs.mu.Lock()
	rs.cancel = cancel
	rs.done = done
	rs.configBytes = append([]byte(nil), configBytes...)
	rs.state = ServerRunning
	rs.mu.Unlock()

	go rs.run(ctx, srv, done)

	rs.logger.Info("server started", "name", rs.name)
	return true
}

// run executes srv.Serve, converting a panic into an error result so a
// single misbehaving server never takes down the engine.
func (rs *RunningServer) run(ctx context.Context, srv Server, done chan struct{}) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("server %q panicked: %v", rs.name, r)
			}
		}()
		err = srv.Serve(ctx)
	}()

	rs.mu.Lock()
	if rs.state == ServerRunning {
		rs.result = err
		rs.state = ServerFinished
	}
	rs.mu.Unlock()
	close(done)

	if err != nil {
		rs.logger.Info("server exited with error", "name", rs.name, "err", err)
	}
}

// Stop aborts the running task (if any), waits for it to exit, and
// transitions to Idle, logging any error the task returned.
func (rs *RunningServer) Stop() {
	rs.mu.Lock()
	if rs.state != ServerRunning {
		rs.mu.Unlock()
		return
	}
	cancel := rs.cancel
	done := rs.done
	rs.mu.Unlock()

	cancel()
	<-done

	rs.mu.Lock()
	if rs.result != nil {
		rs.logger.Info("server stopped with pending error", "name", rs.name, "err", rs.result)
	}
	rs.result = nil
	rs.state = ServerIdle
	rs.mu.Unlock()
}

// Join blocks until the current run completes, without cancelling it.
// It returns immediately if the server is not Running.
func (rs *RunningServer) Join() {
	rs.mu.Lock()
	done := rs.done
	state := rs.state
	rs.mu.Unlock()
	if state == ServerRunning && done != nil {
		<-done
	}
}

// TakeResult moves the captured result out of a Finished state, reverting
// to Idle, or returns (nil, false) if not Finished.
func (rs *RunningServer) TakeResult() (error, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.state != ServerFinished {
		return nil, false
	}
	result := rs.result
	rs.result = nil
	rs.state = ServerIdle
	return result, true
}
