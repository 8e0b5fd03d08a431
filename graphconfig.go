// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rabbit_digger.rs's SerializedConfig / Config shape

package rdnet

import (
	"encoding/json"
	"time"
)

// NetSpec is one entry of a [GraphConfig]'s net table: a tagged kind plus
// an opaque options object. The same shape is reused for inline NetRef
// payloads.
type NetSpec struct {
	Type    string          `json:"type" yaml:"type"`
	Options json.RawMessage `json:"options,omitempty" yaml:"options,omitempty"`
}

// ServerSpec is one entry of a [GraphConfig]'s server table.
type ServerSpec struct {
	Type    string          `json:"type" yaml:"type"`
	Options json.RawMessage `json:"options,omitempty" yaml:"options,omitempty"`
}

// GraphConfig is the pre-validated structured form the engine consumes.
// The core never parses a file or resolves imports/templating; a loader
// builds this value and hands it to [Engine.Start] or streams successive
// values to [Engine.StartStream].
type GraphConfig struct {
	PluginPath string                `json:"plugin_path,omitempty" yaml:"plugin_path,omitempty"`
	Net        map[string]NetSpec    `json:"net" yaml:"net"`
	Server     map[string]ServerSpec `json:"server" yaml:"server"`
}

// Bytes serializes cfg deterministically (sorted map keys, via
// encoding/json). Two structurally equal configs always serialize
// identically because Go's json encoder sorts map keys. The reload
// restart check does not use it: [RunningServer.Start] compares each
// server's own option bytes.
func (c *GraphConfig) Bytes() ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, Other(err)
	}
	return b, nil
}

// EngineConfig holds engine-wide defaults: logger, error classifier, time
// source, and default capacities. The [Engine] reads Logger and
// FirstConfigTimeout; no component in this module reads the other fields
// (the connection manager, the rule net and the UDP forwarder apply their
// own built-in defaults). Generalizes the
// [Config]/[NewConfig] default-constructor pattern (config.go) from a
// single dial pipeline to the whole engine.
type EngineConfig struct {
	// Logger receives structured lifecycle events. Defaults to a
	// discarding [SLogger].
	Logger SLogger
	// ErrClassifier labels low-level errors for log fields. Defaults to
	// [DefaultErrClassifier].
	ErrClassifier ErrClassifier
	// TimeNow is the injectable time source (tests substitute a fake
	// clock to exercise TTL eviction deterministically).
	TimeNow func() time.Time

	// FirstConfigTimeout bounds how long StartStream waits for the first
	// config before giving up.
	FirstConfigTimeout time.Duration

	// EventBatchWindow / EventBatchSize describe the connection manager's
	// event coalescing bounds, e.g. within 100 ms or every 16 events,
	// whichever comes first.
	EventBatchWindow time.Duration
	EventBatchSize   int

	// UDPNatTTL / RuleNatCap / ForwardUDPCap are the rule net's and
	// forwarder's default UDP NAT bounds: entries expire after TTL of
	// inactivity, and each table is capped at its configured capacity
	// (128 for the rule net, 256 for the generic forwarder).
	UDPNatTTL      time.Duration
	RuleNatCap     int
	ForwardUDPCap  int
	UDPChannelSize int
}

// NewEngineConfig returns the engine's documented defaults.
func NewEngineConfig() *EngineConfig {
	return &EngineConfig{
		Logger:             DefaultSLogger(),
		ErrClassifier:      DefaultErrClassifier,
		TimeNow:            time.Now,
		FirstConfigTimeout: 30 * time.Second,
		EventBatchWindow:   100 * time.Millisecond,
		EventBatchSize:     16,
		UDPNatTTL:          30 * time.Second,
		RuleNatCap:         128,
		ForwardUDPCap:      256,
		UDPChannelSize:     128,
	}
}
