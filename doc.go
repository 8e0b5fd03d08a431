// SPDX-License-Identifier: GPL-3.0-or-later

// Package rdnet implements a pluggable proxy and traffic-routing engine: a
// configuration-driven graph of named "nets" (outbound transports) and
// "servers" (ingress listeners) that can be hot-reloaded without disturbing
// in-flight connections.
//
// # Core Abstraction
//
// A [Net] is a named object exposing a non-empty subset of four
// capabilities: TcpConnect, TcpBind, UdpBind and LookupHost. Concrete nets
// are registered in a [Registry] under a kind name (e.g. "local", "rule",
// "selector") together with a factory that builds an instance from an
// opaque config value.
//
// A [GraphConfig] describes a net table and a server table. [BuildGraph] walks
// that config, hoisting inline net definitions into generated entries and
// resolving every [NetRef] to a stable [*RunningNet] handle. An [Engine]
// owns the resulting graph, starts/stops servers as new configs arrive, and
// serialises reloads so that at most one graph rebuild runs at a time.
//
// Every server wraps its egress net in a [*ServerNet] decorator that tags
// the per-flow [*Context] with the server's name and registers the
// resulting stream with the engine's [ConnManager] (such as
// [github.com/rdproxy/rdnet/connmgr.Manager]), which tracks byte counters and
// supports cooperative cancellation of any in-flight flow.
//
// # Dial Primitives
//
// The lower layer of this package — composable [Func] pipelines for
// dialing, observing and wrapping connections — is what the built-in "local"
// net and the DNS-resolution net are built from:
//
//	type Func[A, B any] interface {
//		Call(ctx context.Context, input A) (B, error)
//	}
//
// Each Func represents an atomic network operation with exactly one success
// mode and one failure mode. This design enables type-safe composition via
// [Compose2], [Compose3], etc., where the compiler verifies that outputs
// match inputs across pipeline stages.
//
// Connection establishment:
//   - [ConnectFunc]: dials TCP or UDP endpoints
//   - [TLSHandshakeFunc]: performs TLS handshake over an existing connection
//   - [ObserveConnFunc]: observes connections for logging I/O operations
//   - [CancelWatchFunc]: closes connection on context cancellation (for responsive ^C handling)
//
// HTTP:
//   - [HTTPConn]: wraps a connection with an HTTP transport, performs round trips
//     with structured logging and transparent body observation (created via [NewHTTPConnFunc])
//
// DNS resolution (backs the "dns" net kind's LookupHost capability):
//   - [DNSOverUDPConn]: wraps a UDP connection for DNS-over-UDP (owns the connection)
//   - [DNSOverTCPConn]: wraps a TCP connection for DNS-over-TCP (owns the connection)
//   - [DNSOverTLSConn]: wraps a TLS connection for DNS-over-TLS (owns the connection)
//   - [DNSOverHTTPSConn]: wraps an HTTPConn for DNS-over-HTTPS (owns the connection)
//
// Composition utilities:
//   - [Compose2] through [Compose8]: chain Funcs into pipelines
//   - [FuncAdapter]: wrap a function as a Func for ad-hoc custom behavior
//   - [Apply]: bind a fixed input to a Func
//   - [ConstFunc]: lift a pure value into a Func
//   - [NewEndpointFunc]: convenience wrapper for ConstFunc with endpoints
//
// # Observability
//
// All primitives support structured logging via [SLogger] (compatible with
// [log/slog]). Each stage's constructor takes the [SLogger] to log to;
// [DefaultSLogger] discards everything. Error classification is
// configurable via [ErrClassifier]: [NewConfig] labels errors with the
// OS-errno names of [github.com/rdproxy/rdnet/errclass.Classify] for the
// err_class log field, and [DefaultErrClassifier] leaves that field empty.
// [KindOf] maps an error onto the package's closed [Kind] taxonomy (see
// errors.go).
//
// Use [NewSpanID] to generate a unique, time-ordered identifier (UUIDv7);
// the connection manager uses it for connection identifiers.
//
// # Design Boundaries
//
// This package does not parse configuration files, does not implement any
// wire protocol (Trojan framing, Shadowsocks AEAD, SOCKS5/HTTP codecs), and
// does not schedule goroutines beyond what the Go runtime already does.
// Those concerns belong to higher layers that consume the interfaces
// exposed here.
package rdnet
