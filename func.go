// SPDX-License-Identifier: GPL-3.0-or-later

package rdnet

import "context"

// Func is one stage of a net kind's dial pipeline: it accepts an input and
// returns a result or an error.
//
// Stages compose via [Compose2], [Compose3], etc. into a single pipeline
// where the output of one stage flows into the input of the next — the
// shape every DNS transport in this package (dnsoverudp.go,
// dnsovertcp.go, dnsovertls.go, dnsoverhttps.go) is assembled from.
//
// Resource cleanup contract: when a stage receives a closeable resource as
// input and returns an error, it must close that resource before
// returning, so a failing pipeline never leaks a half-opened connection.
// See [TLSHandshakeFunc] for an example of this pattern.
type Func[A, B any] interface {
	Call(ctx context.Context, input A) (B, error)
}

// FuncAdapter wraps a plain function as a [Func] implementation, for
// building one-off pipeline stages from closures that don't warrant their
// own named type.
type FuncAdapter[A, B any] func(ctx context.Context, input A) (B, error)

// Call implements [Func].
func (f FuncAdapter[A, B]) Call(ctx context.Context, input A) (B, error) {
	return f(ctx, input)
}
