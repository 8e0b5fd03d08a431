// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rd-std/src/util/connect_tcp.rs

package rdnet

import (
	"context"
	"io"
)

const copyBufferSize = 8192

// ConnectTCP performs a bidirectional copy between a and b with
// independent half-close, returning once both directions have finished,
// or once the a-to-b direction has finished and ctx is done (the b-to-a
// copy is then left running). Unlike the Rust original's hand-rolled
// CopyBidirectional poll state machine, this is expressed with one
// goroutine plus io.CopyBuffer, since Go's blocking I/O model makes the
// state machine unnecessary.
func ConnectTCP(ctx context.Context, a, b TCPStream) error {
	errc := make(chan error, 1)
	go func() {
		errc <- copyHalf(a, b)
	}()
	errA := copyHalf(b, a)

	var errB error
	select {
	case errB = <-errc:
	case <-ctx.Done():
		errB = ctx.Err()
	}

	if errA != nil {
		return errA
	}
	return errB
}

// copyHalf copies src -> dst until EOF, then half-closes dst's write side
// via [TCPStream.CloseWrite].
func copyHalf(dst, src TCPStream) error {
	buf := make([]byte, copyBufferSize)
	_, err := io.CopyBuffer(dst, src, buf)
	_ = dst.CloseWrite()
	return err
}
