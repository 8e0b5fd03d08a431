//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/measurexlite/conn.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/conn.go
//

package rdnet

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/safeconn"
)

// NewObserveConnFunc returns a new [*ObserveConnFunc] wired from cfg.
//
// The cfg argument supplies the error classifier and time source shared
// by every dial-pipeline stage built from this [Config].
//
// The logger argument is the [SLogger] to use for structured logging.
func NewObserveConnFunc(cfg *Config, logger SLogger) *ObserveConnFunc {
	return &ObserveConnFunc{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// ObserveConnFunc wraps a [net.Conn] in a dial pipeline so every read,
// write, close, and deadline change emits a structured log event tagged
// with the connection's protocol and addresses.
//
// This stage only observes; it does not enforce timeouts. Pair it with
// [CancelWatchFunc] so a cancelled context closes the connection and any
// blocked I/O call fails immediately instead of waiting on a deadline.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type ObserveConnFunc struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewObserveConnFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewObserveConnFunc] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewObserveConnFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[net.Conn, net.Conn] = &ObserveConnFunc{}

// Call wraps conn in an [*observedConn] that logs its I/O operations; it
// never itself fails.
func (op *ObserveConnFunc) Call(ctx context.Context, conn net.Conn) (net.Conn, error) {
	observed := &observedConn{
		closeonce: sync.Once{},
		conn:      conn,
		laddr:     safeconn.LocalAddr(conn),
		op:        op,
		protocol:  safeconn.Network(conn),
		raddr:     safeconn.RemoteAddr(conn),
	}
	return observed, nil
}

// observedConn observes a [net.Conn].
type observedConn struct {
	closeonce sync.Once
	conn      net.Conn
	laddr     string
	op        *ObserveConnFunc
	protocol  string
	raddr     string
}

// Close implements [net.Conn].
//
// Subsequent calls return [net.ErrClosed], consistent with Go's standard
// library behavior for closed connections.
func (c *observedConn) Close() (err error) {
	err = net.ErrClosed
	c.closeonce.Do(func() {
		t0 := c.op.TimeNow()
		c.op.Logger.Info(
			"close_start",
			slog.String("local_addr", c.laddr),
			slog.String("protocol", c.protocol),
			slog.String("remote_addr", c.raddr),
			slog.Time("t", t0),
		)

		err = c.conn.Close()

		c.op.Logger.Info(
			"close_done",
			slog.Any("err", err),
			slog.String("err_class", c.op.ErrClassifier.Classify(err)),
			slog.String("local_addr", c.laddr),
			slog.String("protocol", c.protocol),
			slog.String("remote_addr", c.raddr),
			slog.Time("t0", t0),
			slog.Time("t", c.op.TimeNow()),
		)
	})
	return
}

// LocalAddr implements [net.Conn].
func (c *observedConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Read implements [net.Conn].
func (c *observedConn) Read(buf []byte) (int, error) {
	t0 := c.op.TimeNow()
	c.op.Logger.Debug(
		"read_start",
		slog.Int("io_buffer_size", len(buf)),
		slog.String("local_addr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remote_addr", c.raddr),
		slog.Time("t", t0),
	)

	count, err := c.conn.Read(buf)

	c.op.Logger.Debug(
		"read_done",
		slog.Int("io_bytes_count", count),
		slog.Any("err", err),
		slog.String("err_class", c.op.ErrClassifier.Classify(err)),
		slog.String("local_addr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remote_addr", c.raddr),
		slog.Time("t0", t0),
		slog.Time("t", c.op.TimeNow()),
	)

	return count, err
}

// RemoteAddr implements [net.Conn].
func (c *observedConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// SetDeadline implements [net.Conn].
func (c *observedConn) SetDeadline(t time.Time) error {
	c.op.Logger.Debug(
		"set_deadline",
		slog.Time("deadline", t),
		slog.String("local_addr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remote_addr", c.raddr),
		slog.Time("t", c.op.TimeNow()),
	)
	return c.conn.SetDeadline(t)
}

// SetReadDeadline implements [net.Conn].
func (c *observedConn) SetReadDeadline(t time.Time) error {
	c.op.Logger.Debug(
		"set_read_deadline",
		slog.Time("deadline", t),
		slog.String("local_addr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remote_addr", c.raddr),
		slog.Time("t", c.op.TimeNow()),
	)
	return c.conn.SetReadDeadline(t)
}

// SetWriteDeadline implements [net.Conn].
func (c *observedConn) SetWriteDeadline(t time.Time) error {
	c.op.Logger.Debug(
		"set_write_deadline",
		slog.Time("deadline", t),
		slog.String("local_addr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remote_addr", c.raddr),
		slog.Time("t", c.op.TimeNow()),
	)
	return c.conn.SetWriteDeadline(t)
}

// Write implements [net.Conn].
func (c *observedConn) Write(data []byte) (n int, err error) {
	t0 := c.op.TimeNow()
	c.op.Logger.Debug(
		"write_start",
		slog.Int("io_buffer_size", len(data)),
		slog.String("local_addr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remote_addr", c.raddr),
		slog.Time("t", t0),
	)

	count, err := c.conn.Write(data)

	c.op.Logger.Debug(
		"write_done",
		slog.Int("io_bytes_count", count),
		slog.Any("err", err),
		slog.String("err_class", c.op.ErrClassifier.Classify(err)),
		slog.String("local_addr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remote_addr", c.raddr),
		slog.Time("t0", t0),
		slog.Time("t", c.op.TimeNow()),
	)

	return count, err
}
