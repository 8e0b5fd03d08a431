// SPDX-License-Identifier: GPL-3.0-or-later

package rdnet

import (
	"log/slog"
	"time"
)

// DNSExchangeLogContext holds the shared logging state for one DNS
// exchange: the connection metadata and dependencies common to every
// built-in DNS transport's Exchange method ([*DNSOverUDPConn],
// [*DNSOverTCPConn], [*DNSOverTLSConn], [*DNSOverHTTPSConn]).
//
// It is also useful for callers implementing a custom exchange loop on
// top of a connection obtained from a dial pipeline — for example, a
// rule engine wanting duplicate DNS-over-UDP responses for comparison can
// reuse this type to emit logs consistent with the built-in transports
// while driving the send/receive loop itself.
type DNSExchangeLogContext struct {
	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// LocalAddr is the local address of the connection.
	LocalAddr string

	// Logger is the SLogger to use.
	Logger SLogger

	// Protocol is the network protocol (e.g., "tcp", "udp").
	Protocol string

	// RemoteAddr is the remote address of the connection.
	RemoteAddr string

	// ServerProtocol is the DNS protocol (e.g., "udp", "tcp", "dot").
	ServerProtocol string

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time
}

// LogStart logs the start of a DNS exchange.
func (lc *DNSExchangeLogContext) LogStart(t0 time.Time, deadline time.Time) {
	lc.Logger.Info(
		"dns_exchange_start",
		slog.Time("deadline", deadline),
		slog.String("local_addr", lc.LocalAddr),
		slog.String("protocol", lc.Protocol),
		slog.String("remote_addr", lc.RemoteAddr),
		slog.String("server_protocol", lc.ServerProtocol),
		slog.Time("t", t0),
	)
}

// LogDone logs the completion of a DNS exchange.
func (lc *DNSExchangeLogContext) LogDone(t0 time.Time, deadline time.Time, err error) {
	lc.Logger.Info(
		"dns_exchange_done",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("err_class", lc.ErrClassifier.Classify(err)),
		slog.String("local_addr", lc.LocalAddr),
		slog.String("protocol", lc.Protocol),
		slog.String("remote_addr", lc.RemoteAddr),
		slog.String("server_protocol", lc.ServerProtocol),
		slog.Time("t0", t0),
		slog.Time("t", lc.TimeNow()),
	)
}

// MakeQueryObserver returns an observer function for raw DNS queries.
//
// The rqr pointer is used to capture the raw query for correlation
// with the response observer.
func (lc *DNSExchangeLogContext) MakeQueryObserver(t0 time.Time, rqr *[]byte) func([]byte) {
	return func(rawQuery []byte) {
		lc.Logger.Info(
			"dns_query",
			slog.String("server_protocol", lc.ServerProtocol),
			slog.Any("dns_raw_query", rawQuery),
			slog.String("local_addr", lc.LocalAddr),
			slog.String("protocol", lc.Protocol),
			slog.String("remote_addr", lc.RemoteAddr),
			slog.Time("t", t0),
		)
		*rqr = rawQuery
	}
}

// MakeResponseObserver returns an observer function for raw DNS responses.
//
// The rqr pointer should be the same one passed to [DNSExchangeLogContext.MakeQueryObserver],
// allowing the response to be correlated with the original query.
func (lc *DNSExchangeLogContext) MakeResponseObserver(t0 time.Time, rqr *[]byte) func([]byte) {
	return func(rawResp []byte) {
		lc.Logger.Info(
			"dns_response",
			slog.String("server_protocol", lc.ServerProtocol),
			slog.Any("dns_raw_query", *rqr),
			slog.String("local_addr", lc.LocalAddr),
			slog.String("protocol", lc.Protocol),
			slog.String("remote_addr", lc.RemoteAddr),
			slog.Time("t0", t0),
			slog.Time("t", lc.TimeNow()),
			slog.Any("dns_raw_response", rawResp),
		)
	}
}
