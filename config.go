// SPDX-License-Identifier: GPL-3.0-or-later

package rdnet

import (
	"net"
	"time"

	"github.com/rdproxy/rdnet/errclass"
)

// Config holds the dial-pipeline dependencies every net kind built in this
// package shares: the dialer, the error classifier, and the time source.
//
// Pass this to constructor functions to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Dialer is used by [*ConnectFunc].
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to an [ErrClassifier] wrapping [errclass.Classify].
	ErrClassifier ErrClassifier

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] dialing real OS sockets via [*net.Dialer],
// classifying errors with [errclass.Classify] so every dial-pipeline stage's
// structured logs carry the engine's OS-errno taxonomy by default, with
// [time.Now] as the time source. Pass a [*Config] with [DefaultErrClassifier]
// instead when the caller wants the err_class log field left empty.
func NewConfig() *Config {
	return &Config{
		Dialer: &net.Dialer{},
		ErrClassifier: ErrClassifierFunc(func(err error) string {
			return string(errclass.Classify(err))
		}),
		TimeNow: time.Now,
	}
}
