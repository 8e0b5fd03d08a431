//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/common/errclass/errclass.go
//

package errclass

import (
	"errors"
	"os"
	"syscall"
)

// Class is a short, OS-independent label for a classified error.
type Class string

// The classes this package recognizes. Unrecognized errors classify as
// [Generic].
const (
	Generic           Class = "EGENERIC"
	AddrNotAvailable  Class = "EADDRNOTAVAIL"
	AddrInUse         Class = "EADDRINUSE"
	ConnectionRefused Class = "ECONNREFUSED"
	ConnectionReset   Class = "ECONNRESET"
	ConnectionAborted Class = "ECONNABORTED"
	HostUnreachable   Class = "EHOSTUNREACH"
	NetworkDown       Class = "ENETDOWN"
	NetworkUnreach    Class = "ENETUNREACH"
	TimedOut          Class = "ETIMEDOUT"
	NotConnected      Class = "ENOTCONN"
)

// Classify maps err onto a [Class] using the OS-specific errno tables in
// unix.go / windows.go. It recognizes wrapped [syscall.Errno] values (as
// produced by [net.OpError]) and falls back to [os.IsTimeout] for timeouts
// that do not carry an errno (e.g. context deadlines surfaced through
// net.Error). Any other error classifies as [Generic].
func Classify(err error) Class {
	if err == nil {
		return ""
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case errEADDRNOTAVAIL:
			return AddrNotAvailable
		case errEADDRINUSE:
			return AddrInUse
		case errECONNREFUSED:
			return ConnectionRefused
		case errECONNRESET:
			return ConnectionReset
		case errECONNABORTED:
			return ConnectionAborted
		case errEHOSTUNREACH:
			return HostUnreachable
		case errENETDOWN:
			return NetworkDown
		case errENETUNREACH:
			return NetworkUnreach
		case errETIMEDOUT:
			return TimedOut
		case errENOTCONN:
			return NotConnected
		}
	}
	if os.IsTimeout(err) {
		return TimedOut
	}
	return Generic
}
