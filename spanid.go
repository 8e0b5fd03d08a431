package rdnet

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 identifying one tracked flow or one
// sub-operation within a dial pipeline (e.g. a single DNS-over-HTTPS
// exchange with an endpoint).
//
// [connmgr.Manager.NewConnection] uses this to mint each [connmgr.Connection]'s
// UUID; a DNS transport can likewise tag one exchange attempt with its own
// span ID for correlating its log lines.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
