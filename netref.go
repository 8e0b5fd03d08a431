// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/rd-interface/src/registry/net_ref.rs
// Adapted from: original_source/rd-interface/src/config.rs (Visitor, VisitorContext)

package rdnet

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultNetRefName is the net name a JSON null NetRef decodes to, and the
// name an empty NetRef marshals as, matching original_source's `default_net()` ({"local", net: None}).
const DefaultNetRefName = "local"

// NetRef is a configuration-level reference to a Net. Its representation
// is either a string naming another net-table entry, or an inline
// net-config object; the graph builder hoists inline representations into
// a generated name and resolves every NetRef to a live *RunningNet before
// any net built from this config is allowed to run.
type NetRef struct {
	// Name is the (possibly generated) name this ref points to after
	// hoisting. For a plain-string ref it is the authored name.
	Name string

	// Inline holds the raw inline net-config object, non-nil only for
	// refs originally authored inline. The graph builder consumes this,
	// builds the net, stores it under the generated Name, and clears it.
	Inline json.RawMessage

	resolved *RunningNet
}

// NewNetRef builds an already-resolved NetRef, useful in tests and for
// nets constructed programmatically rather than from a decoded config.
func NewNetRef(name string, net *RunningNet) NetRef {
	return NetRef{Name: name, resolved: net}
}

// UnmarshalJSON accepts either a bare string (named reference) or a JSON
// object (inline net-config, hoisted later by the graph builder); null
// decodes to [DefaultNetRefName].
func (r *NetRef) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		r.Name = DefaultNetRefName
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		r.Name = name
		r.Inline = nil
		return nil
	}
	r.Inline = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON round-trips either representation.
func (r NetRef) MarshalJSON() ([]byte, error) {
	if r.Inline != nil {
		return r.Inline, nil
	}
	if r.Name == "" {
		return json.Marshal(DefaultNetRefName)
	}
	return json.Marshal(r.Name)
}

// IsInline reports whether this ref was authored as an inline net-config
// object and has not yet been hoisted.
func (r *NetRef) IsInline() bool {
	return r.Inline != nil
}

// Hoist rewrites an inline ref to point at a generated name, clearing the
// inline payload.
func (r *NetRef) Hoist(generatedName string) {
	r.Name = generatedName
	r.Inline = nil
}

// Resolve attaches the live RunningNet this ref points to. Called once by
// the graph builder after the referenced net is built.
func (r *NetRef) Resolve(net *RunningNet) {
	r.resolved = net
}

// Resolved reports whether Resolve has been called.
func (r *NetRef) Resolved() bool {
	return r.resolved != nil
}

// Net returns the resolved RunningNet, or a KindOther error if the ref has
// not been resolved yet: using an unresolved ref is rejected with an error
// rather than allowed to panic.
func (r *NetRef) Net() (*RunningNet, error) {
	if r.resolved == nil {
		return nil, Other(fmt.Errorf("net ref %q used before resolution", r.Name))
	}
	return r.resolved, nil
}

// VisitorContext tracks the traversal path used to name hoisted inline
// nets, e.g. "server/<server-name>/<field-path>" or
// "net/<parent>/<field-path>", mirroring
// original_source/rd-interface/src/config.rs's VisitorContext.
type VisitorContext struct {
	segments []string
}

// NewVisitorContext starts a traversal rooted at root (a server or net name).
func NewVisitorContext(root string) *VisitorContext {
	return &VisitorContext{segments: []string{root}}
}

// Push descends into a named field, returning a new context (the receiver
// is left unmodified so callers can fan out over sibling fields safely).
func (v *VisitorContext) Push(field string) *VisitorContext {
	segs := make([]string, len(v.segments), len(v.segments)+1)
	copy(segs, v.segments)
	return &VisitorContext{segments: append(segs, field)}
}

// Path renders the current traversal path, e.g. "server/s/net/upstream".
func (v *VisitorContext) Path() string {
	return strings.Join(v.segments, "/")
}

// NetRefVisitor is implemented by factory Config types that embed one or
// more NetRef fields: VisitNetRefs reports each of them with its field
// path. [BuildGraph] does not call it; each factory resolves its own refs
// through the [NetGetter] it is given. Configs with no NetRef fields
// simply do not implement this interface; there is nothing to visit.
type NetRefVisitor interface {
	// VisitNetRefs calls fn once per NetRef field the config holds, in a
	// stable order, with a field-path segment to append to the current
	// VisitorContext. fn may mutate the NetRef in place (hoist/resolve).
	VisitNetRefs(fn func(fieldPath string, ref *NetRef) error) error
}
