// SPDX-License-Identifier: GPL-3.0-or-later

package rdnet

// Unit carries no value, analogous to an explicit void type.
//
// A dial pipeline's first stage takes a Unit input, since it has nothing
// to consume but the ambient context — see [NewEndpointFunc].
type Unit struct{}
