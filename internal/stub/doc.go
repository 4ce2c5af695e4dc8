// SPDX-License-Identifier: MPL-2.0

// Package stub models the runtime dependency substitution contract used to
// neutralize optional native extensions that an embedded interpreter cannot
// compile or load.
//
// A blocked module is replaced by a stand-in that is simultaneously:
//
//   - introspectable: a non-nil spec whose origin is "blocked"
//   - chainable: arbitrary nested attribute access returns another stand-in,
//     never a nil that a caller could mistake for a real value
//   - callable: one callable argument passes through unchanged (decorator
//     no-op), anything else yields a pass-through wrapper
//   - falsy: guard checks like "if optional_module:" skip the optional path
//
// The launcher package emits the Python realization of this contract into the
// generated launcher; the Registry here is the source of truth for which
// names are blocked and why.
package stub
