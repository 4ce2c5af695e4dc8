// SPDX-License-Identifier: MPL-2.0

// Package resolve locates the directory that actually contains the training
// script and its companion support library, given a command whose script
// argument may be a bare filename and a working-directory hint full of
// layout ambiguity.
//
// The candidate list is ordered and the first match wins. No scoring: the
// ordering trades precision for determinism, and the list itself is
// configuration data, not logic.
package resolve
