// SPDX-License-Identifier: MPL-2.0

// Package launcher generates the small bootstrap program that runs in place
// of the training script when the host interpreter is restricted. The
// generated program installs module interception for the blocked-name set,
// fixes the module search path, verifies the support library, and then
// executes the original script's source in-process — all strictly before the
// script's own top-level imports run.
//
// Generation is template/builder based: the program is composed from typed
// fields (paths, blocked names), not ad hoc string interpolation.
package launcher
