// SPDX-License-Identifier: MPL-2.0

// Package envcheck validates the interpreter environment before a training
// run: interpreter version bounds, embedded-interpreter detection (no
// compiler headers), GPU visibility, and importability of the trainer's
// package stack.
package envcheck
