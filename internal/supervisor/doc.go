// SPDX-License-Identifier: MPL-2.0

// Package supervisor owns the lifecycle of the single training process:
// resolution, environment composition, optional bootstrap generation, spawn,
// log relay, and the polite-then-forced stop sequence.
//
// One Supervisor guards one process slot. Every public method is safe for
// concurrent use; the state machine moves idle → starting → running →
// stopping → idle and never holds two processes at once. A cross-process
// file lock backs the in-process guarantee on platforms that support it.
package supervisor
