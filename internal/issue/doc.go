// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// It defines error types that carry remediation steps alongside the failure
// itself, plus a small catalog of Markdown-formatted troubleshooting guides
// for the failure modes operators hit most often when wiring up an external
// trainer (missing sd-scripts checkout, spawn failures, missing packages).
package issue
