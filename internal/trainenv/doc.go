// SPDX-License-Identifier: MPL-2.0

// Package trainenv composes the environment variable set for the training
// child process: fixed precision/threading/telemetry overrides and a
// PYTHONPATH rebuilt around the resolved script directory and the isolated
// package directory.
package trainenv
