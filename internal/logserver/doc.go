// SPDX-License-Identifier: MPL-2.0

// Package logserver exposes the supervisor over a localhost HTTP API with
// token-based authentication: start/stop/status endpoints plus buffered and
// streamed (SSE) log access. The server binds loopback only; the token is
// generated per server instance and handed to clients out of band.
package logserver
