// SPDX-License-Identifier: MPL-2.0

// Package pkgs manages the isolated trainer package directory: a pinned
// manifest of wheels installed with pip --target into a directory the
// environment composer puts at the front of the module search path. The
// host interpreter's site-packages is never touched.
package pkgs
