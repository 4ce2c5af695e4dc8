// SPDX-License-Identifier: MPL-2.0

// Package config loads and validates trainctl configuration. Config files
// are written in CUE and validated against an embedded schema before their
// values are merged over built-in defaults through Viper. A missing config
// file is not an error: defaults apply.
package config
