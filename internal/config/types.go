// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrInvalidServeAddr is the sentinel wrapped by InvalidServeAddrError.
	ErrInvalidServeAddr = errors.New("invalid serve address")
	// ErrInvalidBlockedModules is the sentinel wrapped by InvalidBlockedModulesError.
	ErrInvalidBlockedModules = errors.New("invalid blocked modules")
	// ErrInvalidStopGrace is returned when the stop grace period is out of range.
	ErrInvalidStopGrace = errors.New("invalid stop grace period")
)

type (
	// BlockedModule names one module the restricted runtime intercepts,
	// with the reason reported when something tries to import it.
	BlockedModule struct {
		Name   string `mapstructure:"name"`
		Reason string `mapstructure:"reason"`
	}

	// Config is the full trainctl configuration.
	Config struct {
		// ToolDirs are candidate subdirectories searched for the training
		// tool, in priority order. The empty entry means the working
		// directory itself.
		ToolDirs []string `mapstructure:"tool_dirs"`

		// BlockedModules are intercepted in the restricted runtime.
		BlockedModules []BlockedModule `mapstructure:"blocked_modules"`

		// IsolatedLibsDir holds isolated trainer packages. Empty means the
		// packages are expected on the interpreter's own path.
		IsolatedLibsDir string `mapstructure:"isolated_libs_dir"`

		// StopGraceSeconds is the wait between the polite stop signal and
		// the forced kill.
		StopGraceSeconds int `mapstructure:"stop_grace_seconds"`

		// UsePTY attaches the child process to a pseudo-terminal.
		UsePTY bool `mapstructure:"use_pty"`

		// ServeAddr is the control-server listen address. Loopback only.
		ServeAddr string `mapstructure:"serve_addr"`

		// ForcePatch generates the bootstrap even on a full interpreter.
		ForcePatch bool `mapstructure:"force_patch"`

		// OutputDir is watched for produced checkpoint artifacts.
		OutputDir string `mapstructure:"output_dir"`

		// Python is the interpreter used to run training commands.
		Python string `mapstructure:"python"`
	}

	// InvalidServeAddrError reports an unparseable or non-loopback listen
	// address. It wraps ErrInvalidServeAddr for errors.Is().
	InvalidServeAddrError struct {
		Value  string
		Reason string
	}

	// InvalidBlockedModulesError reports duplicate blocked-module names.
	// It wraps ErrInvalidBlockedModules for errors.Is().
	InvalidBlockedModulesError struct {
		Name string
	}
)

// Error implements the error interface.
func (e *InvalidServeAddrError) Error() string {
	return fmt.Sprintf("invalid serve address %q: %s", e.Value, e.Reason)
}

// Unwrap enables errors.Is(err, ErrInvalidServeAddr).
func (e *InvalidServeAddrError) Unwrap() error { return ErrInvalidServeAddr }

// Error implements the error interface.
func (e *InvalidBlockedModulesError) Error() string {
	return fmt.Sprintf("duplicate blocked module %q", e.Name)
}

// Unwrap enables errors.Is(err, ErrInvalidBlockedModules).
func (e *InvalidBlockedModulesError) Unwrap() error { return ErrInvalidBlockedModules }

// Validate checks the constraints the CUE schema cannot express: blocked
// module name uniqueness, the loopback-only serve address, and the stop
// grace range for programmatically built configs that bypass the schema.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.BlockedModules))
	for _, m := range c.BlockedModules {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return &InvalidBlockedModulesError{Name: m.Name}
		}
		if seen[name] {
			return &InvalidBlockedModulesError{Name: name}
		}
		seen[name] = true
	}

	if c.StopGraceSeconds < 1 || c.StopGraceSeconds > 300 {
		return fmt.Errorf("%w: %d seconds (want 1..300)", ErrInvalidStopGrace, c.StopGraceSeconds)
	}

	return validateServeAddr(c.ServeAddr)
}

// validateServeAddr accepts only loopback listen addresses. The control
// server carries start/stop authority and must never bind a routable
// interface.
func validateServeAddr(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return &InvalidServeAddrError{Value: addr, Reason: err.Error()}
	}
	if host == "localhost" || host == "" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return &InvalidServeAddrError{Value: addr, Reason: "must be a loopback address"}
	}
	return nil
}
