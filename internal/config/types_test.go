// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
)

// TestValidateServeAddr covers loopback acceptance and routable rejection.
func TestValidateServeAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		ok   bool
	}{
		{"127.0.0.1:7895", true},
		{"localhost:7895", true},
		{"[::1]:7895", true},
		{":7895", true},
		{"0.0.0.0:7895", false},
		{"192.168.1.10:7895", false},
		{"no-port", false},
		{"", false},
	}

	for _, tt := range tests {
		err := validateServeAddr(tt.addr)
		if (err == nil) != tt.ok {
			t.Errorf("validateServeAddr(%q) = %v, want ok=%v", tt.addr, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidServeAddr) {
			t.Errorf("validateServeAddr(%q) error not ErrInvalidServeAddr: %v", tt.addr, err)
		}
	}
}

// TestConfigValidate covers the constraints outside the CUE schema.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		c := DefaultConfig()
		return c
	}

	if err := base().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	dup := base()
	dup.BlockedModules = append(dup.BlockedModules, dup.BlockedModules[0])
	if err := dup.Validate(); !errors.Is(err, ErrInvalidBlockedModules) {
		t.Errorf("duplicate blocked module: err = %v", err)
	}

	blank := base()
	blank.BlockedModules = []BlockedModule{{Name: "  "}}
	if err := blank.Validate(); !errors.Is(err, ErrInvalidBlockedModules) {
		t.Errorf("blank blocked module name: err = %v", err)
	}

	grace := base()
	grace.StopGraceSeconds = 0
	if err := grace.Validate(); !errors.Is(err, ErrInvalidStopGrace) {
		t.Errorf("zero grace period: err = %v", err)
	}
}
