// SPDX-License-Identifier: MPL-2.0

//go:build linux

package supervisor

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

// TestLockFilePathWith verifies the runtime-dir preference and temp-dir
// fallback.
func TestLockFilePathWith(t *testing.T) {
	t.Parallel()

	withRuntime := lockFilePathWith(func(key string) string {
		if key == "XDG_RUNTIME_DIR" {
			return "/run/user/1000"
		}
		return ""
	})
	if withRuntime != filepath.Join("/run/user/1000", lockFileName) {
		t.Errorf("lock path = %q", withRuntime)
	}

	fallback := lockFilePathWith(func(string) string { return "" })
	if !strings.HasSuffix(fallback, lockFileName) {
		t.Errorf("fallback lock path = %q", fallback)
	}
}

// TestRunLock_SecondAcquireRefused verifies the lock is exclusive and a
// release makes it available again.
func TestRunLock_SecondAcquireRefused(t *testing.T) {
	first, err := acquireRunLock()
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := acquireRunLock(); !errors.Is(err, errLockHeld) {
		first.Release()
		t.Fatalf("second acquire err = %v, want errLockHeld", err)
	}

	first.Release()
	first.Release() // idempotent

	again, err := acquireRunLock()
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	again.Release()
}