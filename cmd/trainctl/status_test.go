// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"strings"
	"testing"
	"time"

	"trainctl/internal/supervisor"
)

// TestRenderStatus_Running verifies the running snapshot shows pid, script,
// and command.
func TestRenderStatus_Running(t *testing.T) {
	t.Parallel()

	out := renderStatus(supervisor.Status{
		State:      supervisor.StateRunning,
		PID:        4242,
		StartedAt:  time.Now().Add(-time.Minute),
		Command:    []string{"python", "train_network.py"},
		ScriptPath: "/opt/trainer/train_network.py",
	})

	for _, want := range []string{"running", "4242", "train_network.py"} {
		if !strings.Contains(out, want) {
			t.Errorf("renderStatus() missing %q:\n%s", want, out)
		}
	}
}

// TestRenderStatus_IdleAfterFailure verifies the last exit code and error
// survive into the idle snapshot.
func TestRenderStatus_IdleAfterFailure(t *testing.T) {
	t.Parallel()

	code := 7
	out := renderStatus(supervisor.Status{
		State:        supervisor.StateIdle,
		LastExitCode: &code,
		LastError:    "exit status 7",
	})

	for _, want := range []string{"idle", "7", "exit status 7"} {
		if !strings.Contains(out, want) {
			t.Errorf("renderStatus() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "PID") {
		t.Errorf("renderStatus() shows a PID for an idle supervisor:\n%s", out)
	}
}
