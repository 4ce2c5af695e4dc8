// SPDX-License-Identifier: MPL-2.0

package envcheck

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRunner returns canned outputs keyed by the probe's last argument (the
// -c payload or the nvidia-smi flag).
func fakeRunner(outputs map[string]string, failing map[string]bool) func(context.Context, string, ...string) (string, error) {
	return func(_ context.Context, name string, args ...string) (string, error) {
		key := name
		if len(args) > 0 {
			key = args[len(args)-1]
		}
		if failing[key] || failing[name] {
			return "", errors.New("probe failed")
		}
		return outputs[key], nil
	}
}

// TestIsEmbeddedPrefix_HeaderPresence verifies detection keys off
// include/Python.h under the interpreter prefix.
func TestIsEmbeddedPrefix_HeaderPresence(t *testing.T) {
	t.Parallel()

	full := t.TempDir()
	if err := os.MkdirAll(filepath.Join(full, "include"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(full, "include", "Python.h"), []byte("// header"), 0o644); err != nil {
		t.Fatal(err)
	}

	if IsEmbeddedPrefix(full) {
		t.Error("prefix with Python.h reported as embedded")
	}
	if !IsEmbeddedPrefix(t.TempDir()) {
		t.Error("prefix without headers must be embedded")
	}
	if !IsEmbeddedPrefix("") {
		t.Error("unknown prefix must be treated as embedded")
	}
}

// TestParseVersion covers well-formed and malformed version strings.
func TestParseVersion(t *testing.T) {
	t.Parallel()

	major, minor, err := ParseVersion("3.11")
	if err != nil || major != 3 || minor != 11 {
		t.Errorf("ParseVersion(3.11) = %d.%d, %v", major, minor, err)
	}

	for _, bad := range []string{"", "3", "three.ten", "3.x"} {
		if _, _, err := ParseVersion(bad); err == nil {
			t.Errorf("ParseVersion(%q) accepted malformed input", bad)
		}
	}
}

// TestVersionSupported applies the support window at its boundaries.
func TestVersionSupported(t *testing.T) {
	t.Parallel()

	tests := []struct {
		major, minor int
		ok           bool
	}{
		{3, 9, false},
		{3, 10, true},
		{3, 11, true},
		{3, 12, true},
		{3, 13, false},
		{2, 7, false},
	}

	for _, tt := range tests {
		ok, detail := VersionSupported(tt.major, tt.minor)
		if ok != tt.ok {
			t.Errorf("VersionSupported(%d.%d) = %v (%s), want %v",
				tt.major, tt.minor, ok, detail, tt.ok)
		}
	}
}

// TestRun_ReportComplete verifies probe failures become failed checks and the
// report still covers every category.
func TestRun_ReportComplete(t *testing.T) {
	t.Parallel()

	c := New("python")
	c.runOutput = fakeRunner(map[string]string{
		"import sys; print('%d.%d' % sys.version_info[:2])": "3.11\n",
		"import sys; print(sys.prefix)":                     "/opt/python\n",
		"--format=csv,noheader":                             "NVIDIA GeForce RTX 3060 Ti, 8192 MiB\n",
		"import torch; print(getattr(torch, '__version__', 'unknown'))": "2.1.0\n",
	}, map[string]bool{
		"import transformers; print(getattr(transformers, '__version__', 'unknown'))": true,
	})

	report := c.Run(context.Background())

	if report.AllOK() {
		t.Error("AllOK() = true with a failing package probe")
	}

	var sawVersion, sawGPU, sawTorch, sawTransformersFail bool
	for _, check := range report.Checks {
		switch check.Name {
		case "python":
			sawVersion = check.OK
		case "gpu":
			sawGPU = check.OK && strings.Contains(check.Detail, "RTX 3060")
		case "package torch":
			sawTorch = check.OK
		case "package transformers":
			sawTransformersFail = !check.OK
		}
	}
	if !sawVersion || !sawGPU || !sawTorch || !sawTransformersFail {
		t.Errorf("report incomplete: %+v", report.Checks)
	}
}

// TestIsEmbedded_ProbeFailureAssumesRestricted verifies the conservative
// default when the interpreter cannot be asked for its prefix.
func TestIsEmbedded_ProbeFailureAssumesRestricted(t *testing.T) {
	t.Parallel()

	c := New("definitely-not-python")
	c.runOutput = fakeRunner(nil, map[string]bool{"import sys; print(sys.prefix)": true})

	if !c.IsEmbedded(context.Background()) {
		t.Error("unprobeable interpreter must be treated as embedded")
	}
}

// TestReport_Lines verifies rendering marks failures distinctly.
func TestReport_Lines(t *testing.T) {
	t.Parallel()

	r := &Report{Checks: []Check{
		{Name: "python", OK: true, Detail: "Python 3.11 OK"},
		{Name: "gpu", OK: false, Detail: "no CUDA GPU detected"},
	}}

	lines := r.Lines()
	if len(lines) != 2 {
		t.Fatalf("Lines() = %v", lines)
	}
	if !strings.Contains(lines[0], "ok") || !strings.Contains(lines[1], "FAIL") {
		t.Errorf("Lines() markers wrong: %v", lines)
	}
}
