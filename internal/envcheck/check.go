// SPDX-License-Identifier: MPL-2.0

package envcheck

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Supported interpreter version bounds (inclusive). The trainer stack is
// pinned against this window; outside it the pinned wheels do not resolve.
const (
	MinPythonMinor = 10
	MaxPythonMinor = 12
)

// probeTimeout bounds every single interpreter/GPU probe.
const probeTimeout = 10 * time.Second

// requiredPackages is the import-probe list for the trainer's stack.
var requiredPackages = []string{
	"torch",
	"transformers",
	"diffusers",
	"accelerate",
	"safetensors",
	"toml",
}

type (
	// Check is one validation outcome.
	Check struct {
		Name   string
		OK     bool
		Detail string
	}

	// Report aggregates all checks for one environment.
	Report struct {
		Checks []Check
	}

	// Checker probes a specific interpreter. runOutput is swappable so tests
	// can run without a real interpreter on PATH.
	Checker struct {
		// Python is the interpreter to probe.
		Python string
		// Env is the environment for probe subprocesses; nil means inherit.
		Env []string

		runOutput func(ctx context.Context, name string, args ...string) (string, error)
	}
)

// New creates a Checker for the given interpreter path.
func New(python string) *Checker {
	c := &Checker{Python: python}
	c.runOutput = c.runCombined
	return c
}

// AllOK reports whether every check passed.
func (r *Report) AllOK() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

// Lines renders the report as human-readable lines.
func (r *Report) Lines() []string {
	out := make([]string, 0, len(r.Checks))
	for _, c := range r.Checks {
		mark := "ok  "
		if !c.OK {
			mark = "FAIL"
		}
		out = append(out, fmt.Sprintf("[%s] %s: %s", mark, c.Name, c.Detail))
	}
	return out
}

// Run executes the full check suite. Probe failures are reported as failed
// checks, never as errors: the report is always complete.
func (c *Checker) Run(ctx context.Context) *Report {
	r := &Report{}

	r.Checks = append(r.Checks, c.checkVersion(ctx))
	r.Checks = append(r.Checks, c.checkEmbedded(ctx))
	r.Checks = append(r.Checks, c.checkGPU(ctx))
	r.Checks = append(r.Checks, c.checkPackages(ctx)...)

	return r
}

// IsEmbedded reports whether the probed interpreter is an embedded build:
// one whose prefix ships without include/Python.h, so packages that compile
// C extensions on import fail hard.
func (c *Checker) IsEmbedded(ctx context.Context) bool {
	prefix, err := c.runOutput(ctx, c.Python, "-c", "import sys; print(sys.prefix)")
	if err != nil {
		// No interpreter to ask: assume the restricted case, which only adds
		// the launcher layer and is harmless on a full installation.
		return true
	}
	return IsEmbeddedPrefix(strings.TrimSpace(prefix))
}

// IsEmbeddedPrefix reports whether an interpreter prefix lacks the
// development headers.
func IsEmbeddedPrefix(prefix string) bool {
	if prefix == "" {
		return true
	}
	header := filepath.Join(prefix, "include", "Python.h")
	if _, err := os.Stat(header); err == nil {
		return false
	}
	return true
}

func (c *Checker) checkVersion(ctx context.Context) Check {
	out, err := c.runOutput(ctx, c.Python, "-c",
		"import sys; print('%d.%d' % sys.version_info[:2])")
	if err != nil {
		return Check{Name: "python", Detail: fmt.Sprintf("interpreter not runnable: %v", err)}
	}

	major, minor, err := ParseVersion(strings.TrimSpace(out))
	if err != nil {
		return Check{Name: "python", Detail: err.Error()}
	}

	ok, detail := VersionSupported(major, minor)
	return Check{Name: "python", OK: ok, Detail: detail}
}

func (c *Checker) checkEmbedded(ctx context.Context) Check {
	if c.IsEmbedded(ctx) {
		// Informational, not a failure: the launcher layer compensates.
		return Check{
			Name:   "runtime",
			OK:     true,
			Detail: "embedded interpreter detected (no Python.h); import patching will be used",
		}
	}
	return Check{Name: "runtime", OK: true, Detail: "full interpreter installation detected"}
}

func (c *Checker) checkGPU(ctx context.Context) Check {
	out, err := c.runOutput(ctx, "nvidia-smi",
		"--query-gpu=name,memory.total", "--format=csv,noheader")
	if err != nil {
		return Check{Name: "gpu", Detail: "no CUDA GPU detected (nvidia-smi not available)"}
	}
	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return Check{Name: "gpu", OK: true, Detail: line}
}

func (c *Checker) checkPackages(ctx context.Context) []Check {
	checks := make([]Check, 0, len(requiredPackages))
	for _, pkg := range requiredPackages {
		probe := fmt.Sprintf(
			"import %s; print(getattr(%s, '__version__', 'unknown'))", pkg, pkg)
		out, err := c.runOutput(ctx, c.Python, "-c", probe)
		if err != nil {
			checks = append(checks, Check{
				Name:   "package " + pkg,
				Detail: "not importable",
			})
			continue
		}
		checks = append(checks, Check{
			Name:   "package " + pkg,
			OK:     true,
			Detail: strings.TrimSpace(out),
		})
	}
	return checks
}

// ParseVersion parses a "major.minor" string.
func ParseVersion(s string) (major, minor int, err error) {
	majS, minS, ok := strings.Cut(s, ".")
	if !ok {
		return 0, 0, fmt.Errorf("malformed interpreter version %q", s)
	}
	major, err = strconv.Atoi(majS)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed interpreter version %q", s)
	}
	minor, err = strconv.Atoi(minS)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed interpreter version %q", s)
	}
	return major, minor, nil
}

// VersionSupported applies the version window.
func VersionSupported(major, minor int) (bool, string) {
	v := fmt.Sprintf("%d.%d", major, minor)
	switch {
	case major != 3 || minor < MinPythonMinor:
		return false, fmt.Sprintf("Python %s too old (need 3.%d+)", v, MinPythonMinor)
	case minor > MaxPythonMinor:
		return false, fmt.Sprintf("Python %s too new (max 3.%d)", v, MaxPythonMinor)
	default:
		return true, "Python " + v + " OK"
	}
}

// runCombined executes a probe and returns its combined output.
func (c *Checker) runCombined(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	if c.Env != nil {
		cmd.Env = c.Env
	}
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
