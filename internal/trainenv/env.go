// SPDX-License-Identifier: MPL-2.0

package trainenv

import (
	"maps"
	"os"
	"sort"
	"strings"

	"trainctl/internal/resolve"
)

// SearchPathVar is the interpreter's module search-path variable.
const SearchPathVar = "PYTHONPATH"

// fixedVars is the closed table of variables set unconditionally for every
// training run. Not user-configurable: these values exist to keep an embedded
// interpreter from compiling native extensions on import, to keep console
// output flowing unbuffered, and to opt out of library telemetry.
var fixedVars = map[string]string{
	"ACCELERATE_MIXED_PRECISION":  "bf16",
	"PYTHONIOENCODING":            "utf-8",
	"PYTHONUNBUFFERED":            "1",
	"BITSANDBYTES_NOWELCOME":      "1",
	"DISABLE_TRITON":              "1",
	"DISABLE_BITSANDBYTES_WARN":   "1",
	"DIFFUSERS_DISABLE_TELEMETRY": "1",
	"HF_HUB_DISABLE_TELEMETRY":    "1",
	"PYTORCH_CUDA_ALLOC_CONF":     "max_split_size_mb:512",
	"BNB_CUDA_VERSION":            "0",
}

type (
	// Builder builds the environment map for the training child process.
	// The interface exists so the supervisor can be tested with a mock
	// builder, mirroring how runtimes and env building are decoupled.
	Builder interface {
		Build(base []string, paths *resolve.ResolvedPaths, isolatedLibsDir string) map[string]string
	}

	// DefaultBuilder implements the standard composition: base snapshot,
	// fixed overrides, rebuilt search path. It is a pure function of its
	// inputs; nothing is read from the process environment unless passed in.
	DefaultBuilder struct{}

	// MockBuilder is a test helper that returns a fixed environment map.
	MockBuilder struct {
		// Env is the environment map to return from Build.
		Env map[string]string
	}
)

// NewDefaultBuilder creates a new DefaultBuilder.
func NewDefaultBuilder() *DefaultBuilder {
	return &DefaultBuilder{}
}

// Build composes the child environment. Rules:
//
//   - every entry of base survives; nothing is deleted
//   - the fixed table overwrites its own keys unconditionally
//   - SearchPathVar is rebuilt with, in priority order: the isolated package
//     directory (if any), the resolved script directory, the working
//     directory, then the pre-existing value split on the platform list
//     separator; duplicates keep their first (highest-priority) occurrence
func (b *DefaultBuilder) Build(base []string, paths *resolve.ResolvedPaths, isolatedLibsDir string) map[string]string {
	env := FromSlice(base)

	maps.Copy(env, fixedVars)

	env[SearchPathVar] = ComposeSearchPath(env[SearchPathVar], paths, isolatedLibsDir)

	return env
}

// Build returns the mock environment (a copy, so callers cannot mutate the
// configured map).
func (m *MockBuilder) Build(_ []string, _ *resolve.ResolvedPaths, _ string) map[string]string {
	out := make(map[string]string, len(m.Env))
	maps.Copy(out, m.Env)
	return out
}

// ComposeSearchPath rebuilds the search-path value. Empty components are
// skipped; the first occurrence of a path wins on deduplication, so the
// highest-priority position survives.
func ComposeSearchPath(existing string, paths *resolve.ResolvedPaths, isolatedLibsDir string) string {
	parts := []string{isolatedLibsDir}
	if paths != nil {
		parts = append(parts, paths.ScriptDir, paths.WorkDir)
	}
	parts = append(parts, strings.Split(existing, string(os.PathListSeparator))...)

	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return strings.Join(out, string(os.PathListSeparator))
}

// FromSlice parses "KEY=VALUE" entries into a map. Malformed entries without
// a separator are kept with an empty value rather than dropped.
func FromSlice(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, e := range environ {
		if idx := strings.IndexByte(e, '='); idx >= 0 {
			env[e[:idx]] = e[idx+1:]
		} else if e != "" {
			env[e] = ""
		}
	}
	return env
}

// ToSlice converts an environment map to a sorted "KEY=VALUE" slice suitable
// for exec.Cmd.Env. Sorted so that spawn logging is stable.
func ToSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
