// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoad_DefaultsWithoutFile verifies a missing config file yields the
// built-in defaults without error.
func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	cfg, path, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("loadWithOptions() error: %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want empty for defaults", path)
	}

	defaults := DefaultConfig()
	if cfg.StopGraceSeconds != defaults.StopGraceSeconds {
		t.Errorf("StopGraceSeconds = %d, want %d", cfg.StopGraceSeconds, defaults.StopGraceSeconds)
	}
	if cfg.Python != defaults.Python {
		t.Errorf("Python = %q, want %q", cfg.Python, defaults.Python)
	}
	if len(cfg.ToolDirs) != len(defaults.ToolDirs) {
		t.Errorf("ToolDirs = %v, want defaults %v", cfg.ToolDirs, defaults.ToolDirs)
	}
	if len(cfg.BlockedModules) == 0 {
		t.Error("BlockedModules empty, want default interception set")
	}
}

// TestLoad_FileOverridesDefaults verifies file values replace defaults while
// unset keys keep them.
func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `
stop_grace_seconds: 30
use_pty: true
output_dir: "/data/out"
`)

	cfg, path, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("loadWithOptions() error: %v", err)
	}
	if path == "" {
		t.Error("resolved path empty, want config file path")
	}
	if cfg.StopGraceSeconds != 30 || !cfg.UsePTY || cfg.OutputDir != "/data/out" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Python != DefaultConfig().Python {
		t.Errorf("unset key lost its default: Python = %q", cfg.Python)
	}
}

// TestLoad_SchemaViolation verifies out-of-schema values are rejected with
// the file path in the error.
func TestLoad_SchemaViolation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `stop_grace_seconds: 0`)

	_, _, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err == nil {
		t.Fatal("schema violation accepted")
	}
	if !strings.Contains(err.Error(), "stop_grace_seconds") {
		t.Errorf("error does not name the offending field: %v", err)
	}
}

// TestLoad_ExplicitFileMustExist verifies a forced config path that does not
// exist is an error, unlike the default lookup.
func TestLoad_ExplicitFileMustExist(t *testing.T) {
	t.Parallel()

	_, _, err := loadWithOptions(context.Background(), LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue"),
	})
	if err == nil {
		t.Fatal("missing explicit config file accepted")
	}
}

// TestLoad_DuplicateBlockedModules exercises validation beyond the schema.
func TestLoad_DuplicateBlockedModules(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `
blocked_modules: [
	{name: "triton"},
	{name: "triton", reason: "again"},
]
`)

	_, _, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: dir})
	if !errors.Is(err, ErrInvalidBlockedModules) {
		t.Errorf("err = %v, want ErrInvalidBlockedModules", err)
	}
}

// TestLoad_NonLoopbackServeAddrRejected verifies the control server cannot
// be configured onto a routable interface.
func TestLoad_NonLoopbackServeAddrRejected(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `serve_addr: "0.0.0.0:7895"`)

	_, _, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: dir})
	if !errors.Is(err, ErrInvalidServeAddr) {
		t.Errorf("err = %v, want ErrInvalidServeAddr", err)
	}
}

// TestLoad_ContextCanceled verifies cancellation short-circuits loading.
func TestLoad_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := loadWithOptions(ctx, LoadOptions{ConfigDirPath: t.TempDir()})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// TestGenerateCUE_RoundTrip verifies a generated config file loads back to
// the same values.
func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	orig := DefaultConfig()
	orig.StopGraceSeconds = 42
	orig.OutputDir = "/data/out"
	orig.IsolatedLibsDir = "/data/libs"

	dir := t.TempDir()
	writeConfig(t, dir, GenerateCUE(orig))

	cfg, _, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("generated config failed to load: %v", err)
	}
	if cfg.StopGraceSeconds != 42 || cfg.OutputDir != "/data/out" || cfg.IsolatedLibsDir != "/data/libs" {
		t.Errorf("round trip lost values: %+v", cfg)
	}
	if len(cfg.BlockedModules) != len(orig.BlockedModules) {
		t.Errorf("round trip blocked modules = %v", cfg.BlockedModules)
	}
}

// TestCreateDefaultConfig verifies creation is idempotent and the result is
// loadable.
func TestCreateDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	SetConfigDirOverride(dir)
	t.Cleanup(Reset)

	if err := CreateDefaultConfig(); err != nil {
		t.Fatalf("CreateDefaultConfig() error: %v", err)
	}
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := CreateDefaultConfig(); err != nil {
		t.Fatalf("second CreateDefaultConfig() error: %v", err)
	}
	second, _ := os.ReadFile(path)
	if string(first) != string(second) {
		t.Error("CreateDefaultConfig() overwrote an existing file")
	}

	if _, _, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: dir}); err != nil {
		t.Errorf("default config file does not load: %v", err)
	}
}
