// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"trainctl/internal/cueutil"
	"trainctl/internal/issue"
	"trainctl/internal/platform"
	"trainctl/internal/resolve"
	"trainctl/internal/stub"
)

const (
	// AppName is the application name.
	AppName = "trainctl"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema string

// DefaultConfig returns the built-in defaults applied before any config
// file is read.
func DefaultConfig() *Config {
	blocked := make([]BlockedModule, 0, len(stub.DefaultBlocked))
	for name, reason := range stub.DefaultBlocked {
		blocked = append(blocked, BlockedModule{Name: name, Reason: reason})
	}
	sort.Slice(blocked, func(i, j int) bool { return blocked[i].Name < blocked[j].Name })

	return &Config{
		ToolDirs:         append([]string(nil), resolve.DefaultToolDirs...),
		BlockedModules:   blocked,
		StopGraceSeconds: 5,
		ServeAddr:        "127.0.0.1:7895",
		Python:           "python",
	}
}

// ConfigDir returns the trainctl configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level cache state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("tool_dirs", defaults.ToolDirs)
	v.SetDefault("isolated_libs_dir", defaults.IsolatedLibsDir)
	v.SetDefault("stop_grace_seconds", defaults.StopGraceSeconds)
	v.SetDefault("use_pty", defaults.UsePTY)
	v.SetDefault("serve_addr", defaults.ServeAddr)
	v.SetDefault("force_patch", defaults.ForcePatch)
	v.SetDefault("output_dir", defaults.OutputDir)
	v.SetDefault("python", defaults.Python)

	resolvedPath := ""

	// An explicit config file is used exclusively; it must exist.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", wrapLoadError(opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}

		cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		localPath := ConfigFileName + "." + ConfigFileExt
		switch {
		case fileExists(cuePath):
			if err := loadCUEIntoViper(v, cuePath); err != nil {
				return nil, "", wrapLoadError(cuePath, err)
			}
			resolvedPath = cuePath
		case fileExists(localPath):
			if err := loadCUEIntoViper(v, localPath); err != nil {
				return nil, "", wrapLoadError(localPath, err)
			}
			resolvedPath = localPath
		}
		// No config file found: defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// An empty blocked list means "use the defaults", not "block nothing".
	if cfg.BlockedModules == nil {
		cfg.BlockedModules = defaults.BlockedModules
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Ensure blocked module names are unique").
			WithSuggestion("Keep serve_addr on a loopback address such as 127.0.0.1").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func wrapLoadError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("Run 'trainctl check' to inspect the effective configuration").
		Wrap(err).
		BuildError()
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config
// schema, and merges its contents into Viper. Validation is non-concrete
// because every config field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.MaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(cfgDir, 0o755)
}

// CreateDefaultConfig writes a default config file unless one exists.
func CreateDefaultConfig() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(cfgPath); err == nil {
		return nil
	}

	return os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644)
}

// Save writes the configuration to the config directory.
func Save(cfg *Config) error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	return os.WriteFile(cfgPath, []byte(GenerateCUE(cfg)), 0o644)
}

// GenerateCUE renders a configuration as a CUE document.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// trainctl configuration file.\n\n")

	if len(cfg.ToolDirs) > 0 {
		sb.WriteString("tool_dirs: [\n")
		for _, dir := range cfg.ToolDirs {
			fmt.Fprintf(&sb, "\t%q,\n", dir)
		}
		sb.WriteString("]\n")
	}

	if len(cfg.BlockedModules) > 0 {
		sb.WriteString("\nblocked_modules: [\n")
		for _, m := range cfg.BlockedModules {
			if m.Reason != "" {
				fmt.Fprintf(&sb, "\t{name: %q, reason: %q},\n", m.Name, m.Reason)
			} else {
				fmt.Fprintf(&sb, "\t{name: %q},\n", m.Name)
			}
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\n")
	if cfg.IsolatedLibsDir != "" {
		fmt.Fprintf(&sb, "isolated_libs_dir: %q\n", cfg.IsolatedLibsDir)
	}
	fmt.Fprintf(&sb, "stop_grace_seconds: %d\n", cfg.StopGraceSeconds)
	fmt.Fprintf(&sb, "use_pty: %v\n", cfg.UsePTY)
	fmt.Fprintf(&sb, "serve_addr: %q\n", cfg.ServeAddr)
	fmt.Fprintf(&sb, "force_patch: %v\n", cfg.ForcePatch)
	if cfg.OutputDir != "" {
		fmt.Fprintf(&sb, "output_dir: %q\n", cfg.OutputDir)
	}
	fmt.Fprintf(&sb, "python: %q\n", cfg.Python)

	return sb.String()
}
