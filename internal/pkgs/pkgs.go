// SPDX-License-Identifier: MPL-2.0

package pkgs

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"

	"trainctl/internal/issue"
)

const (
	// LibsDirName is the conventional name of the isolated package
	// directory.
	LibsDirName = "training_libs"
	// cacheFileName records what was installed into the libs dir. A cache
	// that matches the manifest means the directory is ready.
	cacheFileName = ".install_cache.json"
	// installTimeout bounds one pip invocation. Wheels for the trainer
	// stack are large.
	installTimeout = 20 * time.Minute
)

//go:embed manifest.toml
var manifestTOML []byte

type (
	// Manifest is the pinned package set.
	Manifest struct {
		Packages map[string]string `toml:"packages"`
	}

	// installCache is the on-disk record of a completed install.
	installCache struct {
		Requirements []string  `json:"requirements"`
		InstalledAt  time.Time `json:"installed_at"`
	}

	// Manager installs and inspects the isolated package directory.
	Manager struct {
		// Dir is the isolated package directory itself.
		Dir string
		// Python is the interpreter whose pip performs installs.
		Python string
		// Logger receives install progress; nil means the default logger.
		Logger *log.Logger

		// runCmd is swappable so tests can avoid a real pip.
		runCmd func(ctx context.Context, name string, args ...string) error
	}
)

// LoadManifest parses the embedded pinned manifest.
func LoadManifest() (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(manifestTOML, &m); err != nil {
		return nil, fmt.Errorf("parse package manifest: %w", err)
	}
	return &m, nil
}

// Requirements renders the manifest as sorted pip requirement specs.
func (m *Manifest) Requirements() []string {
	reqs := make([]string, 0, len(m.Packages))
	for name, version := range m.Packages {
		reqs = append(reqs, name+"=="+version)
	}
	slices.Sort(reqs)
	return reqs
}

// NewManager creates a Manager over the given package directory.
func NewManager(dir, python string) *Manager {
	mgr := &Manager{Dir: dir, Python: python, Logger: log.Default()}
	mgr.runCmd = mgr.runPip
	return mgr
}

// DefaultDir returns the conventional package directory under baseDir.
func DefaultDir(baseDir string) string {
	return filepath.Join(baseDir, LibsDirName)
}

// LibsDir returns the isolated package directory path.
func (m *Manager) LibsDir() string {
	return m.Dir
}

// Ready reports whether the libs directory holds exactly the manifest's
// pinned set, judged by the install cache.
func (m *Manager) Ready() bool {
	missing, err := m.Missing()
	return err == nil && len(missing) == 0
}

// Missing returns the manifest requirements not covered by the install
// cache. A missing or unreadable cache means everything is missing.
func (m *Manager) Missing() ([]string, error) {
	manifest, err := LoadManifest()
	if err != nil {
		return nil, err
	}
	want := manifest.Requirements()

	cache, err := m.readCache()
	if err != nil {
		return want, nil
	}

	installed := make(map[string]bool, len(cache.Requirements))
	for _, r := range cache.Requirements {
		installed[r] = true
	}

	var missing []string
	for _, r := range want {
		if !installed[r] {
			missing = append(missing, r)
		}
	}
	return missing, nil
}

// Overlay returns the libs directory when it is ready to be put on the
// module search path, and "" otherwise.
func (m *Manager) Overlay() string {
	if m.Ready() {
		return m.LibsDir()
	}
	return ""
}

// Install brings the libs directory up to the manifest. Wheels are
// installed with --target and --no-deps so the pinned set is exactly what
// lands on disk.
func (m *Manager) Install(ctx context.Context) error {
	manifest, err := LoadManifest()
	if err != nil {
		return err
	}
	reqs := manifest.Requirements()

	libsDir := m.LibsDir()
	if err := os.MkdirAll(libsDir, 0o755); err != nil {
		return fmt.Errorf("create package directory: %w", err)
	}

	m.logger().Info("installing pinned trainer packages", "dir", libsDir, "count", len(reqs))

	args := append([]string{
		"-m", "pip", "install",
		"--target", libsDir,
		"--no-deps",
		"--upgrade",
	}, reqs...)

	if err := m.runCmd(ctx, m.Python, args...); err != nil {
		return issue.NewErrorContext().
			WithOperation("install trainer packages").
			WithResource(libsDir).
			WithSuggestion("Check network access to the package index").
			WithSuggestion("Verify the interpreter can run 'python -m pip'").
			Wrap(err).
			BuildError()
	}

	if err := m.writeCache(installCache{Requirements: reqs, InstalledAt: time.Now()}); err != nil {
		return err
	}

	m.logger().Info("trainer packages installed", "dir", libsDir)
	return nil
}

func (m *Manager) cachePath() string {
	return filepath.Join(m.LibsDir(), cacheFileName)
}

func (m *Manager) readCache() (*installCache, error) {
	data, err := os.ReadFile(m.cachePath())
	if err != nil {
		return nil, err
	}
	var cache installCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parse install cache: %w", err)
	}
	return &cache, nil
}

func (m *Manager) writeCache(cache installCache) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.cachePath(), data, 0o644); err != nil {
		return fmt.Errorf("write install cache: %w", err)
	}
	return nil
}

func (m *Manager) runPip(ctx context.Context, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func (m *Manager) logger() *log.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return log.Default()
}
