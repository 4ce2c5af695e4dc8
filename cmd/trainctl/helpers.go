// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"trainctl/internal/config"
	"trainctl/internal/envcheck"
	"trainctl/internal/issue"
	"trainctl/internal/launcher"
	"trainctl/internal/logserver"
	"trainctl/internal/pkgs"
	"trainctl/internal/resolve"
	"trainctl/internal/stub"
	"trainctl/internal/supervisor"
	"trainctl/internal/watch"
)

// currentConfig returns the loaded configuration, falling back to defaults
// when initialization has not run (tests call commands directly).
func currentConfig() *config.Config {
	if cfg != nil {
		return cfg
	}
	return config.DefaultConfig()
}

// packageManager builds the trainer package manager for the active config.
func packageManager(c *config.Config) (*pkgs.Manager, error) {
	dir := c.IsolatedLibsDir
	if dir == "" {
		base, err := config.ConfigDir()
		if err != nil {
			return nil, err
		}
		dir = pkgs.DefaultDir(base)
	}
	return pkgs.NewManager(dir, c.Python), nil
}

// buildSupervisor wires config, environment probing, module interception,
// and package isolation into a ready Supervisor.
func buildSupervisor(ctx context.Context, c *config.Config, logger *log.Logger) (*supervisor.Supervisor, error) {
	checker := envcheck.New(c.Python)
	restricted := c.ForcePatch || checker.IsEmbedded(ctx)
	if restricted {
		logger.Debug("restricted interpreter detected, runtime bootstrap enabled")
	}

	registry := stub.NewRegistry()
	for _, m := range c.BlockedModules {
		registry.InstallWithReason(m.Name, m.Reason)
	}

	generator := launcher.New(registry)
	generator.Logger = logger

	mgr, err := packageManager(c)
	if err != nil {
		return nil, err
	}
	overlay := mgr.Overlay()
	if overlay == "" {
		logger.Debug("trainer packages not installed, running without overlay",
			"hint", "trainctl setup")
	}

	return supervisor.New(supervisor.Options{
		Resolver:        &resolve.Resolver{ToolDirs: c.ToolDirs},
		Generator:       generator,
		Restricted:      restricted,
		IsolatedLibsDir: overlay,
		StopGrace:       time.Duration(c.StopGraceSeconds) * time.Second,
		UsePTY:          c.UsePTY,
		Logger:          logger,
	}), nil
}

// artifactsTarget picks the directory watched for produced checkpoints:
// an explicit flag value wins over the configured output_dir.
func artifactsTarget(flagValue string, c *config.Config) string {
	if flagValue != "" {
		return flagValue
	}
	return c.OutputDir
}

// startArtifactWatcher reports produced checkpoint artifacts until ctx ends.
// Watcher construction failures are downgraded to a warning: a broken watch
// must never block a training run.
func startArtifactWatcher(ctx context.Context, dir string, logger *log.Logger) {
	w, err := watch.New(watch.Config{
		OutputDir: dir,
		Logger:    logger,
		OnArtifact: func(_ context.Context, paths []string) error {
			for _, p := range paths {
				logger.Info("checkpoint artifact written", "path", p)
			}
			return nil
		},
	})
	if err != nil {
		logger.Warn("artifact watcher disabled", "err", err)
		return
	}
	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("artifact watcher stopped", "err", err)
		}
	}()
}

// controlClient resolves the control-server client from flags, falling back
// to the TRAINCTL_SERVER_ADDR / TRAINCTL_SERVER_TOKEN environment.
func controlClient(addr, token string) (*logserver.Client, error) {
	if addr != "" {
		return logserver.NewClient(addr, token), nil
	}
	if c := logserver.NewClientFromEnv(); c != nil {
		return c, nil
	}
	return nil, issue.NewErrorContext().
		WithOperation("reach the control server").
		WithSuggestion("Start one with 'trainctl serve'").
		WithSuggestion("Or pass --addr and --token for a running server").
		BuildError()
}
