// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/shell"

	"trainctl/internal/logserver"
)

var (
	runWorkDir   string
	runDetach    bool
	runArtifacts string

	runCmd = &cobra.Command{
		Use:   "run [flags] -- <command>...",
		Short: "Launch a supervised training process",
		Long: `Launch the training command under supervision.

The command is the interpreter invocation for the training script, e.g.:

  trainctl run -- python sdxl_train_network.py --config cfg.toml

A single quoted argument is split with shell word rules, so legacy
command strings keep working:

  trainctl run "python train_network.py --lr 1e-4"

When a control server is reachable (started with 'trainctl serve'), the
run is submitted there; otherwise the process runs in the foreground and
its output streams to stdout. Ctrl-C triggers a graceful stop.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runTraining,
	}
)

func init() {
	runCmd.Flags().StringVarP(&runWorkDir, "workdir", "w", "", "working directory hint for script resolution (default: current directory)")
	runCmd.Flags().BoolVar(&runDetach, "detach", false, "submit to the control server and return immediately")
	runCmd.Flags().StringVar(&runArtifacts, "artifacts", "", "directory watched for produced checkpoints during foreground runs (default: output_dir from config)")
}

func runTraining(cmd *cobra.Command, args []string) error {
	command, err := trainingCommand(args)
	if err != nil {
		return err
	}

	workDir := runWorkDir
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if client := logserver.NewClientFromEnv(); client != nil && client.IsAvailable() {
		return runRemote(ctx, client, command, workDir)
	}
	if runDetach {
		return fmt.Errorf("--detach requires a reachable control server; start one with %s", CmdStyle.Render("trainctl serve"))
	}
	return runForeground(ctx, command, workDir)
}

// trainingCommand normalizes the positional args into an argv. A single
// argument is treated as a legacy command string and split with shell word
// rules (quotes and escapes respected, no expansion of live state).
func trainingCommand(args []string) ([]string, error) {
	if len(args) != 1 {
		return args, nil
	}
	fields, err := shell.Fields(args[0], nil)
	if err != nil {
		return nil, fmt.Errorf("parse command string: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty training command")
	}
	return fields, nil
}

func runRemote(ctx context.Context, client *logserver.Client, command []string, workDir string) error {
	resp, err := client.Start(ctx, command, workDir)
	if err != nil {
		return err
	}
	if !resp.Started {
		fmt.Println(WarningStyle.Render("A training session is already running") +
			SubtitleStyle.Render(fmt.Sprintf(" (pid %d)", resp.Status.PID)))
		return nil
	}
	fmt.Println(SuccessStyle.Render("Training started") +
		SubtitleStyle.Render(fmt.Sprintf(" (pid %d)", resp.Status.PID)))
	if runDetach {
		fmt.Println(SubtitleStyle.Render("Follow output with ") + CmdStyle.Render("trainctl logs --follow"))
		return nil
	}

	// Stream until the caller interrupts; the session itself keeps running
	// on the server.
	err = client.Follow(ctx, func(line string) error {
		fmt.Println(line)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runForeground(ctx context.Context, command []string, workDir string) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "trainctl"})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	sup, err := buildSupervisor(ctx, currentConfig(), logger)
	if err != nil {
		return err
	}

	if dir := artifactsTarget(runArtifacts, currentConfig()); dir != "" {
		startArtifactWatcher(ctx, dir, logger)
	}

	st, started, err := sup.Start(ctx, command, workDir)
	if err != nil {
		return err
	}
	if !started {
		fmt.Println(WarningStyle.Render("A training session is already running") +
			SubtitleStyle.Render(fmt.Sprintf(" (pid %d)", st.PID)))
		return nil
	}

	lines, unsubscribe := sup.Relay().Subscribe(256)
	defer unsubscribe()
	go func() {
		for line := range lines {
			fmt.Println(line)
		}
	}()

	st, err = sup.Wait(ctx)
	if err != nil {
		// Interrupted: stop the child before leaving. A fresh context lets
		// the graceful sequence finish after the original was cancelled.
		logger.Info("interrupt received, stopping training process")
		if st, _, err = sup.Stop(context.Background()); err != nil {
			return err
		}
	}

	if st.LastExitCode != nil && *st.LastExitCode != 0 {
		return &ExitError{
			Code: *st.LastExitCode,
			Err:  fmt.Errorf("training process exited with code %d", *st.LastExitCode),
		}
	}
	return nil
}
