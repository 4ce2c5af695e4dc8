// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	setupForce bool

	setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Install the pinned trainer packages",
		Long: `Install the trainer's pinned package set into the isolated package
directory. Packages are installed with --target and --no-deps, so they
never touch the host interpreter's site-packages and the set on disk is
exactly the pinned manifest.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := packageManager(currentConfig())
			if err != nil {
				return err
			}
			mgr.Logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "setup"})

			if mgr.Ready() && !setupForce {
				fmt.Println(SuccessStyle.Render("Trainer packages already installed") +
					SubtitleStyle.Render(" ("+mgr.LibsDir()+")"))
				return nil
			}

			if err := mgr.Install(cmd.Context()); err != nil {
				return err
			}
			fmt.Println(SuccessStyle.Render("Trainer packages installed") +
				SubtitleStyle.Render(" ("+mgr.LibsDir()+")"))
			return nil
		},
	}
)

func init() {
	setupCmd.Flags().BoolVar(&setupForce, "force", false, "reinstall even when the package set is already complete")
}
