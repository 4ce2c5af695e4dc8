// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"trainctl/internal/envcheck"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the training environment",
	Long: `Probe the configured interpreter and report anything that would
prevent a training run: version window, embedded-runtime detection,
GPU availability, and importability of the trainer's package stack.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := currentConfig()
		report := envcheck.New(c.Python).Run(cmd.Context())

		fmt.Println(TitleStyle.Render("Environment check") + SubtitleStyle.Render(" ("+c.Python+")"))
		for _, check := range report.Checks {
			mark := SuccessStyle.Render("ok  ")
			if !check.OK {
				mark = ErrorStyle.Render("FAIL")
			}
			fmt.Printf("[%s] %s: %s\n", mark, check.Name, check.Detail)
		}

		mgr, err := packageManager(c)
		if err != nil {
			return err
		}
		missing, err := mgr.Missing()
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			fmt.Println()
			fmt.Println(WarningStyle.Render("Isolated trainer packages missing:"))
			for _, m := range missing {
				fmt.Println("  " + m)
			}
			fmt.Println(SubtitleStyle.Render("Install them with ") + CmdStyle.Render("trainctl setup"))
		} else {
			fmt.Println(SuccessStyle.Render("Isolated trainer packages ready") +
				SubtitleStyle.Render(" ("+mgr.LibsDir()+")"))
		}

		if !report.AllOK() {
			return &ExitError{Code: 1, Err: fmt.Errorf("environment check failed")}
		}
		return nil
	},
}
