// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	_ "embed"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

//go:embed guide.md
var guideMarkdown string

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Show the user guide",
	Long:  "Render the built-in user guide covering runs, the control server, and configuration.",
	RunE: func(_ *cobra.Command, _ []string) error {
		rendered, err := glamour.Render(guideMarkdown, "auto")
		if err != nil {
			// Unstyled fallback keeps the guide readable on odd terminals.
			fmt.Print(guideMarkdown)
			return nil
		}
		fmt.Print(rendered)
		return nil
	},
}
