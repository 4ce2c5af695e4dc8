// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"trainctl/internal/config"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage trainctl configuration",
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as CUE",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Print(config.GenerateCUE(currentConfig()))
			return nil
		},
	}

	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Write a default configuration file to the user config directory.
An existing file is left untouched.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := config.CreateDefaultConfig(); err != nil {
				return err
			}
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			path := filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
			fmt.Println(SuccessStyle.Render("Config ready at ") + CmdStyle.Render(path))
			return nil
		},
	}

	configPathCmd = &cobra.Command{
		Use:   "path",
		Short: "Print the config directory",
		RunE: func(_ *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Println(dir)
			return nil
		},
	}
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}
