// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	stopAddr  string
	stopToken string

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop the running training session",
		Long: `Stop the training session owned by the control server.

The process receives a polite termination signal first; if it is still
alive after the configured grace period it is killed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := controlClient(stopAddr, stopToken)
			if err != nil {
				return err
			}
			resp, err := client.Stop(cmd.Context())
			if err != nil {
				return err
			}
			if !resp.Stopped {
				fmt.Println(SubtitleStyle.Render("No training session is running"))
				return nil
			}
			fmt.Println(SuccessStyle.Render("Training stopped"))
			return nil
		},
	}
)

func init() {
	stopCmd.Flags().StringVar(&stopAddr, "addr", "", "control server address (default: TRAINCTL_SERVER_ADDR)")
	stopCmd.Flags().StringVar(&stopToken, "token", "", "control server bearer token (default: TRAINCTL_SERVER_TOKEN)")
}
