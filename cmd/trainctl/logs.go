// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	logsAddr   string
	logsToken  string
	logsFollow bool

	logsCmd = &cobra.Command{
		Use:   "logs",
		Short: "Show buffered training output",
		Long: `Show the buffered output of the training session.

The buffer holds the most recent lines of combined stdout/stderr; older
lines are evicted once the cap is reached. With --follow the buffered
lines are printed first and new output streams live until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := controlClient(logsAddr, logsToken)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if logsFollow {
				err := client.Follow(ctx, func(line string) error {
					fmt.Println(line)
					return nil
				})
				if err != nil && ctx.Err() == nil {
					return err
				}
				return nil
			}

			lines, err := client.Logs(ctx)
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Println(line)
			}
			return nil
		},
	}
)

func init() {
	logsCmd.Flags().StringVar(&logsAddr, "addr", "", "control server address (default: TRAINCTL_SERVER_ADDR)")
	logsCmd.Flags().StringVar(&logsToken, "token", "", "control server bearer token (default: TRAINCTL_SERVER_TOKEN)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "stream new output as it arrives")
}
