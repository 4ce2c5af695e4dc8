// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trainctl/internal/supervisor"
)

var (
	statusAddr  string
	statusToken string

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the state of the training session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := controlClient(statusAddr, statusToken)
			if err != nil {
				return err
			}
			resp, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Print(renderStatus(resp.Status))
			return nil
		},
	}
)

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "control server address (default: TRAINCTL_SERVER_ADDR)")
	statusCmd.Flags().StringVar(&statusToken, "token", "", "control server bearer token (default: TRAINCTL_SERVER_TOKEN)")
}

// renderStatus formats a status snapshot for the terminal.
func renderStatus(st supervisor.Status) string {
	var b strings.Builder

	state := string(st.State)
	switch st.State {
	case supervisor.StateRunning:
		state = SuccessStyle.Render(state)
	case supervisor.StateIdle:
		state = SubtitleStyle.Render(state)
	default:
		state = WarningStyle.Render(state)
	}
	fmt.Fprintf(&b, "%s %s\n", TitleStyle.Render("State:"), state)

	if st.PID != 0 {
		fmt.Fprintf(&b, "%s %d\n", TitleStyle.Render("PID:"), st.PID)
	}
	if !st.StartedAt.IsZero() && st.State != supervisor.StateIdle {
		fmt.Fprintf(&b, "%s %s (%s ago)\n", TitleStyle.Render("Started:"),
			st.StartedAt.Format(time.RFC3339),
			time.Since(st.StartedAt).Round(time.Second))
	}
	if st.ScriptPath != "" {
		fmt.Fprintf(&b, "%s %s\n", TitleStyle.Render("Script:"), CmdStyle.Render(st.ScriptPath))
	}
	if len(st.Command) > 0 {
		fmt.Fprintf(&b, "%s %s\n", TitleStyle.Render("Command:"), strings.Join(st.Command, " "))
	}
	if st.LastExitCode != nil {
		code := fmt.Sprintf("%d", *st.LastExitCode)
		if *st.LastExitCode == 0 {
			code = SuccessStyle.Render(code)
		} else {
			code = ErrorStyle.Render(code)
		}
		fmt.Fprintf(&b, "%s %s\n", TitleStyle.Render("Last exit:"), code)
	}
	if st.LastError != "" {
		fmt.Fprintf(&b, "%s %s\n", TitleStyle.Render("Last error:"), ErrorStyle.Render(st.LastError))
	}
	return b.String()
}
