// SPDX-License-Identifier: MPL-2.0

package logserver

import "trainctl/internal/supervisor"

// Environment variables used to hand the server coordinates to clients.
const (
	// EnvServerAddr carries the server address ("127.0.0.1:port").
	EnvServerAddr = "TRAINCTL_SERVER_ADDR"
	// EnvServerToken carries the bearer token.
	EnvServerToken = "TRAINCTL_SERVER_TOKEN"
)

type (
	// StartRequest asks the server to launch a training command.
	StartRequest struct {
		// Command is the full training command, interpreter first.
		Command []string `json:"command"`
		// WorkDir is the working-directory hint for script resolution.
		WorkDir string `json:"work_dir,omitempty"`
	}

	// StartResponse reports the outcome of a start request. Started is
	// false when a session already existed; Status then describes it.
	StartResponse struct {
		Status  supervisor.Status `json:"status"`
		Started bool              `json:"started"`
	}

	// StopResponse reports the outcome of a stop request. Stopped is false
	// when nothing was running.
	StopResponse struct {
		Status  supervisor.Status `json:"status"`
		Stopped bool              `json:"stopped"`
	}

	// StatusResponse wraps a status snapshot.
	StatusResponse struct {
		Status supervisor.Status `json:"status"`
	}

	// LogsResponse carries the buffered log lines, oldest first.
	LogsResponse struct {
		Lines []string `json:"lines"`
	}

	// ErrorResponse carries a handler-level failure.
	ErrorResponse struct {
		Error string `json:"error"`
	}
)
