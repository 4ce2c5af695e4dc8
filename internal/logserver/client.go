// SPDX-License-Identifier: MPL-2.0

package logserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client talks to a running control server.
type Client struct {
	addr   string
	token  string
	client *http.Client
}

// NewClient creates a client for the given address and token.
func NewClient(addr, token string) *Client {
	return &Client{
		addr:  addr,
		token: token,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientFromEnv builds a client from TRAINCTL_SERVER_ADDR and
// TRAINCTL_SERVER_TOKEN. Returns nil when either is unset.
func NewClientFromEnv() *Client {
	addr := os.Getenv(EnvServerAddr)
	token := os.Getenv(EnvServerToken)
	if addr == "" || token == "" {
		return nil
	}
	return NewClient(addr, token)
}

// IsAvailable reports whether the server answers its health check.
func (c *Client) IsAvailable() bool {
	if c == nil {
		return false
	}
	resp, err := c.client.Get(c.url("/healthz"))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Start asks the server to launch a training command.
func (c *Client) Start(ctx context.Context, command []string, workDir string) (*StartResponse, error) {
	var out StartResponse
	err := c.postJSON(ctx, "/v1/start", StartRequest{Command: command, WorkDir: workDir}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Stop asks the server to end the running session.
func (c *Client) Stop(ctx context.Context) (*StopResponse, error) {
	var out StopResponse
	if err := c.postJSON(ctx, "/v1/stop", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the current supervisor snapshot.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.getJSON(ctx, "/v1/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logs fetches the buffered log lines.
func (c *Client) Logs(ctx context.Context) ([]string, error) {
	var out LogsResponse
	if err := c.getJSON(ctx, "/v1/logs", &out); err != nil {
		return nil, err
	}
	return out.Lines, nil
}

// Follow streams log lines until ctx is canceled, the stream ends, or fn
// returns an error.
func (c *Client) Follow(ctx context.Context, fn func(line string) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/v1/logs?follow=1"), nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	// The streaming client must not impose the default request timeout.
	streaming := &http.Client{}
	resp, err := streaming.Do(req)
	if err != nil {
		return fmt.Errorf("connect to control server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.responseError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		raw := scanner.Text()
		if !strings.HasPrefix(raw, "data: ") {
			continue
		}
		if err := fn(strings.TrimPrefix(raw, "data: ")); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("log stream ended: %w", err)
	}
	return ctx.Err()
}

func (c *Client) url(path string) string {
	return "http://" + c.addr + path
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("contact control server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.responseError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var er ErrorResponse
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, er.Error)
	}
	return fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
