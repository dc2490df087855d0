// Package signalcli drives the signal-cli command line client.
package signalcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

// Options configures the signal-cli invocation
type Options struct {
	Executable string
	ConfigPath string
	Account    string
	Verbose    bool
	Timeout    time.Duration
}

// commandRunner executes a command and reports its output and exit code.
// A non-zero exit is not an error.
type commandRunner func(ctx context.Context, name string, args []string) (stdout, stderr []byte, exitCode int, err error)

func execRunner(ctx context.Context, name string, args []string) ([]byte, []byte, int, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return stdout.Bytes(), stderr.Bytes(), -1, err
	}
	return stdout.Bytes(), stderr.Bytes(), 0, nil
}

// Client talks to signal-cli in JSON output mode
type Client struct {
	opts   Options
	run    commandRunner
	logger *zap.Logger
}

// NewClient creates a new signal-cli client
func NewClient(opts Options, logger *zap.Logger) (*Client, error) {
	if opts.Account == "" {
		return nil, fmt.Errorf("signal account number is empty")
	}
	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("signal config path is empty")
	}
	if opts.Executable == "" {
		opts.Executable = "signal-cli"
	}
	return &Client{
		opts:   opts,
		run:    execRunner,
		logger: logger,
	}, nil
}

func (c *Client) baseArgs() []string {
	args := []string{"--config", c.opts.ConfigPath}
	if c.opts.Verbose {
		args = append(args, "-v")
	}
	return append(args, "-a", c.opts.Account, "-o", "json")
}

func (c *Client) exec(ctx context.Context, args []string) ([]byte, []byte, int, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	c.logger.Debug("Running signal-cli",
		zap.String("executable", c.opts.Executable),
		zap.Strings("args", args))

	return c.run(ctx, c.opts.Executable, args)
}

// Receive pulls pending events. A non-zero exit code is reported in the
// result, only a failure to run the command is an error.
func (c *Client) Receive(ctx context.Context) (*core.ReceiveResult, error) {
	args := append(c.baseArgs(), "receive")

	stdout, stderr, code, err := c.exec(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to run signal-cli receive: %v", core.ErrTransport, err)
	}

	c.logger.Info("signal-cli receive finished",
		zap.Int("exit_code", code),
		zap.Int("stdout_bytes", len(stdout)),
		zap.Int("stderr_bytes", len(stderr)))

	return &core.ReceiveResult{
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: code,
	}, nil
}

// SendArgs builds the argument list of a send call
func (c *Client) SendArgs(post core.ChatPost) ([]string, error) {
	args := append(c.baseArgs(), "send")

	switch {
	case post.Recipient.GroupID != "" && post.Recipient.Number != "":
		return nil, fmt.Errorf("recipient must be either a group or a number")
	case post.Recipient.GroupID != "":
		args = append(args, "-g", post.Recipient.GroupID)
	case post.Recipient.Number == "":
		return nil, fmt.Errorf("recipient is empty")
	}

	args = append(args, "-m", post.Text)
	if post.AttachmentPath != "" {
		abs, err := filepath.Abs(post.AttachmentPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve attachment path: %w", err)
		}
		args = append(args, "-a", abs)
	}
	if post.Recipient.Number != "" {
		args = append(args, post.Recipient.Number)
	}
	return args, nil
}

// Send posts a message to a group or a single number
func (c *Client) Send(ctx context.Context, post core.ChatPost) error {
	args, err := c.SendArgs(post)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrTransport, err)
	}

	_, stderr, code, err := c.exec(ctx, args)
	if err != nil {
		return fmt.Errorf("%w: failed to run signal-cli send: %v", core.ErrTransport, err)
	}
	if code != 0 {
		return fmt.Errorf("%w: signal-cli send exited with %d: %s", core.ErrTransport, code, strings.TrimSpace(string(stderr)))
	}

	c.logger.Debug("Chat message sent",
		zap.String("group_id", post.Recipient.GroupID),
		zap.String("number", post.Recipient.Number),
		zap.Bool("attachment", post.AttachmentPath != ""))
	return nil
}
