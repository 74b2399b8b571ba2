package command

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/metaoverlayfs/panel/errors"
	"github.com/metaoverlayfs/panel/internal/metrics"
	"github.com/sirupsen/logrus"
)

const waitDelay = 500 * time.Millisecond

// Bridge issues one external shell command and returns its standard output.
// It fails when the command exits non-zero or the execution channel is
// unavailable. Command text is executed as given; quoting is the caller's
// job (see Builder).
//
// Independently issued calls have no ordering guarantee. Callers that need
// an ordered read-modify-write must serialize themselves.
type Bridge interface {
	Execute(ctx context.Context, cmd string) (string, error)
}

// BridgeFunc adapts a function to the Bridge interface.
type BridgeFunc func(ctx context.Context, cmd string) (string, error)

// Execute calls f(ctx, cmd).
func (f BridgeFunc) Execute(ctx context.Context, cmd string) (string, error) {
	return f(ctx, cmd)
}

// Request is a single correlated command invocation.
type Request struct {
	ID      string
	Command string
}

// NewRequest creates a request with a fresh correlation token.
func NewRequest(cmd string) Request {
	return Request{ID: uuid.NewString(), Command: cmd}
}

// ShellBridge runs commands through a shell, by default `sh -c`.
type ShellBridge struct {
	shell    []string
	timeout  time.Duration
	executor Executor
	logger   *logrus.Entry
}

// ShellOption configures a ShellBridge.
type ShellOption func(*ShellBridge)

// WithShell replaces the shell argv prefix. The command text is appended
// as the final argument.
func WithShell(argv ...string) ShellOption {
	return func(b *ShellBridge) {
		if len(argv) > 0 {
			b.shell = argv
		}
	}
}

// WithTimeout bounds each command. Zero means no bound.
func WithTimeout(d time.Duration) ShellOption {
	return func(b *ShellBridge) {
		b.timeout = d
	}
}

// WithExecutor injects the exec.Cmd factory.
func WithExecutor(e Executor) ShellOption {
	return func(b *ShellBridge) {
		b.executor = e
	}
}

// NewShellBridge creates a bridge backed by a local shell.
func NewShellBridge(logger *logrus.Entry, opts ...ShellOption) *ShellBridge {
	b := &ShellBridge{
		shell:    []string{"sh", "-c"},
		executor: &RealExecutor{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		b.logger = logrus.NewEntry(l)
	}
	return b
}

// Execute runs cmd and returns its stdout.
func (b *ShellBridge) Execute(ctx context.Context, cmd string) (string, error) {
	req := NewRequest(cmd)

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	args := append(append([]string{}, b.shell[1:]...), req.Command)
	c := b.executor.CommandContext(ctx, b.shell[0], args...) //nolint:gosec // command text is built by Builder

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	// Grandchildren holding the output pipes must not stall Wait past cancellation.
	c.WaitDelay = waitDelay

	start := time.Now()
	err := c.Run()
	metrics.ObserveCommand(err)

	entry := b.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"duration":   time.Since(start),
	})

	if err != nil {
		entry.WithError(err).Debugf("command failed: %s", req.Command)
		return "", errors.CommandFailed(req.Command, strings.TrimSpace(stderr.String()), err).
			WithDetail("requestID", req.ID)
	}

	entry.Debugf("command ok: %s", req.Command)
	return stdout.String(), nil
}

// PreviewBridge stands in when no execution channel exists. Every call
// fails with BRIDGE_UNAVAILABLE, so callers degrade to their defaults.
type PreviewBridge struct{}

// Execute always fails.
func (PreviewBridge) Execute(ctx context.Context, cmd string) (string, error) {
	return "", errors.BridgeUnavailable(cmd)
}
