package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/metaoverlayfs/panel/cli"
	"github.com/metaoverlayfs/panel/logging"
	"github.com/metaoverlayfs/panel/pkg/daemon"
)

// clientFactory is replaced in tests.
var clientFactory = func(cmd *cobra.Command) (daemon.Client, error) {
	cfg, _, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return daemon.New(cfg, logging.NewLogger("client"))
}

// withClient runs fn with a daemon client and prints any error through
// the CLI error handler.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c daemon.Client) error) error {
	opts := cli.GetOptions(cmd)
	handler := cli.NewErrorHandler(opts.Verbose)
	handler.Out = cmd.ErrOrStderr()

	c, err := clientFactory(cmd)
	if err != nil {
		return handler.Handle(err)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return handler.Handle(fn(ctx, c))
}

func printer(cmd *cobra.Command) *logging.Printer {
	return logging.NewPrinter(cmd.OutOrStdout())
}

func jsonOutput(cmd *cobra.Command) bool {
	return cli.GetOptions(cmd).JSONOutput
}
