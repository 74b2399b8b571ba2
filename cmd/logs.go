package cmd

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"github.com/metaoverlayfs/panel/cli"
	"github.com/metaoverlayfs/panel/pkg/daemon"
)

// NewLogsCmd returns the logs command with subcommands.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View the device activity log",
		Long: `The activity log records every module and live patching change made from
the panel, one timestamped line per action.`,
	}

	cmd.AddCommand(newLogsViewCmd())
	cmd.AddCommand(newLogsFollowCmd())
	cmd.AddCommand(newLogsClearCmd())

	return cmd
}

func newLogsViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Print the activity log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
				body, err := c.ReadLog(ctx)
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return cli.PrintJSON(cmd.OutOrStdout(), body)
				}
				if body.Log == "" {
					printer(cmd).Info("Log is empty: %s", body.Path)
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), body.Log)
				return nil
			})
		},
	}
}

func newLogsFollowCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Follow the activity log as it grows",
		Long: `Follow the activity log file. This reads the file directly and so only
works where the log is on the local filesystem, such as a shell on the
device itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				cfg, _, err := cli.LoadConfig(cmd)
				if err != nil {
					return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
				}
				file = cfg.Device.LogFile
			}
			return followFile(cmd.Context(), file, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Log file to follow (default: device.log_file)")
	return cmd
}

// followFile copies every line of path to w until ctx is canceled or
// the process is interrupted.
func followFile(ctx context.Context, path string, w io.Writer) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekStart},
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return fmt.Errorf("cannot follow %s: %w", path, err)
	}
	defer t.Cleanup()
	defer t.Stop()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				continue
			}
			fmt.Fprintln(w, line.Text)
		}
	}
}

func newLogsClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the activity log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
				ok, err := prompter().Confirm("", "Clear the activity log?", yes)
				if err != nil || !ok {
					return err
				}
				if err := c.ClearLog(ctx); err != nil {
					return err
				}
				printer(cmd).Success("Log cleared")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
