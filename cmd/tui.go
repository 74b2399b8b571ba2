package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/metaoverlayfs/panel/cli"
	"github.com/metaoverlayfs/panel/logging"
	"github.com/metaoverlayfs/panel/pkg/panel"
	"github.com/metaoverlayfs/panel/pkg/refresh"
	"github.com/metaoverlayfs/panel/state"
	"github.com/metaoverlayfs/panel/tui"
	"github.com/metaoverlayfs/panel/tui/console"
)

// NewTUICmd returns the interactive panel command.
func NewTUICmd() *cobra.Command {
	var dashboard bool

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive module panel",
		Long: `Open the interactive module panel in the terminal.

The panel talks to the device directly and refreshes the visible surface
on its own schedule, whether or not the daemon is running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := cli.NewErrorHandler(cli.GetOptions(cmd).Verbose)
			handler.Out = cmd.ErrOrStderr()

			cfg, _, err := cli.LoadConfig(cmd)
			if err != nil {
				return handler.Handle(err)
			}
			p, err := panel.NewFromConfig(cfg, state.DefaultFile(), logging.NewLogger("tui"))
			if err != nil {
				return handler.Handle(err)
			}
			surface := refresh.Modules
			if dashboard {
				surface = refresh.Dashboard
			}
			if err := p.SetSurface(surface); err != nil {
				return handler.Handle(err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			go p.Start(ctx)

			_, err = tui.Run(console.New(ctx, p))
			return handler.Handle(err)
		},
	}

	cmd.Flags().BoolVarP(&dashboard, "dashboard", "d", false, "Start on the dashboard")

	return cmd
}
