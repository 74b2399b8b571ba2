package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/metaoverlayfs/panel/cli"
	"github.com/metaoverlayfs/panel/pkg/daemon"
	"github.com/metaoverlayfs/panel/pkg/view"
)

// prompter is replaced in tests.
var prompter = func() *cli.Prompter { return cli.NewPrompter() }

// NewLiveCmd returns the live command with subcommands.
func NewLiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Manage live patching of module updates",
		Long: `Modules in the live set have their updates applied to the running system
without a reboot.`,
	}

	cmd.AddCommand(newLiveListCmd())
	cmd.AddCommand(newLiveToggleCmd("enable", true))
	cmd.AddCommand(newLiveToggleCmd("disable", false))
	cmd.AddCommand(newLiveApplyCmd())

	return cmd
}

func newLiveListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List modules enabled for live patching",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
				v, err := c.Modules(ctx, string(view.FilterLive), "")
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return cli.PrintJSON(cmd.OutOrStdout(), v)
				}
				printView(cmd, v)
				return nil
			})
		},
	}
}

// displayName resolves id to its module.prop name, falling back to id.
func displayName(ctx context.Context, c daemon.Client, id string) string {
	v, err := c.Modules(ctx, string(view.FilterAll), "")
	if err != nil {
		return id
	}
	for _, it := range v.Items {
		if it.ID == id {
			return it.DisplayName
		}
	}
	return id
}

func newLiveToggleCmd(use string, enable bool) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("%s live patching for a module", capitalize(use)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
				name := displayName(ctx, c, id)

				var ok bool
				var err error
				if enable {
					ok, err = prompter().Confirm(cli.LiveEnableWarning(name), "Enable live patching?", yes)
				} else {
					ok, err = prompter().Confirm("", cli.LiveDisableWarning(name), yes)
				}
				if err != nil {
					return err
				}
				if !ok {
					printer(cmd).Info("Cancelled")
					return nil
				}

				set, err := c.ToggleLive(ctx, id, enable)
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return cli.PrintJSON(cmd.OutOrStdout(), set)
				}
				printer(cmd).Success("Live patching %s for %s", pastTense(enable), name)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newLiveApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <id>",
		Short: "Patch a live-enabled module into the running system now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
				res, err := c.LiveApply(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return cli.PrintJSON(cmd.OutOrStdout(), res)
				}
				p := printer(cmd)
				p.Success("Applied %s", res.Module)
				if res.Output != "" {
					fmt.Fprint(cmd.OutOrStdout(), res.Output)
				}
				return nil
			})
		},
	}
}
