package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/metaoverlayfs/panel/cli"
	"github.com/metaoverlayfs/panel/pkg/daemon"
	"github.com/metaoverlayfs/panel/pkg/storage"
	"github.com/metaoverlayfs/panel/pkg/view"
)

// NewModulesCmd returns the modules command with subcommands.
func NewModulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "modules",
		Aliases: []string{"mod"},
		Short:   "List and toggle overlay modules",
	}

	cmd.AddCommand(newModulesListCmd())
	cmd.AddCommand(newModulesToggleCmd("enable", true))
	cmd.AddCommand(newModulesToggleCmd("disable", false))

	return cmd
}

func newModulesListCmd() *cobra.Command {
	var filter, search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List modules",
		Long: `List the modules under the overlay mount point with their status.

Filters: all, active, inactive, updating, live. Without --filter the last
filter selected in any panel surface is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
				v, err := c.Modules(ctx, filter, search)
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
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Filter: all, active, inactive, updating, live")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only modules whose name or id contains this text")
	return cmd
}

func printView(cmd *cobra.Command, v view.View) {
	out := cmd.OutOrStdout()
	c := v.Counts
	fmt.Fprintf(out, "all %d · active %d · inactive %d · updating %d · live %d\n\n",
		c.All, c.Active, c.Inactive, c.Updating, c.Live)

	if len(v.Items) == 0 {
		fmt.Fprintln(out, v.EmptyMessage)
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tLIVE\tSIZE")
	for _, it := range v.Items {
		live := ""
		if it.Live {
			live = "yes"
		}
		status := string(it.Status)
		if !it.ExistsInBackingDir {
			status += " (orphaned)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.DisplayName, status, live, storage.FormatBytes(it.SizeBytes))
	}
	w.Flush()
}

func newModulesToggleCmd(use string, enable bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: fmt.Sprintf("%s a module at next boot", capitalize(use)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
				m, err := c.ToggleModule(ctx, args[0], enable)
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return cli.PrintJSON(cmd.OutOrStdout(), m)
				}
				printer(cmd).Success("%s %s. Reboot to apply.", m.DisplayName(), pastTense(enable))
				return nil
			})
		},
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func pastTense(enable bool) string {
	if enable {
		return "enabled"
	}
	return "disabled"
}
