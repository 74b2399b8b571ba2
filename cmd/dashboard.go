package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/metaoverlayfs/panel/cli"
	"github.com/metaoverlayfs/panel/logging"
	"github.com/metaoverlayfs/panel/pkg/daemon"
	"github.com/metaoverlayfs/panel/pkg/storage"
)

// NewDashboardCmd returns the dashboard command.
func NewDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show device, storage and module summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
				d, err := c.Dashboard(ctx)
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return cli.PrintJSON(cmd.OutOrStdout(), d)
				}

				p := printer(cmd)
				p.Heading("Device")
				p.Field("Model", d.Device.Model)
				p.Field("Android", d.Device.Android)
				p.Field("KernelSU", d.Device.KSUVersion)
				p.Field("Root", d.Device.Root)
				p.Blank()

				p.Heading("Storage")
				printUsage(p, d.Storage)
				p.Blank()

				p.Heading("Modules")
				p.Field("Total", d.Stats.Total)
				p.Field("Active", d.Stats.Active)
				p.Field("Inactive", d.Stats.Inactive)
				p.Field("Updating", d.Stats.Updating)
				p.Field("Live", d.Stats.Live)

				if d.LastError != "" {
					p.Blank()
					p.Warn("Last refresh failed: %s", d.LastError)
				}
				return nil
			})
		},
	}
}

// NewStorageCmd returns the storage command.
func NewStorageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "storage",
		Short: "Show overlay image usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c daemon.Client) error {
				d, err := c.Dashboard(ctx)
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return cli.PrintJSON(cmd.OutOrStdout(), d.Storage)
				}
				printUsage(printer(cmd), d.Storage)
				return nil
			})
		},
	}
}

func printUsage(p *logging.Printer, u storage.Usage) {
	if !u.Exists {
		p.Warn("Overlay image not found")
		return
	}
	p.Field("Used", fmt.Sprintf("%s / %s (%d%%)", u.UsedFormatted(), u.TotalFormatted(), u.Percent))
	p.Field("Free", u.FreeFormatted())
	if !u.Mounted {
		p.Field("Mounted", "no (usage estimated)")
	}
}
