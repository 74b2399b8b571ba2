package main

import (
	"os"

	"github.com/metaoverlayfs/panel/cli"
	"github.com/metaoverlayfs/panel/cmd"
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"metaoverlay",
		"Manage meta-overlayfs modules and live patching",
	)

	// Add subcommands
	rootCmd.AddCommand(cmd.NewModulesCmd())
	rootCmd.AddCommand(cmd.NewLiveCmd())
	rootCmd.AddCommand(cmd.NewDashboardCmd())
	rootCmd.AddCommand(cmd.NewStorageCmd())
	rootCmd.AddCommand(cmd.NewLogsCmd())
	rootCmd.AddCommand(cmd.NewTUICmd())
	rootCmd.AddCommand(cmd.NewServeCmd())
	rootCmd.AddCommand(cmd.NewConfigCmd())
	rootCmd.AddCommand(cmd.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
