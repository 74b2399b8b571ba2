package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/metaoverlayfs/panel/cli"
	"github.com/metaoverlayfs/panel/config"
)

// NewConfigCmd returns the config command with subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the panel configuration",
		Long: `The configuration is read from --config, then $METAOVERLAY_CONFIG, then
metaoverlay.yml, metaoverlay.yaml or metaoverlay.toml in the config
directory. Without a file the built-in defaults apply.`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSchemaCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := cli.LoadConfig(cmd)
			if err != nil {
				return cli.NewErrorHandler(cli.GetOptions(cmd).Verbose).Handle(err)
			}
			if jsonOutput(cmd) {
				return cli.PrintJSON(cmd.OutOrStdout(), cfg)
			}

			source := path
			if source == "" {
				source = "built-in defaults"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# Source: %s\n", source)
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cli.GetOptions(cmd).ConfigFile
			if len(args) == 1 {
				path = args[0]
			}

			var err error
			if path == "" {
				_, path, err = config.LoadDefault("")
			} else {
				_, err = config.Load(path)
			}
			if err != nil {
				return cli.NewErrorHandler(true).Handle(err)
			}
			if path == "" {
				printer(cmd).Info("No config file found; the defaults are valid")
				return nil
			}
			printer(cmd).Success("%s is valid", path)
			return nil
		},
	}
}
