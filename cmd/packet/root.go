package main

import (
	"github.com/spf13/cobra"

	"github.com/HugoLopez00/Packet-Project/internal/config"
	"github.com/HugoLopez00/Packet-Project/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Packet CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packet",
		Short: "Packet - session authentication for the BSSL intranet",
		Long: `Packet registers and logs in intranet users restricted to one email
domain and issues RS512-signed session cookies.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/packet/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewKeygenCmd())

	return cmd
}

// loadConfig merges the config file with the command's flags. Without
// --config, $XDG_CONFIG_HOME/packet/config.yaml is used when present.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		path = xdg.DefaultConfigFile()
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err //nolint:wrapcheck // oops error from config
	}
	return cfg, nil
}
