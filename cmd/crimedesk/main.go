// Command crimedesk runs the crime reporting portal and its admin tooling.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gabrielmiguelok/crimedesk/internal/config"
)

// version is set via -ldflags during build
var version = "dev"

func main() {
	rootCmd := newRootCmd()
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the root command.
func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "crimedesk",
		Short: "Crime reporting portal",
		Long: `crimedesk serves a web portal where residents file crime reports through a
three step wizard and staff review, update and export them.

Configuration is read from flags, CRIMEDESK_* environment variables and
crimedesk.yml, in that order of precedence.`,
		Version: version,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./crimedesk.yml when present)")

	load := func(cmd *cobra.Command) (*config.Config, error) {
		return config.Load(configPath, cmd.Flags())
	}

	rootCmd.AddCommand(
		newServeCmd(load),
		newUserCmd(load),
		newReportsCmd(load),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// loader resolves the effective configuration for a command.
type loader func(cmd *cobra.Command) (*config.Config, error)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("crimedesk %s\n", version)
		},
	}
}
