// Package commands implements kmsd's CLI surface: the `start` and
// `status` subcommands spec.md §1 leaves as an external "CLI/argument
// parser" collaborator. Grounded on the teacher's cmd/dfs/commands
// (root command with a persistent --config flag, one file per
// subcommand, build-time version variables set from main).
package commands

import (
	"github.com/spf13/cobra"
)

// Version, Commit, and Date are set by main from linker flags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "kmsd",
	Short: "A KMS activation host emulator",
	Long: `kmsd emulates a Microsoft Key Management Service host: it accepts
volume-license activation requests from Windows and Office clients over
TCP, decodes the DCE/RPC and KMS request envelope, and produces a
cryptographically valid V4/V5/V6 KMS response.`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default: ./kmsd.yaml, then $XDG_CONFIG_HOME/kmsd/kmsd.yaml)")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
