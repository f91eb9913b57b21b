package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "easel",
	Short: "Easel - distributed presence-board bot worker",
	Long: `Easel runs a pool of stateless worker processes that cooperatively
lease per-guild bot identities from the game backend and keep a live
"who is sketching now" board synchronized into each guild's channel.

Each worker claims one instance at a time, runs an isolated Discord
session for the assigned guild, and self-heals on the next tick when
another worker takes the instance over.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "easel.yml", "Path to the easel.yml configuration file")
}
