// Package main is the MEC sync client: an interactive shell and a watcher
// over the shared document.
package main

import (
	"cmp"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atinyakov/mecsync/internal/config"
)

var (
	version   string
	buildDate string
)

// flags bound on the root command; they override the config file and
// environment.
var (
	configPath   string
	endpointFlag string
	logLevelFlag string
	snapshotFlag string
	channelFlag  string
)

var rootCmd = &cobra.Command{
	Use:           "mecsync",
	Short:         "Sync client for the MEC System document",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show build version and date",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "MEC sync client\nVersion: %s\nBuild Date: %s\n",
			cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", os.Getenv("MEC_CONFIG"), "client config file (JSON or YAML)")
	pf.StringVar(&endpointFlag, "endpoint", "", "document endpoint URL")
	pf.StringVar(&logLevelFlag, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&snapshotFlag, "snapshot", "", "offline snapshot file")
	pf.StringVar(&channelFlag, "channel-dir", "", "directory shared by sessions for change notifications")

	rootCmd.AddCommand(versionCmd, shellCmd, watchCmd)
}

// loadConfig reads the config file and applies the command-line overrides.
func loadConfig() (config.ClientConfig, error) {
	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return cfg, err
	}
	if endpointFlag != "" {
		cfg.Endpoint = endpointFlag
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if snapshotFlag != "" {
		cfg.SnapshotPath = snapshotFlag
	}
	if channelFlag != "" {
		cfg.ChannelDir = channelFlag
	}
	return cfg, cfg.Validate()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
