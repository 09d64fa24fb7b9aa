package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "playjelly",
	Short: "Health monitoring and status page backend for PlayJelly",
	Long: `playjelly probes the services behind the PlayJelly app, keeps their
status and daily uptime, archives old uptime history to blob storage and
serves incidents and maintenance windows for the status dashboard.

Configuration is read from environment variables (DATABASE_URL, PORT,
CHECK_INTERVAL, ARCHIVE_BUCKET, ...).`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, checkCmd, archiveCmd, pruneCmd, servicesImportCmd, adminCreateCmd)
}
