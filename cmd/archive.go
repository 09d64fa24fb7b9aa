package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Export uptime history older than the retention window to blob storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.archiver.Run(cmd.Context())
		if err != nil {
			return err
		}
		if res.Archived == 0 {
			fmt.Println("Nothing to archive")
			return nil
		}
		fmt.Printf("✓ Archived %d rows to %s\n", res.Archived, res.ObjectKey)
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete raw health check results older than RESULT_RETENTION_DAYS",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.retention.Prune(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("✓ Deleted %d results\n", n)
		return nil
	},
}
