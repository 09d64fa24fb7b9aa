package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var checkServiceID string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one health check pass and print the result",
	Long: `Run one health check pass against every eligible service, or against a
single service with --service. Intended for external schedulers.

Examples:
  playjelly check
  playjelly check --service 3f1c...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if checkServiceID != "" {
			out, err := a.dispatcher.CheckOne(cmd.Context(), checkServiceID)
			if err != nil {
				return err
			}
			return enc.Encode(out)
		}
		summary, err := a.dispatcher.CheckAll(cmd.Context())
		if encErr := enc.Encode(summary); encErr != nil {
			return encErr
		}
		return err
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkServiceID, "service", "s", "", "check only this service id")
}
