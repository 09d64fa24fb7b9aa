package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"playjelly/config"
	"playjelly/services"
)

var importFile string

var servicesImportCmd = &cobra.Command{
	Use:   "services:import",
	Short: "Create or update services from a YAML file",
	Long: `Create or update monitored services from a YAML file. Services are
matched by name; status and uptime of existing services are kept.

Example file:
  services:
    - name: Jellyfin
      url: https://media.playjelly.app/health
      ip_address: 10.0.0.5
      port: 8096`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if importFile == "" {
			return fmt.Errorf("services file is required (--file)")
		}
		seed, err := config.LoadSeedFile(importFile)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := services.ImportServices(cmd.Context(), a.repo, seed)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Imported %s: %d created, %d updated\n", importFile, res.Created, res.Updated)
		return nil
	},
}

func init() {
	servicesImportCmd.Flags().StringVarP(&importFile, "file", "f", "", "path to services YAML (required)")
}
