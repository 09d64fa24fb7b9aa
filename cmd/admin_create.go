package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"playjelly/models"
)

var (
	adminEmail    string
	adminPassword string
	adminRole     string
)

var adminCreateCmd = &cobra.Command{
	Use:   "admin:create",
	Short: "Create a dashboard user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if adminEmail == "" {
			return fmt.Errorf("email is required (--email)")
		}
		if len(adminPassword) < 8 {
			return fmt.Errorf("password must be at least 8 characters (--password)")
		}
		if adminRole != models.RoleAdmin && adminRole != models.RoleViewer {
			return fmt.Errorf("role must be %q or %q", models.RoleAdmin, models.RoleViewer)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.repo.CreateUser(cmd.Context(), models.User{Email: adminEmail, PasswordHash: string(hash), Role: adminRole})
		if err != nil {
			return err
		}
		fmt.Printf("✓ Created %s user %s (%s)\n", u.Role, u.Email, u.ID)
		return nil
	},
}

func init() {
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "user email (required)")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "user password, at least 8 characters (required)")
	adminCreateCmd.Flags().StringVar(&adminRole, "role", models.RoleAdmin, "admin or viewer")
}
