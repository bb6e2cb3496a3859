package cmd

import (
	"fmt"

	"github.com/carenet/apiserver/config"
	"github.com/carenet/apiserver/internal/auth"
	"github.com/carenet/apiserver/internal/db"
	"github.com/carenet/apiserver/internal/store"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the default accounts into the postgres credential store",
	Long: `Insert the default accounts into the postgres credential store.
Existing usernames are skipped. The MFA secret written for each account
follows MFA_MODE.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		ctx := cmd.Context()

		dbConn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		passwords := auth.NewPasswordVerifier(cfg.Password.Cost, cfg.Password.MaxConcurrent)
		users, err := store.BuildSeedUsers(ctx, store.DefaultSeed, passwords, cfg.MFA.Mode == config.MFAModeStatic)
		if err != nil {
			return err
		}

		repo := store.NewUserRepository(dbConn)
		for _, user := range users {
			created, err := repo.Create(ctx, user)
			if err != nil {
				return fmt.Errorf("seed %q: %w", user.Username, err)
			}
			status := "exists"
			if created {
				status = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", user.Username, status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
