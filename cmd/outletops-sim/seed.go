package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"outletops-sim/internal/logging"
	"outletops-sim/internal/store"
)

var seedUsersDB string

var seedUsersCmd = &cobra.Command{
	Use:   "seed-users",
	Short: "Create the default dashboard accounts",
	Long:  "seed-users ensures the admin, operator and viewer accounts exist. Passwords come from OUTLETOPS_<NAME>_PASSWORD env vars.",
	RunE: func(cmd *cobra.Command, args []string) error {
		godotenv.Load()
		logger := logging.New()

		st, err := store.Open(seedUsersDB)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Users().SeedDefaultUsers(); err != nil {
			return err
		}
		logger.Info("default users seeded", "db", seedUsersDB)
		return nil
	},
}

func init() {
	seedUsersCmd.Flags().StringVar(&seedUsersDB, "users-db", "outletops.db", "Path to the SQLite user database")
}
