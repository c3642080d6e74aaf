package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agrilink/usermgmt/internal/logger"
)

var adminEmail, adminUsername, adminPassword string

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Creates an administrator account.",

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Close()

		svc, db, err := openService(cfg, nil, nil)
		if err != nil {
			return err
		}
		defer db.Close()

		u, err := svc.CreateAdmin(adminEmail, adminUsername, adminPassword)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created admin %s <%s> (%s)\n", u.Username, u.Email, u.ID)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin email address")
	createAdminCmd.Flags().StringVar(&adminUsername, "username", "", "admin username")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "admin password")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("username")
	_ = createAdminCmd.MarkFlagRequired("password")
}
