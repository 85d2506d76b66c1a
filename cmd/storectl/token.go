package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"storefront/internal/auth"
	"storefront/internal/config"
)

func newTokenCmd() *cobra.Command {
	var (
		id  auth.Identity
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token signed with AUTH_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tok, err := auth.Sign(cfg.AuthSecret, id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&id.ID, "user", "operator", "user id claim")
	cmd.Flags().StringVar(&id.Email, "email", "", "email claim")
	cmd.Flags().BoolVar(&id.IsAdmin, "admin", false, "grant admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 = no expiry)")
	return cmd
}
