package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	d "github.com/tj/go-debug"

	"github.com/greut/sipi/auth"
)

var debug = d.Debug("sipi")

func NewTokenCommand() *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the admin endpoints.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			if cfg.Admin.Secret == "" {
				return errors.New("admin.secret is not set")
			}
			if ttl == 0 {
				ttl = cfg.Admin.TokenTTLDuration
			}

			token, err := auth.Sign([]byte(cfg.Admin.Secret), subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "admin", "Subject of the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Validity, admin.tokenTTL by default")

	return cmd
}
