package main

// file: cmd/authsession/devtoken.go

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/authsession/internal/devtoken"
	"github.com/spf13/cobra"
)

func newDevTokenCmd(root *rootOptions) *cobra.Command {
	var (
		uid   string
		email string
		name  string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "dev-token",
		Short: "Mint a development login token for the shell's 'dev' command",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := root.load()
			if err != nil {
				return err
			}
			if cfg.Dev.Secret == "" {
				return errors.New("dev.secret is not configured")
			}
			if ttl == 0 {
				ttl = cfg.Dev.TokenTTL
			}
			token, err := devtoken.Mint([]byte(cfg.Dev.Secret), uid, email, name, ttl, time.Now())
			if err != nil {
				return errors.Wrap(err, "failed to mint dev token")
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "dev-user", "User id carried by the token.")
	cmd.Flags().StringVar(&email, "email", "", "Email address carried by the token.")
	cmd.Flags().StringVar(&name, "name", "", "Display name carried by the token.")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to dev.token_ttl).")
	return cmd
}
