package main

import (
	"errors"
	"fmt"
	"time"

	"webshrink/auth"

	"github.com/spf13/cobra"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var subject string
	var ttl time.Duration
	var scopes []string
	var generateSecret bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with auth.jwt_secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if generateSecret {
				secret, err := auth.GenerateSecret(auth.MinSecretLen)
				if err != nil {
					return err
				}
				fmt.Println(secret)
				return nil
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not set; run `webshrink token --generate-secret` first")
			}
			if subject == "" {
				return errors.New("--subject is required")
			}
			claims := auth.NewClaims(cfg.Auth.Issuer, subject, ttl, scopes...)
			token, err := auth.IssueToken(claims, []byte(cfg.Auth.JWTSecret))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Granted scopes (jobs, history, admin); empty grants all")
	cmd.Flags().BoolVar(&generateSecret, "generate-secret", false, "Print a new random secret for auth.jwt_secret and exit")
	return cmd
}
