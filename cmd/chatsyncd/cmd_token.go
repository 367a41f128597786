package main

import (
	"errors"
	"fmt"

	"chat-sync/internal/auth"
	"chat-sync/internal/config"

	"github.com/spf13/cobra"
)

var tokenUser string

// tokenCmd mints access tokens for local testing
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for a user",
	Long: `Mint an access token signed with JWT_SECRET.

The token authenticates against both the relay's /ws endpoint and the
engine's /v1 API. Defaults to CHAT_USER_ID.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "", "User id (default: CHAT_USER_ID)")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	userID := tokenUser
	if userID == "" {
		userID = cfg.Sync.UserID
	}
	if userID == "" {
		return errors.New("--user or CHAT_USER_ID is required")
	}
	token, err := auth.NewIssuer(cfg.Transport.JWTSecret, cfg.Transport.TokenTTL).Mint(userID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
