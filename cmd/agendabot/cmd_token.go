package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/agendabot/internal/auth"
	"github.com/user/agendabot/internal/types"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenIssueCmd)

	tokenIssueCmd.Flags().Duration("ttl", 0, "token lifetime (0 = no expiry)")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage bearer tokens",
}

// tokenIssueCmd mints a token for local and development use. Production
// tokens come from whatever identity service owns the shared secret.
var tokenIssueCmd = &cobra.Command{
	Use:   "issue <user-id>",
	Short: "Issue a signed token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if cfg.Auth.Secret == "" {
			return fmt.Errorf("auth.secret is not configured")
		}

		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("user id must be numeric: %q", args[0])
		}

		claims := map[string]any{"iat": time.Now().Unix()}
		if ttl, _ := cmd.Flags().GetDuration("ttl"); ttl > 0 {
			claims["exp"] = time.Now().Add(ttl).Unix()
		}

		token, err := auth.Sign(cfg.Auth.Secret, types.UserID(userID), claims)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(os.Stdout, token)
		return nil
	},
}
