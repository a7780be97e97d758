package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/prepcoach/internal/api"
	"github.com/abhisek/prepcoach/internal/tokencache"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage sync server bearer tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <learner-id>",
	Short: "Sign a token for a learner with PREPCOACH_JWT_SECRET",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		if e.cfg.JWTSecret == "" {
			return errors.New("PREPCOACH_JWT_SECRET is required to issue tokens")
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")
		tok, err := api.IssueToken([]byte(e.cfg.JWTSecret), args[0], ttl)
		if err != nil {
			return err
		}
		if save, _ := cmd.Flags().GetBool("save"); save {
			if err := saveToken(cmd, e, tok, ttl); err != nil {
				return err
			}
		}
		fmt.Println(tok)
		return nil
	},
}

var tokenSetCmd = &cobra.Command{
	Use:   "set <token>",
	Short: "Store the token used to reach the sync server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		return saveToken(cmd, e, args[0], 0)
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		if err := e.tokens.Clear(cmd.Context(), tokencache.TokenKey); err != nil {
			return err
		}
		fmt.Println("Token cleared.")
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().Duration("ttl", 30*24*time.Hour, "Token lifetime")
	tokenIssueCmd.Flags().Bool("save", false, "Also store the token in the token cache")

	tokenCmd.AddCommand(tokenIssueCmd)
	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenClearCmd)
}

func saveToken(cmd *cobra.Command, e *env, tok string, ttl time.Duration) error {
	if _, ok := e.tokens.(*tokencache.Redis); !ok {
		return errors.New("set PREPCOACH_REDIS_ADDR to store tokens, or export PREPCOACH_TOKEN")
	}
	if err := e.tokens.Set(cmd.Context(), tokencache.TokenKey, tok, ttl); err != nil {
		return err
	}
	fmt.Println("Token stored.")
	return nil
}
