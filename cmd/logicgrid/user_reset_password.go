package main

import (
	"context"
	"fmt"

	"github.com/logicgrid/logicgrid/internal/validation"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var resetPassword string

var userResetPasswordCmd = &cobra.Command{
	Use:   "reset-password <email>",
	Short: "Reset an account password",
	Long:  "Reset an account password. Clears any login lockout and revokes all live sessions for the account.",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserResetPassword,
}

func init() {
	userResetPasswordCmd.Flags().StringVar(&resetPassword, "password", "",
		"New password (required)")
}

func runUserResetPassword(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if verr := validation.ValidatePassword("password", resetPassword); verr != nil {
		return fmt.Errorf("password %s", verr.Message)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(resetPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	db, err := resolveUserStore()
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := findUser(ctx, db, args[0])
	if err != nil {
		return err
	}

	if err := db.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	if err := db.DeleteSessionsForUser(ctx, user.ID); err != nil {
		return err
	}

	if userJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"id":       user.ID,
			"email":    user.Email,
			"reset":    true,
			"sessions": "revoked",
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Reset password for user %q\n", user.Email)
	return nil
}
