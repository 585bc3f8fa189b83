package main

import (
	"context"
	"fmt"

	"github.com/logicgrid/logicgrid/internal/validation"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	createPassword string
	createApproved bool
)

var userCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Create a new account",
	Long:  "Create a new account directly in the database. The first account ever created becomes an approved admin; later accounts wait for approval unless --approve is given.",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserCreate,
}

func init() {
	userCreateCmd.Flags().StringVar(&createPassword, "password", "",
		"Initial password (required)")
	userCreateCmd.Flags().BoolVar(&createApproved, "approve", false,
		"Approve the account immediately")
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	email := args[0]
	ctx := context.Background()

	if verr := validation.ValidateEmail("email", email); verr != nil {
		return fmt.Errorf("email %s", verr.Message)
	}
	if verr := validation.ValidatePassword("password", createPassword); verr != nil {
		return fmt.Errorf("password %s", verr.Message)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(createPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	db, err := resolveUserStore()
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := db.CreateUser(ctx, email, string(hash))
	if err != nil {
		return err
	}

	if createApproved && !user.IsApproved {
		if err := db.SetUserApproved(ctx, user.ID, true); err != nil {
			return err
		}
		user.IsApproved = true
	}

	if userJSONOutput {
		return printJSON(cmd.OutOrStdout(), userJSON(user))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created user %q (admin: %s, approved: %s)\n",
		user.Email, yesNo(user.IsAdmin), yesNo(user.IsApproved))
	return nil
}
