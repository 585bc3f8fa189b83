package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var promoteRevoke bool

var userPromoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant admin rights to an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserPromote,
}

func init() {
	userPromoteCmd.Flags().BoolVar(&promoteRevoke, "revoke", false,
		"Revoke admin rights instead of granting them")
}

func runUserPromote(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, err := resolveUserStore()
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := findUser(ctx, db, args[0])
	if err != nil {
		return err
	}

	admin := !promoteRevoke
	if err := db.SetUserAdmin(ctx, user.ID, admin); err != nil {
		return err
	}
	user.IsAdmin = admin

	if userJSONOutput {
		return printJSON(cmd.OutOrStdout(), userJSON(user))
	}

	if admin {
		fmt.Fprintf(cmd.OutOrStdout(), "Promoted user %q to admin\n", user.Email)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Revoked admin rights for user %q\n", user.Email)
	}
	return nil
}
