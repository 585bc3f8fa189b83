package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var approveRevoke bool

var userApproveCmd = &cobra.Command{
	Use:   "approve <email>",
	Short: "Approve an account for login",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserApprove,
}

func init() {
	userApproveCmd.Flags().BoolVar(&approveRevoke, "revoke", false,
		"Revoke approval instead of granting it")
}

func runUserApprove(cmd *cobra.Command, args []string) error {
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

	approved := !approveRevoke
	if err := db.SetUserApproved(ctx, user.ID, approved); err != nil {
		return err
	}
	if !approved {
		// Revoking approval also ends any live sessions.
		if err := db.DeleteSessionsForUser(ctx, user.ID); err != nil {
			return err
		}
	}
	user.IsApproved = approved

	if userJSONOutput {
		return printJSON(cmd.OutOrStdout(), userJSON(user))
	}

	if approved {
		fmt.Fprintf(cmd.OutOrStdout(), "Approved user %q\n", user.Email)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Revoked approval for user %q\n", user.Email)
	}
	return nil
}
