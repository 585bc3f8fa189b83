package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var deleteForce bool

var userDeleteCmd = &cobra.Command{
	Use:   "delete <email>",
	Short: "Delete an account and all its data",
	Long:  "Permanently delete an account along with its sessions, protocols, and audit history. Requires --force or interactive confirmation.",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserDelete,
}

func init() {
	userDeleteCmd.Flags().BoolVar(&deleteForce, "force", false,
		"Skip confirmation prompt")
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	email := args[0]
	ctx := context.Background()

	db, err := resolveUserStore()
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := findUser(ctx, db, email)
	if err != nil {
		return err
	}

	// Interactive confirmation unless --force
	if !deleteForce {
		errOut := cmd.ErrOrStderr()
		fmt.Fprintf(errOut, "WARNING: This will permanently delete user %q and all their data.\n", user.Email)
		fmt.Fprint(errOut, "Type the email to confirm: ")

		reader := bufio.NewReader(cmd.InOrStdin())
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}

		if strings.TrimSpace(input) != user.Email {
			fmt.Fprintln(errOut, "Aborted. Email did not match.")
			return nil
		}
	}

	if err := db.DeleteUser(ctx, user.ID); err != nil {
		return err
	}

	if userJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"id":      user.ID,
			"email":   user.Email,
			"deleted": true,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %q\n", user.Email)
	return nil
}
