package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

func runUserList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, err := resolveUserStore()
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := db.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if userJSONOutput {
		items := make([]map[string]any, len(users))
		for i := range users {
			items[i] = userJSON(&users[i])
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"users": items,
			"total": len(items),
		})
	}

	if len(users) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No users found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tEMAIL\tADMIN\tAPPROVED\tAI USAGE\tCREATED")
	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			u.ID,
			u.Email,
			yesNo(u.IsAdmin),
			yesNo(u.IsApproved),
			u.AIUsageCount,
			u.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	w.Flush()

	return nil
}
