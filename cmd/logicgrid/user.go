package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/logicgrid/logicgrid/internal/config"
	"github.com/logicgrid/logicgrid/internal/store"
	"github.com/logicgrid/logicgrid/internal/types"
	"github.com/spf13/cobra"
)

var (
	userDBOverride string
	userJSONOutput bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage LogicGrid accounts",
	Long:  "Create, list, approve, promote, and delete accounts without running the server.",
}

func init() {
	userCmd.PersistentFlags().StringVar(&userDBOverride, "db", "",
		"Database path (overrides config and LOGICGRID_DB_PATH)")
	userCmd.PersistentFlags().BoolVar(&userJSONOutput, "json", false,
		"Output in JSON format")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userApproveCmd)
	userCmd.AddCommand(userPromoteCmd)
	userCmd.AddCommand(userResetPasswordCmd)
	userCmd.AddCommand(userDeleteCmd)
}

// resolveUserStore opens the SQLite store from config with optional --db override.
// Opening the store applies any pending migrations.
func resolveUserStore() (*store.SQLiteStore, error) {
	dbPath := userDBOverride
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		dbPath = cfg.Database.Path
	}

	return store.NewSQLiteStore(dbPath)
}

// findUser looks an account up by email address. The store normalizes
// the address, so callers can pass raw CLI input.
func findUser(ctx context.Context, db store.Store, email string) (*types.User, error) {
	user, err := db.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", email, err)
	}
	return user, nil
}

// userJSON is the stable shape user subcommands emit with --json.
func userJSON(u *types.User) map[string]any {
	return map[string]any{
		"id":          u.ID,
		"email":       u.Email,
		"is_admin":    u.IsAdmin,
		"is_approved": u.IsApproved,
		"ai_usage":    u.AIUsageCount,
		"created":     u.CreatedAt,
	}
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
