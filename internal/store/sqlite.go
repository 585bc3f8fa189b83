package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/logicgrid/logicgrid/internal/types"
	_ "modernc.org/sqlite"
)

// timeFormat is the canonical storage format for timestamps. The fixed-width
// fraction keeps lexicographic ordering consistent with time ordering, which
// the session sweep relies on.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore represents the SQLite-backed application database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable pragmas for performance and safety
	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	// Run goose migrations
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser registers a new account. The very first account on a fresh
// database is promoted to an approved admin so the instance can be bootstrapped.
func (s *SQLiteStore) CreateUser(ctx context.Context, email, passwordHash string) (*types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var count int64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	first := count == 0

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, is_admin, is_approved, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		email, passwordHash, first, first, now.Format(timeFormat))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &types.User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		IsAdmin:      first,
		IsApproved:   first,
		CreatedAt:    now,
	}, nil
}

const userColumns = `id, email, password_hash, is_admin, is_approved, ai_usage_count, failed_logins, locked_until, created_at`

// GetUserByEmail looks up a user by email address, case-insensitively.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email)
	return scanUser(row)
}

// GetUserByID looks up a user by primary key.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*types.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row)
}

// ListUsers returns all accounts ordered by creation time.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]types.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SetUserAdmin grants or revokes admin rights.
func (s *SQLiteStore) SetUserAdmin(ctx context.Context, id int64, admin bool) error {
	return s.updateUserFlag(ctx, id, "is_admin", admin)
}

// SetUserApproved grants or revokes login approval.
func (s *SQLiteStore) SetUserApproved(ctx context.Context, id int64, approved bool) error {
	return s.updateUserFlag(ctx, id, "is_approved", approved)
}

func (s *SQLiteStore) updateUserFlag(ctx context.Context, id int64, column string, value bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET "+column+" = ? WHERE id = ?", value, id)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	return requireRow(res)
}

// DeleteUser removes an account. Sessions, protocols, and audit rows cascade.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRow(res)
}

// UpdatePassword replaces the stored password hash and clears any lockout.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, failed_logins = 0, locked_until = NULL WHERE id = ?",
		passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireRow(res)
}

// RecordLoginFailure increments the failure counter. When the counter reaches
// the threshold the account is locked for lockFor and the counter resets.
func (s *SQLiteStore) RecordLoginFailure(ctx context.Context, id int64, threshold int, lockFor time.Duration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var failures int
	err = tx.QueryRowContext(ctx, "SELECT failed_logins FROM users WHERE id = ?", id).Scan(&failures)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read failure count: %w", err)
	}

	failures++
	if failures >= threshold {
		lockedUntil := time.Now().UTC().Add(lockFor).Format(timeFormat)
		_, err = tx.ExecContext(ctx,
			"UPDATE users SET failed_logins = 0, locked_until = ? WHERE id = ?", lockedUntil, id)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE users SET failed_logins = ? WHERE id = ?", failures, id)
	}
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}

	return tx.Commit()
}

// ClearLoginFailures resets the failure counter and lifts any lockout.
func (s *SQLiteStore) ClearLoginFailures(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET failed_logins = 0, locked_until = NULL WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("clear failures: %w", err)
	}
	return requireRow(res)
}

// IncrementAIUsage bumps the usage counter and returns the new total.
func (s *SQLiteStore) IncrementAIUsage(ctx context.Context, id int64) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET ai_usage_count = ai_usage_count + 1 WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("increment usage: %w", err)
	}
	if err := requireRow(res); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT ai_usage_count FROM users WHERE id = ?", id).Scan(&count); err != nil {
		return 0, fmt.Errorf("read usage: %w", err)
	}
	return count, nil
}

// rowScanner lets scanUser work with both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*types.User, error) {
	var (
		u           types.User
		lockedUntil sql.NullString
		createdAt   string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.IsApproved,
		&u.AIUsageCount, &u.FailedLogins, &lockedUntil, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if u.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if lockedUntil.Valid {
		t, err := time.Parse(timeFormat, lockedUntil.String)
		if err != nil {
			return nil, fmt.Errorf("parse locked_until: %w", err)
		}
		u.LockedUntil = &t
	}
	return &u, nil
}

// requireRow converts a zero-row update or delete into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
