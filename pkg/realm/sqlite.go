package realm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// SQLiteRealm is a Realm backed by a SQLite account database. Secrets are
// stored as bcrypt hashes; permissions are wildcard strings granted per
// account. Sessions live in memory only - session persistence is
// deliberately out of scope.
type SQLiteRealm struct {
	db      *sql.DB
	decider Decider

	mu       sync.RWMutex
	sessions map[string]*Session
}

// AccountInfo is the public view of a stored account.
type AccountInfo struct {
	Username  string
	Locked    bool
	CreatedAt time.Time
}

// ErrAccountExists is returned when adding an account whose username is taken.
var ErrAccountExists = errors.New("account already exists")

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	username    TEXT PRIMARY KEY,
	secret_hash BLOB NOT NULL,
	locked      INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS account_permissions (
	username   TEXT NOT NULL REFERENCES accounts(username) ON DELETE CASCADE,
	permission TEXT NOT NULL,
	PRIMARY KEY (username, permission)
);
`

// SQLiteOption configures a SQLiteRealm.
type SQLiteOption func(*SQLiteRealm)

// WithSQLiteDecider delegates permission decisions to d instead of the
// account_permissions table.
func WithSQLiteDecider(d Decider) SQLiteOption {
	return func(r *SQLiteRealm) {
		r.decider = d
	}
}

// OpenSQLite opens or creates the account database at path.
func OpenSQLite(path string, opts ...SQLiteOption) (*SQLiteRealm, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	r := &SQLiteRealm{
		db:       db,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Close closes the underlying database.
func (r *SQLiteRealm) Close() error {
	return r.db.Close()
}

// AddAccount stores a new account with a bcrypt-hashed secret.
func (r *SQLiteRealm) AddAccount(ctx context.Context, username string, secret []byte) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	hash, err := bcrypt.GenerateFromPassword(secret, bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash secret: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO accounts (username, secret_hash) VALUES (?, ?)`,
		username, hash,
	)
	if err != nil {
		var exists bool
		row := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE username = ?)`, username)
		if scanErr := row.Scan(&exists); scanErr == nil && exists {
			return ErrAccountExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// SetLocked locks or unlocks an account.
func (r *SQLiteRealm) SetLocked(ctx context.Context, username string, locked bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET locked = ? WHERE username = ?`,
		boolToInt(locked), username,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUnknownAccount
	}
	return nil
}

// GrantPermission grants a wildcard permission to an account. Granting an
// already-granted permission is a no-op.
func (r *SQLiteRealm) GrantPermission(ctx context.Context, username, permission string) error {
	if _, err := ParseWildcardPermission(permission); err != nil {
		return fmt.Errorf("invalid permission: %w", err)
	}
	var exists bool
	row := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE username = ?)`, username)
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up account: %w", err)
	}
	if !exists {
		return ErrUnknownAccount
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO account_permissions (username, permission) VALUES (?, ?)`,
		username, permission,
	)
	if err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}
	return nil
}

// RevokePermission removes a granted permission.
func (r *SQLiteRealm) RevokePermission(ctx context.Context, username, permission string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM account_permissions WHERE username = ? AND permission = ?`,
		username, permission,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke permission: %w", err)
	}
	return nil
}

// Permissions returns the permissions granted to an account.
func (r *SQLiteRealm) Permissions(ctx context.Context, username string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT permission FROM account_permissions WHERE username = ? ORDER BY permission`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ListAccounts returns every stored account.
func (r *SQLiteRealm) ListAccounts(ctx context.Context) ([]AccountInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT username, locked, created_at FROM accounts ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []AccountInfo
	for rows.Next() {
		var a AccountInfo
		var locked int
		if err := rows.Scan(&a.Username, &locked, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Locked = locked != 0
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Login implements Realm.
func (r *SQLiteRealm) Login(ctx context.Context, username string, secret []byte, rememberMe bool) (*Session, error) {
	var hash []byte
	var locked int
	row := r.db.QueryRowContext(ctx,
		`SELECT secret_hash, locked FROM accounts WHERE username = ?`,
		username,
	)
	if err := row.Scan(&hash, &locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownAccount
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if locked != 0 {
		return nil, ErrLockedAccount
	}
	if err := bcrypt.CompareHashAndPassword(hash, secret); err != nil {
		return nil, ErrIncorrectCredentials
	}

	s := &Session{
		ID:            uuid.New().String(),
		Principal:     username,
		Authenticated: true,
		RememberMe:    rememberMe,
		EstablishedAt: time.Now().UTC(),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s, nil
}

// IsPermitted implements Realm.
func (r *SQLiteRealm) IsPermitted(ctx context.Context, s *Session, permission string) (bool, error) {
	if s == nil || !s.Authenticated {
		return false, ErrNoSession
	}
	r.mu.RLock()
	_, live := r.sessions[s.ID]
	r.mu.RUnlock()
	if !live {
		return false, ErrNoSession
	}

	if r.decider != nil {
		return r.decider.Permits(ctx, s.Principal, permission)
	}

	granted, err := r.Permissions(ctx, s.Principal)
	if err != nil {
		return false, err
	}
	for _, g := range granted {
		if Implies(g, permission) {
			return true, nil
		}
	}
	return false, nil
}

// Logout implements Realm. Idempotent.
func (r *SQLiteRealm) Logout(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	r.mu.Lock()
	delete(r.sessions, s.ID)
	r.mu.Unlock()
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
