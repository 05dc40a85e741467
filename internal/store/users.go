package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Dashboard roles. Viewers read, operators issue engine commands, admins do both
// plus user management.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// User is one dashboard account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Outlet       string    `json:"outlet"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserRepository handles persistence of dashboard users.
type UserRepository struct {
	db *sql.DB
}

// Create inserts a user, hashing the given plaintext password.
func (r *UserRepository) Create(username, password, role, outlet string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	res, err := r.db.Exec(
		`INSERT INTO users (username, password_hash, role, outlet) VALUES (?, ?, ?, ?)`,
		username, string(hash), role, outlet,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &User{ID: id, Username: username, PasswordHash: string(hash), Role: role, Outlet: outlet}, nil
}

// GetByUsername fetches one user.
func (r *UserRepository) GetByUsername(username string) (*User, error) {
	row := r.db.QueryRow(
		`SELECT id, username, password_hash, role, outlet, created_at FROM users WHERE username = ?`,
		username,
	)
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Outlet, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns all users ordered by username.
func (r *UserRepository) List() ([]*User, error) {
	rows, err := r.db.Query(
		`SELECT id, username, password_hash, role, outlet, created_at FROM users ORDER BY username`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Outlet, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// Authenticate checks a username/password pair against the stored bcrypt hash.
func (r *UserRepository) Authenticate(username, password string) (*User, error) {
	u, err := r.GetByUsername(username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// SeedDefaultUsers inserts the default accounts if they do not exist yet.
// Passwords come from OUTLETOPS_<NAME>_PASSWORD env vars with development
// fallbacks.
func (r *UserRepository) SeedDefaultUsers() error {
	defaults := []struct {
		username string
		envVar   string
		fallback string
		role     string
		outlet   string
	}{
		{"admin", "OUTLETOPS_ADMIN_PASSWORD", "admin123", RoleAdmin, ""},
		{"operator", "OUTLETOPS_OPERATOR_PASSWORD", "operator123", RoleOperator, ""},
		{"viewer", "OUTLETOPS_VIEWER_PASSWORD", "viewer123", RoleViewer, ""},
	}
	for _, d := range defaults {
		if _, err := r.GetByUsername(d.username); err == nil {
			continue
		} else if !errors.Is(err, ErrUserNotFound) {
			return err
		}
		password := os.Getenv(d.envVar)
		if password == "" {
			password = d.fallback
		}
		if _, err := r.Create(d.username, password, d.role, d.outlet); err != nil {
			return fmt.Errorf("seed user %s: %w", d.username, err)
		}
	}
	return nil
}
