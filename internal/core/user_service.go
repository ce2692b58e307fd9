package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// adminRoleName is the role whose active assignment grants the
// administrator capability.
const adminRoleName = "administrator"

// UserService manages users, roles and the administrator capability check
// consumed by the sale machine.
type UserService interface {
	CreateUser(ctx context.Context, username, password, fullName, email string) (*User, error)
	// Authenticate verifies the password against the stored bcrypt hash and
	// returns the user on success.
	Authenticate(ctx context.Context, username, password string) (*User, error)
	GetUser(ctx context.Context, userID int) (*User, error)
	GetUsers(ctx context.Context) ([]User, error)

	CreateRole(ctx context.Context, name, description string) (*Role, error)
	GetRoles(ctx context.Context) ([]Role, error)
	AssignRole(ctx context.Context, userID, roleID int) error
	RevokeRole(ctx context.Context, userID, roleID int) error

	// IsAdministrator reports whether the user holds an active assignment of
	// the administrator role.
	IsAdministrator(ctx context.Context, userID int) (bool, error)
}

type userService struct {
	pool *pgxpool.Pool
}

// NewUserService constructs a UserService backed by PostgreSQL.
func NewUserService(pool *pgxpool.Pool) UserService {
	return &userService{pool: pool}
}

func (s *userService) CreateUser(ctx context.Context, username, password, fullName, email string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ValidationErrorf("username is required")
	}
	if len(password) < 8 {
		return nil, ValidationErrorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var u User
	err = s.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, full_name, email, is_active)
		VALUES ($1, $2, $3, $4, true)
		RETURNING id, username, full_name, email, is_active, created_at
	`, username, string(hash), fullName, email).Scan(
		&u.ID, &u.Username, &u.FullName, &u.Email, &u.IsActive, &u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &u, nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*User, error) {
	var u User
	var hash string
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, full_name, email, is_active, created_at
		FROM users
		WHERE username = $1 AND is_active = true
	`, strings.TrimSpace(username)).Scan(
		&u.ID, &u.Username, &hash, &u.FullName, &u.Email, &u.IsActive, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, PermissionDeniedErrorf("invalid credentials")
		}
		return nil, fmt.Errorf("failed to look up user %q: %w", username, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, PermissionDeniedErrorf("invalid credentials")
	}
	return &u, nil
}

func (s *userService) GetUser(ctx context.Context, userID int) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, full_name, email, is_active, created_at
		FROM users WHERE id = $1
	`, userID).Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundErrorf("user %d does not exist", userID)
		}
		return nil, fmt.Errorf("failed to fetch user %d: %w", userID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 AND ur.is_active = true AND r.is_active = true
		ORDER BY r.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles of user %d: %w", userID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan role name: %w", err)
		}
		u.Roles = append(u.Roles, name)
	}
	return &u, rows.Err()
}

func (s *userService) GetUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, full_name, email, is_active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *userService) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ValidationErrorf("role name is required")
	}

	var r Role
	err := s.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description, is_active)
		VALUES ($1, $2, true)
		RETURNING id, name, description, is_active
	`, strings.ToLower(name), description).Scan(&r.ID, &r.Name, &r.Description, &r.IsActive)
	if err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}
	return &r, nil
}

func (s *userService) GetRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, description, is_active FROM roles ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *userService) AssignRole(ctx context.Context, userID, roleID int) error {
	ct, err := s.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, is_active)
		VALUES ($1, $2, true)
		ON CONFLICT (user_id, role_id) DO UPDATE SET is_active = true
	`, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to assign role %d to user %d: %w", roleID, userID, err)
	}
	if ct.RowsAffected() == 0 {
		return NotFoundErrorf("user %d or role %d does not exist", userID, roleID)
	}
	return nil
}

func (s *userService) RevokeRole(ctx context.Context, userID, roleID int) error {
	ct, err := s.pool.Exec(ctx,
		"UPDATE user_roles SET is_active = false WHERE user_id = $1 AND role_id = $2",
		userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke role %d from user %d: %w", roleID, userID, err)
	}
	if ct.RowsAffected() == 0 {
		return NotFoundErrorf("user %d has no assignment of role %d", userID, roleID)
	}
	return nil
}

func (s *userService) IsAdministrator(ctx context.Context, userID int) (bool, error) {
	var isAdmin bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM user_roles ur
			JOIN roles r ON r.id = ur.role_id
			WHERE ur.user_id = $1
			  AND ur.is_active = true
			  AND r.is_active = true
			  AND LOWER(r.name) = $2
		)
	`, userID, adminRoleName).Scan(&isAdmin)
	if err != nil {
		return false, fmt.Errorf("failed to resolve roles of user %d: %w", userID, err)
	}
	return isAdmin, nil
}
