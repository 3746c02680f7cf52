package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/adeilh/go-rakh-kv/auth"
)

// UsersSchema creates the users table. The password hash is kept in
// plain columns so the algorithm and cost stay queryable.
var UsersSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    hash_alg TEXT NOT NULL,
    hash_cost INTEGER NOT NULL,
    hash_value BYTEA NOT NULL,
    hash_created_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`,
}

const userColumns = `id, email, hash_alg, hash_cost, hash_value, hash_created_at, created_at, updated_at`

// UserRepository implements auth.UserRepository on a users table.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user auth.User) error {
	h := user.PasswordHash
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Email, h.Algorithm, h.Cost, nonNil(h.Value), h.CreatedAt, user.CreatedAt, user.UpdatedAt)
	return userError("create", err)
}

func (r *UserRepository) UpdateUser(ctx context.Context, user auth.User) error {
	h := user.PasswordHash
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = $2, hash_alg = $3, hash_cost = $4, hash_value = $5,
    hash_created_at = $6, updated_at = $7 WHERE id = $1`,
		user.ID, user.Email, h.Algorithm, h.Cost, nonNil(h.Value), h.CreatedAt, user.UpdatedAt)
	if err != nil {
		return userError("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: update user: %w", err)
	}
	if n == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (auth.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (auth.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (auth.User, error) {
	var u auth.User
	h := &u.PasswordHash
	err := row.Scan(&u.ID, &u.Email, &h.Algorithm, &h.Cost, &h.Value, &h.CreatedAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, userError("get", err)
	}
	return u, nil
}

// userError maps unique violations to ErrUserEmailInUse and malformed
// uuids to ErrUserNotFound.
func userError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return auth.ErrUserEmailInUse
		case "invalid_text_representation":
			return auth.ErrUserNotFound
		}
	}
	return fmt.Errorf("postgres: %s user: %w", op, err)
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
