package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"nestegg/internal/domain/user"
)

// UserRepository implements user.Repository for PostgreSQL
type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, device_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, u.ID, u.Email, u.Name, u.PasswordHash, u.DeviceToken, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *UserRepository) UpdateDeviceToken(ctx context.Context, id string, token *string) error {
	query := `UPDATE users SET device_token = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, token)
	if err != nil {
		return fmt.Errorf("failed to update device token: %w", err)
	}
	return nil
}

func (r *UserRepository) ClearDeviceToken(ctx context.Context, token string) error {
	query := `UPDATE users SET device_token = NULL WHERE device_token = $1`
	_, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to clear device token: %w", err)
	}
	return nil
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*user.User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, name, password_hash, device_token, created_at
		FROM users
		WHERE %s = $1
	`, column)

	var u user.User
	var deviceToken sql.NullString

	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &deviceToken, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if deviceToken.Valid {
		u.DeviceToken = &deviceToken.String
	}
	return &u, nil
}
