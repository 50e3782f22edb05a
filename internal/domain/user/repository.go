package user

import "context"

type Repository interface {
	Create(ctx context.Context, u *User) error
	// GetByID returns nil, nil when no user exists.
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateDeviceToken(ctx context.Context, id string, token *string) error
	// ClearDeviceToken removes a token wherever it is stored, used when
	// the push provider reports it invalid.
	ClearDeviceToken(ctx context.Context, token string) error
}
