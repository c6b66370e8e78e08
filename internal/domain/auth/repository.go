package auth

import "context"

// Repository abstracts durable user persistence.
type Repository interface {
	FindAll(ctx context.Context) ([]User, error)
	FindByEmail(ctx context.Context, email string) (User, bool, error)
	// Save inserts a new user and returns it with the assigned ID.
	Save(ctx context.Context, user User) (User, error)
	// DeleteByEmail returns ErrRecordNotFound when no row matched.
	DeleteByEmail(ctx context.Context, email string) error
}

// SessionStore maps opaque tokens to the email that authenticated.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	Create(ctx context.Context, email string) (string, error)
	Lookup(ctx context.Context, token string) (string, bool, error)
	// Revoke returns ErrInvalidSession when the token is not live.
	Revoke(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, email string) (int, error)
	Len(ctx context.Context) (int, error)
}

// CredentialHasher hashes and verifies passwords.
type CredentialHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}
