package model

import "time"

// User represents an application user record as stored in the `users`
// table.  The password hash never leaves the server.
//
// Fields:
//
//	ID           – primary key (UUID string).
//	Username     – display name chosen at registration.
//	Email        – unique, lower-cased email address.
//	PasswordHash – bcrypt hash of the password.
type User struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RefreshToken models a row in the `refresh_tokens` table.  The plain token
// is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    string     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
