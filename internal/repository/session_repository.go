package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// SessionRepo keeps a revocation list of access token IDs (jti) in Redis.
// Entries expire together with the token they revoke.  A nil client turns
// every method into a no-op, so logout still clears cookies and refresh
// tokens when Redis is unavailable.
type SessionRepo struct {
	rdb    *redis.Client
	prefix string
}

func NewSessionRepo(rdb *redis.Client, prefix string) *SessionRepo {
	if prefix == "" {
		prefix = "revoked"
	}
	return &SessionRepo{rdb: rdb, prefix: prefix}
}

func (r *SessionRepo) key(jti string) string { return r.prefix + ":" + jti }

// Revoke records jti as revoked until the token's expiry.
func (r *SessionRepo) Revoke(ctx context.Context, jti string, until time.Time) error {
	if r.rdb == nil || jti == "" {
		return nil
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return errors.Wrap(r.rdb.Set(ctx, r.key(jti), 1, ttl).Err(), "revoke session")
}

// IsRevoked reports whether jti was revoked.
func (r *SessionRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if r.rdb == nil || jti == "" {
		return false, nil
	}
	n, err := r.rdb.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, errors.Wrap(err, "check session")
	}
	return n > 0, nil
}
